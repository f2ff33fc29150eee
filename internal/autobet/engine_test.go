package autobet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoloshin/betfuse/internal/ledger"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

type fakeExecutor struct {
	mu         sync.Mutex
	placeCalls int
	placeErr   error
	placed     PlacedBet
	status     BetStatus
	marketOpen bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		placed:     PlacedBet{ExternalID: "ext-1", Status: StatusAcknowledged},
		status:     StatusConfirmed,
		marketOpen: true,
	}
}

func (f *fakeExecutor) PlaceBet(_ context.Context, _ PlaceBetRequest) (PlacedBet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls++
	if f.placeErr != nil {
		return PlacedBet{}, f.placeErr
	}
	return f.placed, nil
}

func (f *fakeExecutor) GetBetStatus(_ context.Context, _ string) (BetStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeExecutor) MarketOpen(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marketOpen, nil
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.placeCalls
}

type fakeNotifier struct {
	mu        sync.Mutex
	submitted []string
	rejected  []string
	breakers  []string
}

func (n *fakeNotifier) BetSubmitted(_ context.Context, d *models.BetDecision) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, d.ID)
}

func (n *fakeNotifier) BetRejected(_ context.Context, d *models.BetDecision, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, reason)
}

func (n *fakeNotifier) BreakerTripped(_ context.Context, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.breakers = append(n.breakers, reason)
}

func (n *fakeNotifier) OpportunityUnacted(_ context.Context, _ *models.Opportunity, _ string) {}
func (n *fakeNotifier) Stop()                                                                {}

func engineConfig() config.AutoBetConfig {
	cfg := riskConfig()
	cfg.ConfirmDelay = config.Duration(5 * time.Millisecond)
	cfg.ConfirmTimeout = config.Duration(100 * time.Millisecond)
	return cfg
}

func footballOpportunity(edge float64) models.Opportunity {
	key := models.NewMatchKey(enums.Football, "hades", "heist")
	return models.Opportunity{
		Key:         key,
		Sport:       string(enums.Football),
		Signal:      models.SignalScoreMomentum,
		Market:      models.MarketMatchWinner,
		Outcome:     "team_a",
		FairProb:    0.78,
		Confidence:  0.7,
		Price:       1.82,
		PriceSource: "book1",
		ImpliedProb: 0.55,
		EdgePercent: edge,
		Sources:     2,
		GeneratedAt: time.Now(),
	}
}

func newTestEngine(cfg config.AutoBetConfig, exec Executor) (*Engine, *ledger.MemoryLedger, *fakeNotifier) {
	led := ledger.NewMemory()
	notifier := &fakeNotifier{}
	e := NewEngine(cfg, NewRiskState(cfg), led, exec, notifier)
	return e, led, notifier
}

func eventsFor(t *testing.T, led *ledger.MemoryLedger, decisionID string) []ledger.Event {
	t.Helper()
	recs, err := led.RecordsForDecision(context.Background(), decisionID)
	require.NoError(t, err)
	events := make([]ledger.Event, len(recs))
	for i, rec := range recs {
		events[i] = rec.Event
	}
	return events
}

func countEvent(t *testing.T, led *ledger.MemoryLedger, event ledger.Event) int {
	t.Helper()
	recs, err := led.All(context.Background())
	require.NoError(t, err)
	n := 0
	for _, rec := range recs {
		if rec.Event == event {
			n++
		}
	}
	return n
}

func TestProcess_SubmitsAndConfirms(t *testing.T) {
	exec := newFakeExecutor()
	e, led, notifier := newTestEngine(engineConfig(), exec)

	e.Process(context.Background(), footballOpportunity(23))
	e.Close() // waits for the confirmation poll

	decisions := e.Decisions()
	require.Len(t, decisions, 1)
	d := decisions[0]
	assert.Equal(t, models.DecisionConfirmed, d.Status)
	assert.Equal(t, "ext-1", d.ExternalID)
	assert.Equal(t, 1, exec.calls())
	assert.Equal(t, 0, e.risk.Inflight())

	events := eventsFor(t, led, d.ID)
	assert.Equal(t, []ledger.Event{ledger.EventProposed, ledger.EventSubmitted, ledger.EventConfirmed}, events)
	assert.Equal(t, []string{d.ID}, notifier.submitted)
}

func TestProcess_BelowEdgeNeverReachesExecutor(t *testing.T) {
	exec := newFakeExecutor()
	e, led, _ := newTestEngine(engineConfig(), exec)

	e.Process(context.Background(), footballOpportunity(10))
	e.Close()

	assert.Equal(t, 0, exec.calls())
	assert.Empty(t, e.Decisions())
	all, err := led.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "policy rejections are logged, not audited")
}

func TestProcess_ConcurrentDuplicateCondition(t *testing.T) {
	exec := newFakeExecutor()
	e, led, _ := newTestEngine(engineConfig(), exec)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Process(context.Background(), footballOpportunity(23))
		}()
	}
	wg.Wait()
	e.Close()

	// Exactly one decision reaches Submitted; the other is dropped as a
	// duplicate before any reservation.
	assert.Equal(t, 1, exec.calls())
	assert.Equal(t, 1, countEvent(t, led, ledger.EventSubmitted))
}

func TestProcess_MarketClosedGateReleasesReservation(t *testing.T) {
	exec := newFakeExecutor()
	exec.marketOpen = false
	e, led, notifier := newTestEngine(engineConfig(), exec)

	e.Process(context.Background(), footballOpportunity(23))
	e.Close()

	assert.Equal(t, 0, exec.calls())
	assert.True(t, e.risk.OpenExposure().IsZero())

	decisions := e.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, models.DecisionRejected, decisions[0].Status)
	assert.Equal(t, ReasonMarketClosed, decisions[0].Reason)
	assert.Contains(t, notifier.rejected, ReasonMarketClosed)
	// Gate failures abort before the proposed record.
	assert.Equal(t, 0, countEvent(t, led, ledger.EventProposed))

	// The condition is free again for the next opportunity.
	exec.mu.Lock()
	exec.marketOpen = true
	exec.mu.Unlock()
	e.Process(context.Background(), footballOpportunity(23))
	e.Close()
	assert.Equal(t, 1, countEvent(t, led, ledger.EventSubmitted))
}

func TestPoller_VenueRejectionFailsClosed(t *testing.T) {
	exec := newFakeExecutor()
	exec.status = StatusRejected
	e, led, notifier := newTestEngine(engineConfig(), exec)

	e.Process(context.Background(), footballOpportunity(23))
	e.Close()

	decisions := e.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, models.DecisionRejected, decisions[0].Status)
	// Rejected after acknowledgment moves no money.
	assert.True(t, e.risk.OpenExposure().IsZero())
	assert.True(t, e.risk.Bankroll().Equal(NewRiskState(engineConfig()).Bankroll()))
	assert.Equal(t, 1, countEvent(t, led, ledger.EventRejected))
	assert.NotEmpty(t, notifier.rejected)
}

func TestSettle_WholeLifecycle(t *testing.T) {
	exec := newFakeExecutor()
	e, led, _ := newTestEngine(engineConfig(), exec)

	e.Process(context.Background(), footballOpportunity(23))
	e.Close()

	decisions := e.Decisions()
	require.Len(t, decisions, 1)
	id := decisions[0].ID

	e.Settle(context.Background(), id, SettleWon)
	e.Settle(context.Background(), id, SettleWon) // duplicate from reconciliation

	d, ok := e.Decision(id)
	require.True(t, ok)
	assert.Equal(t, models.DecisionWon, d.Status)
	assert.Equal(t, 1, countEvent(t, led, ledger.EventSettledWon))
	assert.True(t, e.risk.Bankroll().GreaterThan(NewRiskState(engineConfig()).Bankroll()))
}

func TestProcess_DailyLossLimitHaltsDay(t *testing.T) {
	cfg := engineConfig()
	cfg.DailyLossLimit = 30
	cfg.LossStreakLimit = 100
	cfg.MaxDailyFraction = 1
	exec := newFakeExecutor()
	e, led, notifier := newTestEngine(cfg, exec)

	// Two losses of 20 each push the daily loss past 30.
	for i := 0; i < 2; i++ {
		opp := footballOpportunity(23)
		opp.Key = models.NewMatchKey(enums.Football, "team"+string(rune('a'+i)), "other")
		e.Process(context.Background(), opp)
		e.Close()
		for _, d := range e.Decisions() {
			if d.Status == models.DecisionConfirmed {
				e.Settle(context.Background(), d.ID, SettleLost)
			}
		}
	}

	before := countEvent(t, led, ledger.EventSubmitted)
	opp := footballOpportunity(40)
	opp.Key = models.NewMatchKey(enums.Football, "teamz", "other")
	e.Process(context.Background(), opp)
	e.Close()

	assert.Equal(t, before, countEvent(t, led, ledger.EventSubmitted), "no new submission after the breaker trips")
	assert.Contains(t, notifier.breakers, ReasonDailyLossLimit)
}

func TestAppendFailure_HaltsDecisioning(t *testing.T) {
	exec := newFakeExecutor()
	led := &failingLedger{}
	notifier := &fakeNotifier{}
	cfg := engineConfig()
	e := NewEngine(cfg, NewRiskState(cfg), led, exec, notifier)

	e.Process(context.Background(), footballOpportunity(23))
	e.Close()

	assert.True(t, e.isHalted())
	assert.Equal(t, 0, exec.calls(), "no bet may be placed without an audit record")
	assert.True(t, e.risk.OpenExposure().IsZero())
	assert.Contains(t, notifier.breakers, "audit ledger unwritable")

	// Subsequent opportunities are skipped entirely.
	e.Process(context.Background(), footballOpportunity(40))
	assert.Equal(t, 0, exec.calls())
}

type failingLedger struct{ ledger.MemoryLedger }

func (l *failingLedger) Append(context.Context, ledger.Record) error {
	return ledger.ErrUnwritable
}
