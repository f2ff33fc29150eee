package autobet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvoloshin/betfuse/internal/ledger"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// deferRetryInterval is how often deferred opportunities (inflight cap
// reached) are retried.
const deferRetryInterval = time.Second

// deferMaxAge drops a deferred opportunity whose prices are too old to
// still be trusted.
const deferMaxAge = 30 * time.Second

// Engine turns opportunities into at-most-once, audited bet actions.
// The policy chain runs in order; the first failing check aborts with a
// named reason. Dedup and the exposure commit happen atomically inside
// RiskState.
type Engine struct {
	cfg      config.AutoBetConfig
	risk     *RiskState
	ledger   ledger.Ledger
	executor Executor
	notifier Notifier
	clock    func() time.Time

	mu        sync.Mutex
	decisions map[string]*models.BetDecision
	deferred  []models.Opportunity
	halted    bool

	wg sync.WaitGroup
}

func NewEngine(cfg config.AutoBetConfig, risk *RiskState, led ledger.Ledger, exec Executor, notifier Notifier) *Engine {
	return &Engine{
		cfg:       cfg,
		risk:      risk,
		ledger:    led,
		executor:  exec,
		notifier:  notifier,
		clock:     time.Now,
		decisions: make(map[string]*models.BetDecision),
	}
}

// Run consumes opportunities until ctx is cancelled, then waits for
// outstanding confirmation pollers so no written ledger record is lost.
func (e *Engine) Run(ctx context.Context, in <-chan models.Opportunity) {
	ticker := time.NewTicker(deferRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return
		case opp, ok := <-in:
			if !ok {
				e.wg.Wait()
				return
			}
			e.Process(ctx, opp)
		case <-ticker.C:
			e.retryDeferred(ctx)
		}
	}
}

// Decision returns a copy of a decision by id, if known.
func (e *Engine) Decision(id string) (models.BetDecision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.decisions[id]
	if !ok {
		return models.BetDecision{}, false
	}
	return *d, true
}

// Decisions returns copies of all decisions the engine has handled.
func (e *Engine) Decisions() []models.BetDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.BetDecision, 0, len(e.decisions))
	for _, d := range e.decisions {
		out = append(out, *d)
	}
	return out
}

// Process evaluates one opportunity through the policy chain and, if
// it survives, submits exactly one bet for it.
func (e *Engine) Process(ctx context.Context, opp models.Opportunity) {
	now := e.clock()
	log := slog.With("condition", opp.Condition(), "signal", opp.Signal, "edge", opp.EdgePercent)

	if e.isHalted() {
		log.Warn("Decisioning halted, skipping opportunity")
		return
	}
	if !e.cfg.Enabled {
		e.rejectEarly(ctx, opp, ReasonDisabled, log)
		return
	}

	// Step one: per-sport bounds, pure on the opportunity.
	if perr := checkBounds(e.cfg, opp); perr != nil {
		e.rejectEarly(ctx, opp, perr.Reason, log)
		return
	}

	stake := e.risk.SuggestStake()
	decisionID := uuid.NewString()
	res := Reservation{
		DecisionID: decisionID,
		Condition:  opp.Condition(),
		MatchKey:   opp.Key.String(),
		Sport:      opp.Sport,
		Stake:      stake,
		Price:      opp.Price,
		Edge:       opp.EdgePercent,
	}

	// Steps two through seven: dedup, inflight, exposure, breakers.
	// Check-then-commit under one critical section.
	if err := e.risk.Reserve(res, now); err != nil {
		if errors.Is(err, ErrInflightFull) {
			e.deferOpportunity(opp, log)
			return
		}
		var perr *PolicyError
		if errors.As(err, &perr) {
			e.rejectEarly(ctx, opp, perr.Reason, log)
		}
		return
	}

	decision := &models.BetDecision{
		ID:          decisionID,
		Condition:   opp.Condition(),
		Opportunity: opp,
		Stake:       stake,
		MinPrice:    minAcceptablePrice(opp.Price),
		Status:      models.DecisionProposed,
		DecidedAt:   now,
		UpdatedAt:   now,
	}
	e.trackDecision(decision)

	// Step eight, the state gate: last-moment venue check that the
	// market is still open. Outside the risk mutex, it is a remote call.
	open, err := e.executor.MarketOpen(ctx, opp.Condition())
	if err != nil || !open {
		if err != nil {
			log.Warn("State gate check failed, failing closed", "error", err)
		}
		e.risk.Release(decisionID)
		e.finishRejected(ctx, decision, ReasonMarketClosed, log)
		return
	}

	if !e.append(ctx, recordFor(decision, ledger.EventProposed, "", now)) {
		// Ledger unwritable is fatal: no bet may proceed unaudited.
		e.risk.Release(decisionID)
		return
	}

	// Exactly one place call per decision.
	placed, err := e.executor.PlaceBet(ctx, PlaceBetRequest{
		DecisionID: decisionID,
		MarketID:   opp.Condition(),
		Outcome:    opp.Outcome,
		Stake:      stake,
		MinPrice:   decision.MinPrice,
	})
	if err != nil || placed.Status == StatusRejected {
		if err != nil {
			log.Warn("Executor rejected or unreachable, failing closed", "error", err)
		}
		e.risk.Release(decisionID)
		e.finishRejected(ctx, decision, "executor rejected", log)
		return
	}

	e.mu.Lock()
	decision.Status = models.DecisionSubmitted
	decision.ExternalID = placed.ExternalID
	decision.UpdatedAt = e.clock()
	submittedCopy := *decision
	e.mu.Unlock()

	if !e.append(ctx, recordFor(&submittedCopy, ledger.EventSubmitted, "", e.clock())) {
		return
	}
	metrics.DecisionsTotal.WithLabelValues(string(models.DecisionSubmitted)).Inc()
	metrics.InflightDecisions.Set(float64(e.risk.Inflight()))
	log.Info("Bet submitted", "decision_id", decisionID, "external_id", placed.ExternalID, "stake", stake)
	if e.notifier != nil {
		e.notifier.BetSubmitted(ctx, &submittedCopy)
	}

	e.spawnConfirmPoll(ctx, decisionID, placed.ExternalID)
}

// Settle applies a settlement arriving from the reconciliation path.
// Idempotent: a repeated settlement is a no-op.
func (e *Engine) Settle(ctx context.Context, decisionID string, outcome SettleOutcome) {
	now := e.clock()
	if !e.risk.Settle(decisionID, outcome, now) {
		return
	}

	var status models.DecisionStatus
	var event ledger.Event
	switch outcome {
	case SettleWon:
		status, event = models.DecisionWon, ledger.EventSettledWon
	case SettleLost:
		status, event = models.DecisionLost, ledger.EventSettledLost
	default:
		status, event = models.DecisionCanceled, ledger.EventSettledCanceled
	}

	e.mu.Lock()
	d, ok := e.decisions[decisionID]
	var settledCopy models.BetDecision
	if ok {
		d.Status = status
		d.UpdatedAt = now
		settledCopy = *d
	}
	e.mu.Unlock()
	if !ok {
		settledCopy = models.BetDecision{ID: decisionID, Status: status, UpdatedAt: now}
	}

	e.append(ctx, recordFor(&settledCopy, event, "", now))
	metrics.DecisionsTotal.WithLabelValues(string(status)).Inc()
	slog.Info("Bet settled", "decision_id", decisionID, "outcome", outcome, "bankroll", e.risk.Bankroll())

	if outcome == SettleLost && e.cfg.LossStreakLimit > 0 && e.notifier != nil {
		// RiskState already armed the cooldown if the streak tripped.
		if e.risk.InCooldown(now) {
			e.notifier.BreakerTripped(ctx, ReasonLossStreak)
		}
	}
}

// Close waits for outstanding pollers. Call after the consuming loop
// has stopped.
func (e *Engine) Close() {
	e.wg.Wait()
}

func (e *Engine) isHalted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// append writes a ledger record; on failure it halts decisioning
// entirely rather than risk an unaudited bet.
func (e *Engine) append(ctx context.Context, rec ledger.Record) bool {
	if err := e.ledger.Append(ctx, rec); err != nil {
		slog.Error("Audit ledger unwritable, halting decisioning", "error", err, "decision_id", rec.DecisionID)
		e.mu.Lock()
		e.halted = true
		e.mu.Unlock()
		if e.notifier != nil {
			e.notifier.BreakerTripped(ctx, "audit ledger unwritable")
		}
		return false
	}
	return true
}

func (e *Engine) trackDecision(d *models.BetDecision) {
	e.mu.Lock()
	e.decisions[d.ID] = d
	e.mu.Unlock()
}

// rejectEarly handles a policy rejection before any reservation was
// made: logged with the named reason, discarded, no retry.
func (e *Engine) rejectEarly(ctx context.Context, opp models.Opportunity, reason string, log *slog.Logger) {
	metrics.PolicyRejections.WithLabelValues(reason).Inc()
	log.Info("Opportunity rejected", "reason", reason)
	if reason == ReasonDailyLossLimit && e.notifier != nil {
		e.notifier.BreakerTripped(ctx, reason)
		return
	}
	// Strong signals that were not acted on still reach a human.
	if e.notifier != nil && opp.EdgePercent >= 2*e.cfg.MinEdgePercent {
		e.notifier.OpportunityUnacted(ctx, &opp, reason)
	}
}

// finishRejected closes out a decision that made it past the policy
// chain but was refused by the venue: audited and alerted, no money
// moved.
func (e *Engine) finishRejected(ctx context.Context, d *models.BetDecision, reason string, log *slog.Logger) {
	now := e.clock()
	e.mu.Lock()
	d.Status = models.DecisionRejected
	d.Reason = reason
	d.UpdatedAt = now
	rejectedCopy := *d
	e.mu.Unlock()

	metrics.PolicyRejections.WithLabelValues(reason).Inc()
	metrics.DecisionsTotal.WithLabelValues(string(models.DecisionRejected)).Inc()
	metrics.InflightDecisions.Set(float64(e.risk.Inflight()))
	log.Info("Decision rejected", "decision_id", d.ID, "reason", reason)

	e.append(ctx, recordFor(&rejectedCopy, ledger.EventRejected, reason, now))
	if e.notifier != nil {
		e.notifier.BetRejected(ctx, &rejectedCopy, reason)
	}
}

// deferOpportunity parks an opportunity while the inflight cap is
// reached. Deferred, not dropped; retried until it ages out.
func (e *Engine) deferOpportunity(opp models.Opportunity, log *slog.Logger) {
	e.mu.Lock()
	e.deferred = append(e.deferred, opp)
	n := len(e.deferred)
	e.mu.Unlock()
	log.Info("Inflight cap reached, deferring opportunity", "deferred", n)
}

func (e *Engine) retryDeferred(ctx context.Context) {
	e.mu.Lock()
	pending := e.deferred
	e.deferred = nil
	e.mu.Unlock()

	now := e.clock()
	for _, opp := range pending {
		if now.Sub(opp.GeneratedAt) > deferMaxAge {
			slog.Info("Deferred opportunity aged out", "condition", opp.Condition())
			continue
		}
		e.Process(ctx, opp)
	}
}

func recordFor(d *models.BetDecision, event ledger.Event, reason string, at time.Time) ledger.Record {
	rec := ledger.NewRecord(d.ID, d.Condition, event, at)
	rec.Sport = d.Opportunity.Sport
	rec.Market = d.Opportunity.Market
	rec.Outcome = d.Opportunity.Outcome
	rec.Stake = d.Stake
	rec.Price = d.Opportunity.Price
	rec.EdgePercent = d.Opportunity.EdgePercent
	rec.Reason = reason
	rec.ExternalID = d.ExternalID
	return rec
}

// minAcceptablePrice leaves a small tolerance below the quoted price so
// tiny venue-side moves do not reject the bet outright.
func minAcceptablePrice(price float64) float64 {
	return price * 0.98
}
