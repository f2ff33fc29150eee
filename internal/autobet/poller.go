package autobet

import (
	"context"
	"log/slog"
	"time"

	"github.com/nvoloshin/betfuse/internal/ledger"
	"github.com/nvoloshin/betfuse/internal/pkg/metrics"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// spawnConfirmPoll schedules the single follow-up status check for a
// submitted bet: wait the configured delay, ask the venue once (with a
// bounded timeout), and close the decision out either way. No retry
// loop; an unknown answer fails closed into Rejected.
func (e *Engine) spawnConfirmPoll(ctx context.Context, decisionID, externalID string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		select {
		case <-ctx.Done():
			// Shutdown before the poll fired. The submitted record is
			// already durable; reconciliation picks the bet up later.
			return
		case <-time.After(e.cfg.ConfirmDelay.Std()):
		}

		pollCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ConfirmTimeout.Std())
		defer cancel()
		status, err := e.executor.GetBetStatus(pollCtx, externalID)

		// Closing a decision out must survive shutdown of the consuming
		// loop; its ledger writes may not be dropped.
		closeCtx := context.WithoutCancel(ctx)

		log := slog.With("decision_id", decisionID, "external_id", externalID)
		switch {
		case err != nil:
			// Fail closed: nothing is assumed placed unless confirmed.
			log.Warn("Confirmation poll failed", "error", err)
			e.confirmFailed(closeCtx, decisionID, "confirmation poll failed")
		case status.Accepted():
			e.confirmAccepted(closeCtx, decisionID, log)
		default:
			log.Info("Bet not accepted by venue", "status", status)
			e.confirmFailed(closeCtx, decisionID, "not accepted: "+string(status))
		}
	}()
}

func (e *Engine) confirmAccepted(ctx context.Context, decisionID string, log *slog.Logger) {
	e.risk.Confirm(decisionID)
	now := e.clock()

	e.mu.Lock()
	d, ok := e.decisions[decisionID]
	if !ok {
		e.mu.Unlock()
		return
	}
	d.Status = models.DecisionConfirmed
	d.UpdatedAt = now
	confirmedCopy := *d
	e.mu.Unlock()

	e.append(ctx, recordFor(&confirmedCopy, ledger.EventConfirmed, "", now))
	metrics.DecisionsTotal.WithLabelValues(string(models.DecisionConfirmed)).Inc()
	metrics.InflightDecisions.Set(float64(e.risk.Inflight()))
	log.Info("Bet confirmed", "stake", confirmedCopy.Stake)
}

func (e *Engine) confirmFailed(ctx context.Context, decisionID, reason string) {
	e.risk.Release(decisionID)

	e.mu.Lock()
	d, ok := e.decisions[decisionID]
	e.mu.Unlock()
	if !ok {
		return
	}
	e.finishRejected(ctx, d, reason, slog.With("decision_id", decisionID))
}
