package autobet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/nvoloshin/betfuse/internal/pkg/config"
)

// BetStatus is the venue's view of a placed bet.
type BetStatus string

const (
	StatusAcknowledged BetStatus = "acknowledged" // accepted for processing, not final
	StatusConfirmed    BetStatus = "confirmed"
	StatusRejected     BetStatus = "rejected"
	StatusWon          BetStatus = "won"
	StatusLost         BetStatus = "lost"
	StatusCanceled     BetStatus = "canceled"
	StatusUnknown      BetStatus = "unknown"
)

// Accepted reports whether the status is a confirmed acceptance or a
// later settled state that implies the bet was live.
func (s BetStatus) Accepted() bool {
	switch s {
	case StatusConfirmed, StatusWon, StatusLost, StatusCanceled:
		return true
	}
	return false
}

type PlaceBetRequest struct {
	DecisionID string          `json:"decision_id"`
	MarketID   string          `json:"market_id"`
	Outcome    string          `json:"outcome"`
	Stake      decimal.Decimal `json:"stake"`
	MinPrice   float64         `json:"min_price"`
}

type PlacedBet struct {
	ExternalID string    `json:"external_id"`
	Status     BetStatus `json:"status"`
}

// Executor is the execution venue sidecar. It is an untrustworthy
// remote: slow, may acknowledge before final confirmation, and may
// reject after acknowledging.
type Executor interface {
	PlaceBet(ctx context.Context, req PlaceBetRequest) (PlacedBet, error)
	GetBetStatus(ctx context.Context, externalID string) (BetStatus, error)
	MarketOpen(ctx context.Context, marketID string) (bool, error)
}

// HTTPExecutor talks to the sidecar over HTTP with a client-side rate
// limit and bounded retries. The decision id doubles as an idempotency
// key, so retrying a place request cannot double-submit.
type HTTPExecutor struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
}

var _ Executor = (*HTTPExecutor)(nil)

func NewHTTPExecutor(cfg config.ExecutorConfig) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout.Std()},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase.Std(),
	}
}

func (e *HTTPExecutor) PlaceBet(ctx context.Context, req PlaceBetRequest) (PlacedBet, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return PlacedBet{}, fmt.Errorf("executor: encode place request: %w", err)
	}

	var placed PlacedBet
	err = e.do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/bets", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Idempotency-Key", req.DecisionID)
		return e.decode(httpReq, &placed)
	})
	if err != nil {
		return PlacedBet{}, err
	}
	if placed.Status == "" {
		placed.Status = StatusUnknown
	}
	return placed, nil
}

func (e *HTTPExecutor) GetBetStatus(ctx context.Context, externalID string) (BetStatus, error) {
	var resp struct {
		Status BetStatus `json:"status"`
	}
	err := e.do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
			e.baseURL+"/bets/"+url.PathEscape(externalID), nil)
		if err != nil {
			return err
		}
		return e.decode(httpReq, &resp)
	})
	if err != nil {
		return StatusUnknown, err
	}
	if resp.Status == "" {
		return StatusUnknown, nil
	}
	return resp.Status, nil
}

func (e *HTTPExecutor) MarketOpen(ctx context.Context, marketID string) (bool, error) {
	var resp struct {
		Open bool `json:"open"`
	}
	err := e.do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
			e.baseURL+"/markets/"+url.PathEscape(marketID), nil)
		if err != nil {
			return err
		}
		return e.decode(httpReq, &resp)
	})
	if err != nil {
		return false, err
	}
	return resp.Open, nil
}

// do runs fn under the rate limit with bounded exponential backoff.
// Never retries forever: maxRetries attempts, then the last error.
func (e *HTTPExecutor) do(ctx context.Context, fn func() error) error {
	attempts := e.maxRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := e.retryBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("executor: giving up after %d attempts: %w", attempts, lastErr)
}

func (e *HTTPExecutor) decode(req *http.Request, out any) error {
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("executor: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
