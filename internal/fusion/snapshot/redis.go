// Package snapshot mirrors the fused state and current opportunities
// into Redis with a TTL, so external pollers can read without touching
// the fusion process.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nvoloshin/betfuse/internal/fusion/store"
	"github.com/nvoloshin/betfuse/internal/opportunity"
	"github.com/nvoloshin/betfuse/internal/pkg/config"
)

const (
	matchKeyPrefix   = "betfuse:match:"
	opportunitiesKey = "betfuse:opportunities"
)

// Publisher periodically writes state snapshots into Redis. Best
// effort: a failed write is logged and retried next tick, nothing
// downstream depends on it.
type Publisher struct {
	client   *redis.Client
	store    *store.Store
	engine   *opportunity.Engine
	ttl      time.Duration
	interval time.Duration
}

func NewPublisher(cfg config.RedisConfig, st *store.Store, engine *opportunity.Engine, interval time.Duration) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Publisher{
		client:   client,
		store:    st,
		engine:   engine,
		ttl:      cfg.TTL.Std(),
		interval: interval,
	}, nil
}

// Run publishes on a fixed interval until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.publish(ctx); err != nil {
				slog.Warn("Redis snapshot publish failed", "error", err)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context) error {
	now := time.Now()

	pipe := p.client.Pipeline()
	for _, state := range p.store.All(now) {
		data, err := json.Marshal(state)
		if err != nil {
			continue
		}
		pipe.Set(ctx, matchKeyPrefix+state.Key.String(), data, p.ttl)
	}

	opps := p.engine.Latest()
	data, err := json.Marshal(opps)
	if err == nil {
		pipe.Set(ctx, opportunitiesKey, data, p.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	slog.Debug("Snapshot published", "matches", p.store.Len(), "opportunities", len(opps))
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
