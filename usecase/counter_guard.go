package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"khabiteq-backend/model"
)

type CounterStore interface {
	Used(ctx context.Context, negotiationID string, counterType model.CounterType) (int, error)
	Consume(ctx context.Context, negotiationID string, counterType model.CounterType, limit *int) (used int, ok bool, err error)
	Release(ctx context.Context, negotiationID string, counterType model.CounterType) error
}

// CounterGuard is the server-side authority on counter limits. Unlike
// CounterTracker it does not trust usage reported by clients.
type CounterGuard struct {
	store  CounterStore
	logger *zap.Logger
}

func NewCounterGuard(store CounterStore, logger *zap.Logger) *CounterGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CounterGuard{store: store, logger: logger}
}

func limitFor(ct model.CounterType, limits model.CounterLimits) *int {
	if ct == model.CounterLOI {
		v := limits.LOIRequests
		return &v
	}
	return limits.PriceNegotiation
}

// Consume records one counter. It fails with ErrCounterLimitReached once the
// ledger has reached the limit.
func (g *CounterGuard) Consume(ctx context.Context, negotiationID string, ct model.CounterType, limits model.CounterLimits) (remaining int, limited bool, err error) {
	if !ct.Valid() {
		return 0, false, ErrInvalidCounterType
	}
	limit := limitFor(ct, limits)

	used, ok, err := g.store.Consume(ctx, negotiationID, ct, limit)
	if err != nil {
		g.logger.Error("counter ledger unavailable",
			zap.String("negotiation_id", negotiationID),
			zap.String("counter_type", string(ct)),
			zap.Error(err))
		return 0, false, fmt.Errorf("consume counter: %w", err)
	}
	if limit == nil {
		return 0, false, nil
	}
	remaining = max(*limit-used, 0)
	if !ok {
		g.logger.Info("counter limit reached",
			zap.String("negotiation_id", negotiationID),
			zap.String("counter_type", string(ct)),
			zap.Int("limit", *limit))
		return 0, true, ErrCounterLimitReached
	}
	return remaining, true, nil
}

func (g *CounterGuard) Remaining(ctx context.Context, negotiationID string, ct model.CounterType, limits model.CounterLimits) (remaining int, limited bool, err error) {
	if !ct.Valid() {
		return 0, false, ErrInvalidCounterType
	}
	limit := limitFor(ct, limits)
	if limit == nil {
		return 0, false, nil
	}
	used, err := g.store.Used(ctx, negotiationID, ct)
	if err != nil {
		return 0, true, fmt.Errorf("read counter: %w", err)
	}
	return max(*limit-used, 0), true, nil
}

// Release gives back a counter whose delivery failed.
func (g *CounterGuard) Release(ctx context.Context, negotiationID string, ct model.CounterType) error {
	if err := g.store.Release(ctx, negotiationID, ct); err != nil {
		g.logger.Error("failed to release counter",
			zap.String("negotiation_id", negotiationID),
			zap.String("counter_type", string(ct)),
			zap.Error(err))
		return fmt.Errorf("release counter: %w", err)
	}
	return nil
}
