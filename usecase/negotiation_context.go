package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"khabiteq-backend/model"
	"khabiteq-backend/pkg/khabiteq"
)

// NegotiationAPI is the part of the Khabiteq API a negotiation needs.
type NegotiationAPI interface {
	GetNegotiation(ctx context.Context, negotiationID string) (*model.NegotiationSnapshot, error)
	AcceptNegotiation(ctx context.Context, negotiationID string, req khabiteq.ActionRequest) error
	RejectNegotiation(ctx context.Context, negotiationID string, req khabiteq.ActionRequest) error
	CounterNegotiation(ctx context.Context, negotiationID string, req khabiteq.ActionRequest) error
}

// NegotiationContext holds the latest snapshot of one negotiation. It never
// changes the negotiation itself: actions go to the API and the snapshot is
// re-fetched afterwards.
type NegotiationContext struct {
	api    NegotiationAPI
	id     string
	logger *zap.Logger
	group  singleflight.Group

	mu   sync.RWMutex
	snap *model.NegotiationSnapshot
}

func NewNegotiationContext(api NegotiationAPI, negotiationID string, logger *zap.Logger) *NegotiationContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NegotiationContext{
		api:    api,
		id:     negotiationID,
		logger: logger.With(zap.String("negotiation_id", negotiationID)),
	}
}

func (c *NegotiationContext) ID() string { return c.id }

// Refresh fetches the snapshot and replaces the current one. Concurrent callers
// share a single API call, which is detached from any one caller's cancellation;
// each caller still stops waiting when its own ctx ends. On failure the previous
// snapshot is kept.
func (c *NegotiationContext) Refresh(ctx context.Context) (model.NegotiationSnapshot, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.id, func() (any, error) {
		snap, err := c.api.GetNegotiation(fetchCtx, c.id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snap = snap
		c.mu.Unlock()
		return *snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("failed to fetch negotiation", zap.Error(res.Err))
			return model.NegotiationSnapshot{}, fmt.Errorf("fetch negotiation %s: %w", c.id, res.Err)
		}
		return res.Val.(model.NegotiationSnapshot), nil
	case <-ctx.Done():
		return model.NegotiationSnapshot{}, fmt.Errorf("fetch negotiation %s: %w", c.id, ctx.Err())
	}
}

func (c *NegotiationContext) Snapshot() (model.NegotiationSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return model.NegotiationSnapshot{}, false
	}
	return *c.snap, true
}

// StatusMessage resolves the current status for the viewer.
func (c *NegotiationContext) StatusMessage(role model.Role) string {
	snap, ok := c.Snapshot()
	if !ok {
		return DefaultStatusMessage
	}
	return StatusMessage(snap.NegotiationStatus, snap.PendingResponseFrom, role)
}

func (c *NegotiationContext) CounterLimits() model.CounterLimits {
	snap, _ := c.Snapshot()
	return snap.CounterLimits
}

func (c *NegotiationContext) CounterUsage() model.CounterUsage {
	snap, _ := c.Snapshot()
	return snap.CounterUsage
}

// Limits exposes the NegotiationLimits capability once a snapshot is loaded.
func (c *NegotiationContext) Limits() (NegotiationLimits, bool) {
	if _, ok := c.Snapshot(); !ok {
		return nil, false
	}
	return c, true
}

func (c *NegotiationContext) Tracker() *CounterTracker {
	limits, _ := c.Limits()
	return NewCounterTracker(limits)
}

func (c *NegotiationContext) Accept(ctx context.Context, role model.Role) error {
	if err := c.api.AcceptNegotiation(ctx, c.id, khabiteq.ActionRequest{Role: role}); err != nil {
		c.logger.Warn("accept failed", zap.String("role", string(role)), zap.Error(err))
		return fmt.Errorf("accept negotiation %s: %w", c.id, err)
	}
	c.refreshAfter(ctx, "accept")
	return nil
}

func (c *NegotiationContext) Reject(ctx context.Context, role model.Role, reason string) error {
	if err := c.api.RejectNegotiation(ctx, c.id, khabiteq.ActionRequest{Role: role, Reason: reason}); err != nil {
		c.logger.Warn("reject failed", zap.String("role", string(role)), zap.Error(err))
		return fmt.Errorf("reject negotiation %s: %w", c.id, err)
	}
	c.refreshAfter(ctx, "reject")
	return nil
}

// Counter sends a counter-offer. The limit check here is advisory: a blocked
// counter never reaches the API, but the server still has the final say.
func (c *NegotiationContext) Counter(ctx context.Context, role model.Role, ct model.CounterType, amount *float64, message string) error {
	if !ct.Valid() {
		return ErrInvalidCounterType
	}
	if _, ok := c.Snapshot(); !ok {
		if _, err := c.Refresh(ctx); err != nil {
			return err
		}
	}

	if notice := c.Tracker().Notice(ct, role); notice.Level == LimitReached {
		return fmt.Errorf("%w: %s", ErrCounterLimitReached, notice.Message)
	}

	req := khabiteq.ActionRequest{Role: role, CounterType: ct, Amount: amount, Message: message}
	if err := c.api.CounterNegotiation(ctx, c.id, req); err != nil {
		c.logger.Warn("counter failed", zap.String("role", string(role)), zap.String("counter_type", string(ct)), zap.Error(err))
		return fmt.Errorf("counter negotiation %s: %w", c.id, err)
	}
	c.refreshAfter(ctx, "counter")
	return nil
}

// refreshAfter re-fetches after a successful action. The action already went
// through, so a failed re-fetch only leaves the snapshot stale.
func (c *NegotiationContext) refreshAfter(ctx context.Context, action string) {
	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Warn("snapshot stale after action", zap.String("action", action), zap.Error(err))
	}
}
