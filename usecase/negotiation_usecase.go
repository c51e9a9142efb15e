package usecase

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"khabiteq-backend/model"
)

type NegotiationLogStore interface {
	CreateNegotiationLog(ctx context.Context, log *model.NegotiationLog) error
	GetLogsByNegotiationID(ctx context.Context, negotiationID string) ([]model.NegotiationLog, error)
}

// NegotiationView is what a viewer sees for one negotiation.
type NegotiationView struct {
	Snapshot model.NegotiationSnapshot         `json:"snapshot"`
	Role     model.Role                        `json:"role"`
	Message  string                            `json:"message"`
	Counters map[model.CounterType]LimitNotice `json:"counters"`
}

type NegotiationUsecase struct {
	api    NegotiationAPI
	guard  *CounterGuard
	logs   NegotiationLogStore
	logger *zap.Logger

	now      func() time.Time
	mu       sync.Mutex
	contexts map[string]*trackedContext
}

type trackedContext struct {
	negotiation *NegotiationContext
	lastUsed    time.Time
}

func NewNegotiationUsecase(api NegotiationAPI, guard *CounterGuard, logs NegotiationLogStore, logger *zap.Logger) *NegotiationUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NegotiationUsecase{
		api:      api,
		guard:    guard,
		logs:     logs,
		logger:   logger,
		now:      time.Now,
		contexts: make(map[string]*trackedContext),
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// newID returns a ULID that sorts after every id this process handed out before.
func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

func (u *NegotiationUsecase) contextFor(negotiationID string) *NegotiationContext {
	u.mu.Lock()
	defer u.mu.Unlock()

	e, ok := u.contexts[negotiationID]
	if !ok {
		e = &trackedContext{negotiation: NewNegotiationContext(u.api, negotiationID, u.logger)}
		u.contexts[negotiationID] = e
	}
	e.lastUsed = u.now()
	return e.negotiation
}

// EvictIdle drops contexts not used for maxIdle and reports how many went.
// The next request for an evicted negotiation fetches it again.
func (u *NegotiationUsecase) EvictIdle(maxIdle time.Duration) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	cutoff := u.now().Add(-maxIdle)
	n := 0
	for id, e := range u.contexts {
		if e.lastUsed.Before(cutoff) {
			delete(u.contexts, id)
			n++
		}
	}
	return n
}

// settle drops the context of negotiations that can no longer change.
func (u *NegotiationUsecase) settle(c *NegotiationContext) {
	snap, ok := c.Snapshot()
	if !ok {
		return
	}
	switch snap.NegotiationStatus {
	case model.StatusCompleted, model.StatusCancelled, model.StatusNegotiationCancelled:
		u.mu.Lock()
		delete(u.contexts, c.ID())
		u.mu.Unlock()
	}
}

func (u *NegotiationUsecase) view(c *NegotiationContext, role model.Role) NegotiationView {
	snap, _ := c.Snapshot()
	tracker := c.Tracker()
	return NegotiationView{
		Snapshot: snap,
		Role:     role,
		Message:  c.StatusMessage(role),
		Counters: map[model.CounterType]LimitNotice{
			model.CounterPrice: tracker.Notice(model.CounterPrice, role),
			model.CounterLOI:   tracker.Notice(model.CounterLOI, role),
		},
	}
}

func (u *NegotiationUsecase) GetNegotiation(ctx context.Context, negotiationID string, role model.Role) (*NegotiationView, error) {
	c := u.contextFor(negotiationID)
	if _, err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	v := u.view(c, role)
	u.settle(c)
	return &v, nil
}

func (u *NegotiationUsecase) Accept(ctx context.Context, negotiationID string, role model.Role) (*NegotiationView, error) {
	c := u.contextFor(negotiationID)
	if err := c.Accept(ctx, role); err != nil {
		return nil, err
	}
	u.record(ctx, &model.NegotiationLog{NegotiationID: negotiationID, Action: "ACCEPT", ActorRole: role})
	v := u.view(c, role)
	u.settle(c)
	return &v, nil
}

func (u *NegotiationUsecase) Reject(ctx context.Context, negotiationID string, role model.Role, reason string) (*NegotiationView, error) {
	c := u.contextFor(negotiationID)
	if err := c.Reject(ctx, role, reason); err != nil {
		return nil, err
	}
	u.record(ctx, &model.NegotiationLog{NegotiationID: negotiationID, Action: "REJECT", ActorRole: role, Reason: reason})
	v := u.view(c, role)
	u.settle(c)
	return &v, nil
}

// Counter checks the advisory tracker, spends a counter in the ledger, then
// relays the counter to the API. If the API refuses, the counter is given back.
func (u *NegotiationUsecase) Counter(ctx context.Context, negotiationID string, role model.Role, ct model.CounterType, amount *float64, message string) (*NegotiationView, error) {
	if !ct.Valid() {
		return nil, ErrInvalidCounterType
	}

	c := u.contextFor(negotiationID)
	snap, err := c.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	if notice := c.Tracker().Notice(ct, role); notice.Level == LimitReached {
		return nil, &LimitError{Notice: notice}
	}

	if _, _, err := u.guard.Consume(ctx, negotiationID, ct, snap.CounterLimits); err != nil {
		if errors.Is(err, ErrCounterLimitReached) {
			return nil, &LimitError{Notice: LimitNotice{
				Level:   LimitReached,
				Limited: true,
				Message: reachedMessage(ct, role),
			}}
		}
		return nil, err
	}

	if err := c.Counter(ctx, role, ct, amount, message); err != nil {
		// the request may be gone already; the counter must still be given back
		if rerr := u.guard.Release(context.WithoutCancel(ctx), negotiationID, ct); rerr != nil {
			u.logger.Error("counter ledger out of sync", zap.String("negotiation_id", negotiationID), zap.Error(rerr))
		}
		return nil, err
	}

	u.record(ctx, &model.NegotiationLog{NegotiationID: negotiationID, Action: "COUNTER", CounterType: ct, ActorRole: role, Amount: amount, Reason: message})
	v := u.view(c, role)
	return &v, nil
}

// CounterRemaining reports the ledger's view of how many counters are left.
func (u *NegotiationUsecase) CounterRemaining(ctx context.Context, negotiationID string, ct model.CounterType) (remaining int, limited bool, err error) {
	c := u.contextFor(negotiationID)
	snap, err := c.Refresh(ctx)
	if err != nil {
		return 0, false, err
	}
	return u.guard.Remaining(ctx, negotiationID, ct, snap.CounterLimits)
}

func (u *NegotiationUsecase) History(ctx context.Context, negotiationID string) ([]model.NegotiationLog, error) {
	return u.logs.GetLogsByNegotiationID(ctx, negotiationID)
}

// record writes an audit row. The action already happened, so failures are only logged.
func (u *NegotiationUsecase) record(ctx context.Context, l *model.NegotiationLog) {
	l.ID = newID()
	l.LogTime = u.now()
	if err := u.logs.CreateNegotiationLog(context.WithoutCancel(ctx), l); err != nil {
		u.logger.Warn("failed to write negotiation log",
			zap.String("negotiation_id", l.NegotiationID),
			zap.String("action", l.Action),
			zap.Error(err))
	}
}

// LimitError carries the notice shown when a counter is blocked.
type LimitError struct {
	Notice LimitNotice
}

func (e *LimitError) Error() string {
	return ErrCounterLimitReached.Error() + ": " + e.Notice.Message
}

func (e *LimitError) Unwrap() error {
	return ErrCounterLimitReached
}
