package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"khabiteq-backend/model"
)

func loiSnapshot(id string, used int) model.NegotiationSnapshot {
	return model.NegotiationSnapshot{
		ID:                  id,
		PropertyID:          "prop-" + id,
		NegotiationStatus:   model.StatusNegotiationCountered,
		PendingResponseFrom: model.PartyBuyer,
		Stage:               "negotiation",
		NegotiationType:     model.NegotiationLOI,
		CounterLimits:       model.CounterLimits{LOIRequests: 2},
		CounterUsage:        model.CounterUsage{LOI: used},
	}
}

func TestNegotiationContext_BeforeRefresh(t *testing.T) {
	c := NewNegotiationContext(newFakeAPI(), "neg-1", zap.NewNop())

	_, ok := c.Snapshot()
	assert.False(t, ok)
	_, ok = c.Limits()
	assert.False(t, ok)
	assert.Equal(t, DefaultStatusMessage, c.StatusMessage(model.RoleBuyer))
	assert.True(t, c.Tracker().CanMakeCounter(model.CounterLOI))
}

func TestNegotiationContext_Refresh(t *testing.T) {
	api := newFakeAPI(loiSnapshot("neg-1", 1))
	c := NewNegotiationContext(api, "neg-1", zap.NewNop())

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusNegotiationCountered, snap.NegotiationStatus)

	limits, ok := c.Limits()
	require.True(t, ok)
	assert.Equal(t, 2, limits.CounterLimits().LOIRequests)
	assert.Equal(t, 1, limits.CounterUsage().LOI)

	assert.Equal(t, counterRespond.buyer, c.StatusMessage(model.RoleBuyer))
	assert.Equal(t, counterWaiting.seller, c.StatusMessage(model.RoleSeller))
	assert.Equal(t, LimitLastChance, c.Tracker().Notice(model.CounterLOI, model.RoleBuyer).Level)
}

func TestNegotiationContext_RefreshFailureKeepsSnapshot(t *testing.T) {
	api := newFakeAPI(loiSnapshot("neg-1", 0))
	c := NewNegotiationContext(api, "neg-1", zap.NewNop())

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	api.getErr = errors.New("connection refused")
	_, err = c.Refresh(context.Background())
	require.Error(t, err)

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "neg-1", snap.ID)
}

func TestNegotiationContext_RefreshCollapsesConcurrentCalls(t *testing.T) {
	api := newFakeAPI(loiSnapshot("neg-1", 0))
	api.block = make(chan struct{})
	c := NewNegotiationContext(api, "neg-1", zap.NewNop())

	var wg sync.WaitGroup
	refresh := func() {
		defer wg.Done()
		_, err := c.Refresh(context.Background())
		assert.NoError(t, err)
	}

	wg.Add(1)
	go refresh()
	require.Eventually(t, func() bool { return api.gets.Load() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go refresh()
	}
	time.Sleep(50 * time.Millisecond)
	close(api.block)
	wg.Wait()

	assert.Equal(t, int32(1), api.gets.Load())
}

func TestNegotiationContext_RefreshSurvivesFirstCallerCancel(t *testing.T) {
	api := newFakeAPI(loiSnapshot("neg-1", 0))
	api.block = make(chan struct{})
	c := NewNegotiationContext(api, "neg-1", zap.NewNop())

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Refresh(first)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return api.gets.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		snap model.NegotiationSnapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := c.Refresh(context.Background())
		second <- result{snap, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(api.block)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "neg-1", res.snap.ID)

	_, ok := c.Snapshot()
	assert.True(t, ok)
}

func TestNegotiationContext_Actions(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(loiSnapshot("neg-1", 0))
	c := NewNegotiationContext(api, "neg-1", zap.NewNop())

	require.NoError(t, c.Accept(ctx, model.RoleSeller))
	snap, _ := c.Snapshot()
	assert.Equal(t, model.StatusNegotiationAccepted, snap.NegotiationStatus)

	require.NoError(t, c.Reject(ctx, model.RoleSeller, "changed my mind"))
	snap, _ = c.Snapshot()
	assert.Equal(t, model.StatusNegotiationRejected, snap.NegotiationStatus)
	assert.Equal(t, "changed my mind", api.actions[1].Reason)
}

func TestNegotiationContext_CounterBlockedNeverCallsAPI(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(loiSnapshot("neg-1", 1))
	c := NewNegotiationContext(api, "neg-1", zap.NewNop())

	require.NoError(t, c.Counter(ctx, model.RoleBuyer, model.CounterLOI, nil, "revised LOI"))
	assert.Equal(t, int32(1), api.counters.Load())

	err := c.Counter(ctx, model.RoleBuyer, model.CounterLOI, nil, "one more")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCounterLimitReached)
	assert.Equal(t, int32(1), api.counters.Load())
}

func TestNegotiationContext_CounterAPIFailure(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(loiSnapshot("neg-1", 0))
	c := NewNegotiationContext(api, "neg-1", zap.NewNop())
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	api.actionErr = errors.New("503 service unavailable")
	err = c.Counter(ctx, model.RoleBuyer, model.CounterLOI, nil, "")
	require.Error(t, err)

	snap, _ := c.Snapshot()
	assert.Equal(t, 0, snap.CounterUsage.LOI)
}

func TestNegotiationContext_CounterInvalidType(t *testing.T) {
	c := NewNegotiationContext(newFakeAPI(), "neg-1", zap.NewNop())
	err := c.Counter(context.Background(), model.RoleBuyer, "swap", nil, "")
	assert.ErrorIs(t, err, ErrInvalidCounterType)
}
