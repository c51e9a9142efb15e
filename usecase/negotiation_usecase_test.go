package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"khabiteq-backend/dao"
	"khabiteq-backend/db"
	"khabiteq-backend/model"
)

type testEnv struct {
	api      *fakeAPI
	counters *dao.CounterRepository
	logs     *dao.NegotiationLogRepository
	usecase  *NegotiationUsecase
}

func newTestEnv(t *testing.T, snaps ...model.NegotiationSnapshot) *testEnv {
	t.Helper()
	conn, dialect, err := db.Open("sqlite", ":memory:", db.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, dialect))

	env := &testEnv{
		api:      newFakeAPI(snaps...),
		counters: dao.NewCounterRepository(conn, dialect),
		logs:     dao.NewNegotiationLogRepository(conn, dialect),
	}
	guard := NewCounterGuard(env.counters, zap.NewNop())
	env.usecase = NewNegotiationUsecase(env.api, guard, env.logs, zap.NewNop())
	return env
}

func TestNegotiationUsecase_GetNegotiation(t *testing.T) {
	env := newTestEnv(t, loiSnapshot("neg-1", 1))

	v, err := env.usecase.GetNegotiation(context.Background(), "neg-1", model.RoleBuyer)
	require.NoError(t, err)

	assert.Equal(t, model.RoleBuyer, v.Role)
	assert.Equal(t, counterRespond.buyer, v.Message)
	assert.Equal(t, LimitLastChance, v.Counters[model.CounterLOI].Level)
	assert.False(t, v.Counters[model.CounterPrice].Limited)
}

func TestNegotiationUsecase_GetNegotiationNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.usecase.GetNegotiation(context.Background(), "missing", model.RoleBuyer)
	require.Error(t, err)
}

func TestNegotiationUsecase_CounterRecordsLedgerAndLog(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, loiSnapshot("neg-1", 0))

	v, err := env.usecase.Counter(ctx, "neg-1", model.RoleBuyer, model.CounterLOI, nil, "revised terms")
	require.NoError(t, err)
	assert.Equal(t, model.PartySeller, v.Snapshot.PendingResponseFrom)
	assert.Equal(t, counterWaiting.buyer, v.Message)

	used, err := env.counters.Used(ctx, "neg-1", model.CounterLOI)
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	remaining, limited, err := env.usecase.CounterRemaining(ctx, "neg-1", model.CounterLOI)
	require.NoError(t, err)
	assert.True(t, limited)
	assert.Equal(t, 1, remaining)

	history, err := env.usecase.History(ctx, "neg-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "COUNTER", history[0].Action)
	assert.Len(t, history[0].ID, 26)
}

func TestNegotiationUsecase_LedgerOverridesClientUsage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, loiSnapshot("neg-1", 0))

	// the ledger already holds both allowed counters even though the API snapshot says 0
	limit := 2
	for i := 0; i < 2; i++ {
		_, ok, err := env.counters.Consume(ctx, "neg-1", model.CounterLOI, &limit)
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, err := env.usecase.Counter(ctx, "neg-1", model.RoleBuyer, model.CounterLOI, nil, "")
	require.Error(t, err)

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, LimitReached, limitErr.Notice.Level)
	assert.ErrorIs(t, err, ErrCounterLimitReached)
	assert.Equal(t, int32(0), env.api.counters.Load())
}

func TestNegotiationUsecase_CounterAPIFailureReleasesLedger(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, loiSnapshot("neg-1", 0))
	env.api.actionErr = errors.New("bad gateway")

	_, err := env.usecase.Counter(ctx, "neg-1", model.RoleBuyer, model.CounterLOI, nil, "")
	require.Error(t, err)

	used, err := env.counters.Used(ctx, "neg-1", model.CounterLOI)
	require.NoError(t, err)
	assert.Equal(t, 0, used)

	history, err := env.usecase.History(ctx, "neg-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestNegotiationUsecase_UnlimitedPriceCounters(t *testing.T) {
	ctx := context.Background()
	snap := loiSnapshot("neg-1", 0)
	snap.NegotiationType = model.NegotiationNormal
	env := newTestEnv(t, snap)

	for i := 0; i < 5; i++ {
		amount := float64(30000000 - i*100000)
		v, err := env.usecase.Counter(ctx, "neg-1", model.RoleBuyer, model.CounterPrice, &amount, "")
		require.NoError(t, err)
		assert.False(t, v.Counters[model.CounterPrice].Limited)
	}
	assert.Equal(t, int32(5), env.api.counters.Load())
}

func TestNegotiationUsecase_AcceptSettles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, loiSnapshot("neg-1", 0))

	v, err := env.usecase.Accept(ctx, "neg-1", model.RoleSeller)
	require.NoError(t, err)
	assert.Contains(t, v.Message, "You have accepted the offer")

	completed := loiSnapshot("neg-1", 0)
	completed.NegotiationStatus = model.StatusCompleted
	env.api.set(completed)

	_, err = env.usecase.GetNegotiation(ctx, "neg-1", model.RoleBuyer)
	require.NoError(t, err)

	env.usecase.mu.Lock()
	_, cached := env.usecase.contexts["neg-1"]
	env.usecase.mu.Unlock()
	assert.False(t, cached, "finished negotiations are not kept")

	history, err := env.usecase.History(ctx, "neg-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "ACCEPT", history[0].Action)
}

func TestNegotiationUsecase_Reject(t *testing.T) {
	env := newTestEnv(t, loiSnapshot("neg-1", 0))

	v, err := env.usecase.Reject(context.Background(), "neg-1", model.RoleSeller, "too low")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNegotiationRejected, v.Snapshot.NegotiationStatus)
}

func TestCounterGuard_Remaining(t *testing.T) {
	env := newTestEnv(t)
	guard := NewCounterGuard(env.counters, zap.NewNop())
	ctx := context.Background()

	_, limited, err := guard.Remaining(ctx, "neg-1", model.CounterPrice, model.CounterLimits{})
	require.NoError(t, err)
	assert.False(t, limited)

	remaining, limited, err := guard.Remaining(ctx, "neg-1", model.CounterLOI, model.CounterLimits{LOIRequests: 3})
	require.NoError(t, err)
	assert.True(t, limited)
	assert.Equal(t, 3, remaining)

	_, _, err = guard.Consume(ctx, "neg-1", "swap", model.CounterLimits{})
	assert.ErrorIs(t, err, ErrInvalidCounterType)
}

func TestNegotiationUsecase_CounterCancelledRequestReleasesLedger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t, loiSnapshot("neg-1", 0))
	env.api.onCounter = cancel
	env.api.actionErr = context.Canceled

	_, err := env.usecase.Counter(ctx, "neg-1", model.RoleBuyer, model.CounterLOI, nil, "")
	require.ErrorIs(t, err, context.Canceled)

	used, err := env.counters.Used(context.Background(), "neg-1", model.CounterLOI)
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestNegotiationUsecase_HistoryKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	env.usecase.now = func() time.Time { return at }

	for i := 0; i < 200; i++ {
		env.usecase.record(ctx, &model.NegotiationLog{
			NegotiationID: "neg-1",
			Action:        fmt.Sprintf("A%03d", i),
			ActorRole:     model.RoleBuyer,
		})
	}

	history, err := env.usecase.History(ctx, "neg-1")
	require.NoError(t, err)
	require.Len(t, history, 200)
	for i, l := range history {
		assert.Equal(t, fmt.Sprintf("A%03d", i), l.Action)
	}
}

func TestNewID_StrictlyIncreasing(t *testing.T) {
	prev := newID()
	for i := 0; i < 1000; i++ {
		id := newID()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestNegotiationUsecase_EvictIdle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, loiSnapshot("neg-1", 0), loiSnapshot("neg-2", 0))
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	env.usecase.now = func() time.Time { return clock }

	_, err := env.usecase.GetNegotiation(ctx, "neg-1", model.RoleBuyer)
	require.NoError(t, err)
	clock = clock.Add(20 * time.Minute)
	_, err = env.usecase.GetNegotiation(ctx, "neg-2", model.RoleBuyer)
	require.NoError(t, err)

	assert.Equal(t, 1, env.usecase.EvictIdle(15*time.Minute))

	env.usecase.mu.Lock()
	_, first := env.usecase.contexts["neg-1"]
	_, second := env.usecase.contexts["neg-2"]
	env.usecase.mu.Unlock()
	assert.False(t, first)
	assert.True(t, second)

	_, err = env.usecase.GetNegotiation(ctx, "neg-1", model.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, int32(3), env.api.gets.Load())
}
