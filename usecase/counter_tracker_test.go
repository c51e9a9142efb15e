package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"khabiteq-backend/model"
)

func intPtr(v int) *int { return &v }

func TestCounterTracker_NoLimitsCapability(t *testing.T) {
	tr := NewCounterTracker(nil)

	for _, ct := range []model.CounterType{model.CounterPrice, model.CounterLOI} {
		assert.True(t, tr.CanMakeCounter(ct))
		_, limited := tr.RemainingCounters(ct)
		assert.False(t, limited)
		assert.Equal(t, LimitOK, tr.Notice(ct, model.RoleBuyer).Level)
	}
}

func TestCounterTracker_UnlimitedPrice(t *testing.T) {
	tr := NewCounterTracker(StaticLimits{
		Limits: model.CounterLimits{PriceNegotiation: nil, LOIRequests: 3},
		Usage:  model.CounterUsage{Price: 500},
	})

	assert.True(t, tr.CanMakeCounter(model.CounterPrice))
	_, limited := tr.RemainingCounters(model.CounterPrice)
	assert.False(t, limited)
}

func TestCounterTracker_LOI(t *testing.T) {
	tests := []struct {
		name      string
		used      int
		remaining int
		can       bool
		level     LimitLevel
	}{
		{"fresh", 0, 3, true, LimitOK},
		{"one spent", 1, 2, true, LimitOK},
		{"last chance", 2, 1, true, LimitLastChance},
		{"exhausted", 3, 0, false, LimitReached},
		{"over-reported usage clamps", 7, 0, false, LimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewCounterTracker(StaticLimits{
				Limits: model.CounterLimits{LOIRequests: 3},
				Usage:  model.CounterUsage{LOI: tt.used},
			})

			remaining, limited := tr.RemainingCounters(model.CounterLOI)
			assert.True(t, limited)
			assert.Equal(t, tt.remaining, remaining)
			assert.Equal(t, tt.can, tr.CanMakeCounter(model.CounterLOI))

			n := tr.Notice(model.CounterLOI, model.RoleBuyer)
			assert.Equal(t, tt.level, n.Level)
			if tt.level == LimitOK {
				assert.Empty(t, n.Message)
			} else {
				assert.NotEmpty(t, n.Message)
			}
		})
	}
}

func TestCounterTracker_BoundedPrice(t *testing.T) {
	tr := NewCounterTracker(StaticLimits{
		Limits: model.CounterLimits{PriceNegotiation: intPtr(2)},
		Usage:  model.CounterUsage{Price: 2},
	})

	assert.False(t, tr.CanMakeCounter(model.CounterPrice))
	remaining, limited := tr.RemainingCounters(model.CounterPrice)
	assert.True(t, limited)
	assert.Equal(t, 0, remaining)
}

func TestCounterTracker_NoticeMessagesDifferByRoleAndType(t *testing.T) {
	exhausted := NewCounterTracker(StaticLimits{
		Limits: model.CounterLimits{PriceNegotiation: intPtr(1), LOIRequests: 1},
		Usage:  model.CounterUsage{Price: 1, LOI: 1},
	})

	seen := map[string]bool{}
	for _, ct := range []model.CounterType{model.CounterPrice, model.CounterLOI} {
		for _, role := range []model.Role{model.RoleBuyer, model.RoleSeller} {
			n := exhausted.Notice(ct, role)
			assert.Equal(t, LimitReached, n.Level)
			assert.False(t, seen[n.Message], "duplicate message %q", n.Message)
			seen[n.Message] = true
		}
	}
}

func TestCounterTracker_InvalidType(t *testing.T) {
	tr := NewCounterTracker(nil)
	assert.False(t, tr.CanMakeCounter("barter"))
}
