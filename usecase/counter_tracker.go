package usecase

import "khabiteq-backend/model"

// NegotiationLimits is the optional capability of knowing a negotiation's counter
// limits and how many counters were already spent. Callers without it pass nil.
type NegotiationLimits interface {
	CounterLimits() model.CounterLimits
	CounterUsage() model.CounterUsage
}

type LimitLevel string

const (
	LimitOK         LimitLevel = "ok"
	LimitLastChance LimitLevel = "last_chance"
	LimitReached    LimitLevel = "reached"
)

type LimitNotice struct {
	Level     LimitLevel `json:"level"`
	Limited   bool       `json:"limited"`
	Remaining int        `json:"remaining"`
	Message   string     `json:"message,omitempty"`
}

// CounterTracker answers whether another counter may be sent. It mirrors counts the
// server enforces and is advisory only; CounterGuard is the authority.
type CounterTracker struct {
	limits NegotiationLimits
}

func NewCounterTracker(limits NegotiationLimits) *CounterTracker {
	return &CounterTracker{limits: limits}
}

// RemainingCounters returns how many counters of the type are left. limited is
// false when the type has no ceiling, in which case remaining is meaningless.
func (t *CounterTracker) RemainingCounters(ct model.CounterType) (remaining int, limited bool) {
	if !ct.Valid() {
		return 0, true
	}
	if t.limits == nil {
		return 0, false
	}

	limits := t.limits.CounterLimits()
	usage := t.limits.CounterUsage()

	var limit *int
	var used int
	switch ct {
	case model.CounterPrice:
		limit, used = limits.PriceNegotiation, usage.Price
	case model.CounterLOI:
		limit, used = &limits.LOIRequests, usage.LOI
	}
	if limit == nil {
		return 0, false
	}
	return max(*limit-used, 0), true
}

func (t *CounterTracker) CanMakeCounter(ct model.CounterType) bool {
	remaining, limited := t.RemainingCounters(ct)
	return !limited || remaining > 0
}

// Notice describes the limit state for the viewer: a warning when one counter
// is left, a block message when none are.
func (t *CounterTracker) Notice(ct model.CounterType, role model.Role) LimitNotice {
	remaining, limited := t.RemainingCounters(ct)
	n := LimitNotice{Level: LimitOK, Limited: limited, Remaining: remaining}
	if !limited {
		return n
	}

	switch remaining {
	case 0:
		n.Level = LimitReached
		n.Message = reachedMessage(ct, role)
	case 1:
		n.Level = LimitLastChance
		n.Message = lastChanceMessage(ct, role)
	}
	return n
}

func reachedMessage(ct model.CounterType, role model.Role) string {
	if ct == model.CounterLOI {
		if role == model.RoleSeller {
			return "You have reached the maximum number of LOI change requests for this negotiation. Please accept or reject the buyer's LOI."
		}
		return "You have reached the maximum number of LOI resubmissions for this negotiation. Please wait for the seller's decision."
	}
	if role == model.RoleSeller {
		return "You have reached the maximum number of counter-offers. You can only accept or reject the buyer's offer."
	}
	return "You have reached the maximum number of counter-offers. You can only accept or reject the seller's offer."
}

func lastChanceMessage(ct model.CounterType, role model.Role) string {
	if ct == model.CounterLOI {
		if role == model.RoleSeller {
			return "This is your last chance to request changes to the buyer's LOI."
		}
		return "This is your last chance to resubmit your LOI."
	}
	if role == model.RoleSeller {
		return "This is your last counter-offer. After this you can only accept or reject the buyer's response."
	}
	return "This is your last counter-offer. After this you can only accept or reject the seller's response."
}

// StaticLimits adapts plain values to NegotiationLimits.
type StaticLimits struct {
	Limits model.CounterLimits
	Usage  model.CounterUsage
}

func (s StaticLimits) CounterLimits() model.CounterLimits { return s.Limits }
func (s StaticLimits) CounterUsage() model.CounterUsage   { return s.Usage }
