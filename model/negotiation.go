package model

import "time"

type NegotiationStatus string

const (
	StatusPendingInspection          NegotiationStatus = "pending_inspection"
	StatusInspectionApproved         NegotiationStatus = "inspection_approved"
	StatusInspectionRescheduled      NegotiationStatus = "inspection_rescheduled"
	StatusInspectionRejectedBySeller NegotiationStatus = "inspection_rejected_by_seller"
	StatusInspectionRejectedByBuyer  NegotiationStatus = "inspection_rejected_by_buyer"
	StatusNegotiationCountered       NegotiationStatus = "negotiation_countered"
	StatusNegotiationAccepted        NegotiationStatus = "negotiation_accepted"
	StatusNegotiationRejected        NegotiationStatus = "negotiation_rejected"
	StatusNegotiationCancelled       NegotiationStatus = "negotiation_cancelled"
	StatusCompleted                  NegotiationStatus = "completed"
	StatusCancelled                  NegotiationStatus = "cancelled"
)

// Party is whoever the negotiation is waiting on.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
	PartyNone   Party = "none"
)

// Role is the viewer of a negotiation. Only buyer and seller are valid.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

func (p Party) Valid() bool {
	return p == PartyBuyer || p == PartySeller || p == PartyNone
}

type NegotiationType string

const (
	NegotiationNormal NegotiationType = "normal"
	NegotiationLOI    NegotiationType = "LOI"
)

type CounterType string

const (
	CounterPrice CounterType = "price"
	CounterLOI   CounterType = "loi"
)

func (c CounterType) Valid() bool {
	return c == CounterPrice || c == CounterLOI
}

// CounterLimits caps how many counters each side may send.
// A nil PriceNegotiation means price counters are unlimited.
type CounterLimits struct {
	PriceNegotiation *int `json:"priceNegotiation"`
	LOIRequests      int  `json:"loiRequests"`
}

type CounterUsage struct {
	Price int `json:"price"`
	LOI   int `json:"loi"`
}

type NegotiationSnapshot struct {
	ID                  string            `json:"id"`
	PropertyID          string            `json:"propertyId,omitempty"`
	NegotiationStatus   NegotiationStatus `json:"negotiationStatus"`
	PendingResponseFrom Party             `json:"pendingResponseFrom"`
	Stage               string            `json:"stage"` // inspection, negotiation, completed
	NegotiationType     NegotiationType   `json:"negotiationType"`
	CurrentOffer        *float64          `json:"currentOffer,omitempty"`
	CounterLimits       CounterLimits     `json:"counterLimits"`
	CounterUsage        CounterUsage      `json:"counterUsage"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

type NegotiationLog struct {
	ID            string      `json:"id"`
	NegotiationID string      `json:"negotiation_id"`
	Action        string      `json:"action"` // ACCEPT, REJECT, COUNTER
	CounterType   CounterType `json:"counter_type,omitempty"`
	ActorRole     Role        `json:"actor_role"`
	Amount        *float64    `json:"amount,omitempty"` // Nullable
	Reason        string      `json:"reason,omitempty"`
	LogTime       time.Time   `json:"log_time"`
}
