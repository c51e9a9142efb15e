package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"khabiteq-backend/model"
	"khabiteq-backend/pkg/khabiteq"
)

// fakeAPI is an in-memory stand-in for the Khabiteq API. Counters bump usage
// and flip pendingResponseFrom the way the real API does.
type fakeAPI struct {
	mu    sync.Mutex
	snaps map[string]model.NegotiationSnapshot

	gets     atomic.Int32
	counters atomic.Int32
	actions  []khabiteq.ActionRequest

	getErr    error
	actionErr error
	block     chan struct{}
	onCounter func()
}

func newFakeAPI(snaps ...model.NegotiationSnapshot) *fakeAPI {
	f := &fakeAPI{snaps: make(map[string]model.NegotiationSnapshot)}
	for _, s := range snaps {
		f.snaps[s.ID] = s
	}
	return f
}

func (f *fakeAPI) GetNegotiation(ctx context.Context, id string) (*model.NegotiationSnapshot, error) {
	f.gets.Add(1)
	if f.block != nil {
		<-f.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	snap, ok := f.snaps[id]
	if !ok {
		return nil, &khabiteq.APIError{StatusCode: 404, Message: "negotiation not found"}
	}
	return &snap, nil
}

func (f *fakeAPI) act(id string, req khabiteq.ActionRequest, apply func(*model.NegotiationSnapshot)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return f.actionErr
	}
	f.actions = append(f.actions, req)
	snap := f.snaps[id]
	apply(&snap)
	f.snaps[id] = snap
	return nil
}

func (f *fakeAPI) AcceptNegotiation(ctx context.Context, id string, req khabiteq.ActionRequest) error {
	return f.act(id, req, func(s *model.NegotiationSnapshot) {
		s.NegotiationStatus = model.StatusNegotiationAccepted
		s.PendingResponseFrom = model.PartyNone
	})
}

func (f *fakeAPI) RejectNegotiation(ctx context.Context, id string, req khabiteq.ActionRequest) error {
	return f.act(id, req, func(s *model.NegotiationSnapshot) {
		s.NegotiationStatus = model.StatusNegotiationRejected
		s.PendingResponseFrom = model.PartyNone
	})
}

func (f *fakeAPI) CounterNegotiation(ctx context.Context, id string, req khabiteq.ActionRequest) error {
	f.counters.Add(1)
	if f.onCounter != nil {
		f.onCounter()
	}
	return f.act(id, req, func(s *model.NegotiationSnapshot) {
		s.NegotiationStatus = model.StatusNegotiationCountered
		if req.Role == model.RoleBuyer {
			s.PendingResponseFrom = model.PartySeller
		} else {
			s.PendingResponseFrom = model.PartyBuyer
		}
		if req.CounterType == model.CounterLOI {
			s.CounterUsage.LOI++
		} else {
			s.CounterUsage.Price++
		}
		if req.Amount != nil {
			amount := *req.Amount
			s.CurrentOffer = &amount
		}
	})
}

func (f *fakeAPI) set(snap model.NegotiationSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[snap.ID] = snap
}
