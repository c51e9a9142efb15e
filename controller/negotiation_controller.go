package controller

import (
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"khabiteq-backend/model"
	"khabiteq-backend/pkg/khabiteq"
	"khabiteq-backend/usecase"
)

type NegotiationController struct {
	usecase *usecase.NegotiationUsecase
	logger  *zap.Logger
}

func NewNegotiationController(usecase *usecase.NegotiationUsecase, logger *zap.Logger) *NegotiationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NegotiationController{usecase: usecase, logger: logger}
}

func (c *NegotiationController) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /negotiations/{id}", c.GetNegotiation)
	mux.HandleFunc("GET /negotiations/{id}/history", c.GetHistory)
	mux.HandleFunc("GET /negotiations/{id}/counters/{type}", c.GetCounters)
	mux.HandleFunc("POST /negotiations/{id}/accept", c.Accept)
	mux.HandleFunc("POST /negotiations/{id}/reject", c.Reject)
	mux.HandleFunc("POST /negotiations/{id}/counter", c.Counter)
}

type actionBody struct {
	Role        model.Role        `json:"role"`
	Reason      string            `json:"reason,omitempty"`
	CounterType model.CounterType `json:"counterType,omitempty"`
	Amount      *float64          `json:"amount,omitempty"`
	Message     string            `json:"message,omitempty"`
}

func (c *NegotiationController) GetNegotiation(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be buyer or seller")
		return
	}

	view, err := c.usecase.GetNegotiation(r.Context(), r.PathValue("id"), role)
	if err != nil {
		c.fail(w, err)
		return
	}
	writeOK(w, view, view.Message)
}

func (c *NegotiationController) GetHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := c.usecase.History(r.Context(), r.PathValue("id"))
	if err != nil {
		c.fail(w, err)
		return
	}
	if logs == nil {
		logs = []model.NegotiationLog{}
	}
	writeOK(w, logs, "")
}

func (c *NegotiationController) GetCounters(w http.ResponseWriter, r *http.Request) {
	ct := model.CounterType(r.PathValue("type"))
	if !ct.Valid() {
		writeError(w, http.StatusBadRequest, "counter type must be price or loi")
		return
	}

	remaining, limited, err := c.usecase.CounterRemaining(r.Context(), r.PathValue("id"), ct)
	if err != nil {
		c.fail(w, err)
		return
	}
	data := map[string]any{"counterType": ct, "limited": limited}
	if limited {
		data["remaining"] = remaining
	}
	writeOK(w, data, "")
}

func (c *NegotiationController) Accept(w http.ResponseWriter, r *http.Request) {
	body, ok := c.readAction(w, r)
	if !ok {
		return
	}
	view, err := c.usecase.Accept(r.Context(), r.PathValue("id"), body.Role)
	if err != nil {
		c.fail(w, err)
		return
	}
	writeOK(w, view, view.Message)
}

func (c *NegotiationController) Reject(w http.ResponseWriter, r *http.Request) {
	body, ok := c.readAction(w, r)
	if !ok {
		return
	}
	view, err := c.usecase.Reject(r.Context(), r.PathValue("id"), body.Role, body.Reason)
	if err != nil {
		c.fail(w, err)
		return
	}
	writeOK(w, view, view.Message)
}

func (c *NegotiationController) Counter(w http.ResponseWriter, r *http.Request) {
	body, ok := c.readAction(w, r)
	if !ok {
		return
	}
	if !body.CounterType.Valid() {
		writeError(w, http.StatusBadRequest, "counterType must be price or loi")
		return
	}
	if body.CounterType == model.CounterPrice && (body.Amount == nil || *body.Amount <= 0) {
		writeError(w, http.StatusBadRequest, "a positive amount is required for a price counter")
		return
	}

	view, err := c.usecase.Counter(r.Context(), r.PathValue("id"), body.Role, body.CounterType, body.Amount, body.Message)
	if err != nil {
		c.fail(w, err)
		return
	}

	msg := view.Message
	if n := view.Counters[body.CounterType]; n.Level == usecase.LimitLastChance {
		msg = n.Message
	}
	writeOK(w, view, msg)
}

func (c *NegotiationController) readAction(w http.ResponseWriter, r *http.Request) (actionBody, bool) {
	var body actionBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return body, false
	}
	if !body.Role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be buyer or seller")
		return body, false
	}
	return body, true
}

func (c *NegotiationController) fail(w http.ResponseWriter, err error) {
	var limitErr *usecase.LimitError
	var apiErr *khabiteq.APIError
	var urlErr *url.Error

	switch {
	case errors.As(err, &limitErr):
		writeError(w, http.StatusConflict, limitErr.Notice.Message)
	case errors.Is(err, usecase.ErrCounterLimitReached):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, usecase.ErrInvalidCounterType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		}
		writeError(w, status, apiErr.Message)
	case errors.As(err, &urlErr):
		c.logger.Warn("khabiteq api unreachable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "the Khabiteq service is unavailable, please try again")
	default:
		c.logger.Error("negotiation request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}
