package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"khabiteq-backend/model"
	"khabiteq-backend/usecase"
)

type SelectionController struct {
	registry *usecase.SelectionRegistry
	logger   *zap.Logger
}

func NewSelectionController(registry *usecase.SelectionRegistry, logger *zap.Logger) *SelectionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionController{registry: registry, logger: logger}
}

func (c *SelectionController) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /selections/{owner}", c.GetSelection)

	mux.HandleFunc("POST /selections/{owner}/inspection/toggle", c.ToggleInspection)
	mux.HandleFunc("DELETE /selections/{owner}/inspection", c.ClearInspection)
	mux.HandleFunc("DELETE /selections/{owner}/inspection/{propertyId}", c.RemoveInspection)

	mux.HandleFunc("PUT /selections/{owner}/prices", c.PutNegotiatedPrice)
	mux.HandleFunc("DELETE /selections/{owner}/prices", c.ClearNegotiatedPrices)
	mux.HandleFunc("DELETE /selections/{owner}/prices/{propertyId}", c.ClearNegotiatedPrice)

	mux.HandleFunc("PUT /selections/{owner}/loi", c.PutLOIDocument)
	mux.HandleFunc("DELETE /selections/{owner}/loi", c.ClearLOIDocuments)
	mux.HandleFunc("DELETE /selections/{owner}/loi/{propertyId}", c.ClearLOIDocument)
}

type toggleBody struct {
	PropertyID string          `json:"propertyId"`
	Property   json.RawMessage `json:"property"`
	SourceTab  string          `json:"sourceTab,omitempty"`
	SourcePage string          `json:"sourcePage,omitempty"`
}

func (c *SelectionController) cache(w http.ResponseWriter, r *http.Request) (*usecase.SelectionCache, bool) {
	cache, err := c.registry.Get(r.Context(), r.PathValue("owner"))
	if err != nil {
		c.logger.Error("failed to load selection", zap.String("owner", r.PathValue("owner")), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "your saved selection could not be loaded, please try again")
		return nil, false
	}
	return cache, true
}

func (c *SelectionController) GetSelection(w http.ResponseWriter, r *http.Request) {
	cache, ok := c.cache(w, r)
	if !ok {
		return
	}
	writeOK(w, cache.State(), "")
}

func (c *SelectionController) ToggleInspection(w http.ResponseWriter, r *http.Request) {
	cache, ok := c.cache(w, r)
	if !ok {
		return
	}

	var body toggleBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	selected, err := cache.ToggleInspection(r.Context(), model.SelectedInspectionProperty{
		PropertyID: body.PropertyID,
		Property:   body.Property,
		SourceTab:  body.SourceTab,
		SourcePage: body.SourcePage,
	})
	if err != nil {
		c.fail(w, err)
		return
	}

	msg := "Property removed from inspection"
	if selected {
		msg = "Property added for inspection"
	}
	writeOK(w, map[string]any{"selected": selected, "state": cache.State()}, msg)
}

func (c *SelectionController) RemoveInspection(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.RemoveFromInspection(r.Context(), r.PathValue("propertyId"))
	})
}

func (c *SelectionController) ClearInspection(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.ClearInspectionSelection(r.Context())
	})
}

func (c *SelectionController) PutNegotiatedPrice(w http.ResponseWriter, r *http.Request) {
	var entry model.NegotiatedPriceEntry
	if err := decodeBody(w, r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if entry.NegotiatedPrice <= 0 {
		writeError(w, http.StatusBadRequest, "negotiatedPrice must be positive")
		return
	}
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.AddNegotiatedPrice(r.Context(), entry)
	})
}

func (c *SelectionController) ClearNegotiatedPrice(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.ClearNegotiatedPrice(r.Context(), r.PathValue("propertyId"))
	})
}

func (c *SelectionController) ClearNegotiatedPrices(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.ClearAllNegotiatedPrices(r.Context())
	})
}

func (c *SelectionController) PutLOIDocument(w http.ResponseWriter, r *http.Request) {
	var entry model.LOIDocumentEntry
	if err := decodeBody(w, r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if entry.DocumentURL == "" {
		writeError(w, http.StatusBadRequest, "documentUrl is required")
		return
	}
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.AddLOIDocument(r.Context(), entry)
	})
}

func (c *SelectionController) ClearLOIDocument(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.ClearLOIDocument(r.Context(), r.PathValue("propertyId"))
	})
}

func (c *SelectionController) ClearLOIDocuments(w http.ResponseWriter, r *http.Request) {
	c.mutate(w, r, func(cache *usecase.SelectionCache) error {
		return cache.ClearAllLOIDocuments(r.Context())
	})
}

// mutate runs fn against the owner's cache and answers with the new state.
func (c *SelectionController) mutate(w http.ResponseWriter, r *http.Request, fn func(*usecase.SelectionCache) error) {
	cache, ok := c.cache(w, r)
	if !ok {
		return
	}
	if err := fn(cache); err != nil {
		c.fail(w, err)
		return
	}
	writeOK(w, cache.State(), "")
}

func (c *SelectionController) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrInspectionLimit):
		writeError(w, http.StatusConflict, "You can only select up to 2 properties for inspection")
	case errors.Is(err, usecase.ErrMissingPropertyID):
		writeError(w, http.StatusBadRequest, "propertyId is required")
	case errors.Is(err, usecase.ErrPersistFailed):
		c.logger.Error("selection not persisted", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "your selection could not be saved")
	default:
		c.logger.Error("selection request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}
