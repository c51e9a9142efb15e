package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"khabiteq-backend/model"
	"khabiteq-backend/storage"
)

const (
	InspectionStorageKey      = "khabiteq:selected-inspection-properties"
	NegotiatedPriceStorageKey = "khabiteq:negotiated-prices"
	LOIDocumentStorageKey     = "khabiteq:loi-documents"

	MaxInspectionSelections = 2
)

// SelectionCache holds one owner's inspection selection, negotiated prices and
// LOI documents. Every mutation is written through to the store and only kept
// in memory once the write succeeded. Safe for concurrent use.
type SelectionCache struct {
	store  storage.Store
	logger *zap.Logger

	mu         sync.Mutex
	inspection []model.SelectedInspectionProperty
	prices     []model.NegotiatedPriceEntry
	documents  []model.LOIDocumentEntry
}

func NewSelectionCache(store storage.Store, logger *zap.Logger) *SelectionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionCache{store: store, logger: logger}
}

// Load restores all sections from the store. A section holding corrupt JSON is
// deleted from the store and starts empty; that is not an error.
func (c *SelectionCache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	var err error
	if c.inspection, err = restore[model.SelectedInspectionProperty](ctx, c, InspectionStorageKey); err != nil {
		errs = append(errs, err)
	}
	if c.prices, err = restore[model.NegotiatedPriceEntry](ctx, c, NegotiatedPriceStorageKey); err != nil {
		errs = append(errs, err)
	}
	if c.documents, err = restore[model.LOIDocumentEntry](ctx, c, LOIDocumentStorageKey); err != nil {
		errs = append(errs, err)
	}

	c.inspection = dedupe(c.inspection, func(p model.SelectedInspectionProperty) string { return p.PropertyID })
	c.prices = dedupe(c.prices, func(e model.NegotiatedPriceEntry) string { return e.PropertyID })
	c.documents = dedupe(c.documents, func(e model.LOIDocumentEntry) string { return e.PropertyID })
	if len(c.inspection) > MaxInspectionSelections {
		c.logger.Warn("stored inspection selection over capacity, truncating",
			zap.Int("stored", len(c.inspection)))
		c.inspection = c.inspection[:MaxInspectionSelections]
	}

	if len(errs) > 0 {
		return fmt.Errorf("load selection: %w", errors.Join(errs...))
	}
	return nil
}

func restore[T any](ctx context.Context, c *SelectionCache, key string) ([]T, error) {
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("failed to read selection", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn("corrupt selection in storage, resetting",
			zap.String("key", key), zap.Error(err))
		if derr := c.store.Delete(ctx, key); derr != nil {
			c.logger.Error("failed to delete corrupt selection", zap.String("key", key), zap.Error(derr))
		}
		return nil, nil
	}
	return items, nil
}

func dedupe[T any](items []T, id func(T) string) []T {
	seen := make(map[string]int, len(items))
	out := items[:0]
	for _, it := range items {
		k := id(it)
		if k == "" {
			continue
		}
		if i, ok := seen[k]; ok {
			out[i] = it // last write wins
			continue
		}
		seen[k] = len(out)
		out = append(out, it)
	}
	return out
}

func (c *SelectionCache) persist(ctx context.Context, key string, items any, n int) error {
	var err error
	if n == 0 {
		err = c.store.Delete(ctx, key)
	} else {
		var raw []byte
		raw, err = json.Marshal(items)
		if err == nil {
			err = c.store.Set(ctx, key, raw)
		}
	}
	if err != nil {
		c.logger.Error("failed to persist selection", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}

// ---- inspection ----

// ToggleInspection selects the property if it is not selected and there is room,
// and deselects it if it is. selected reports the resulting state. When two
// properties are already selected, ErrInspectionLimit is returned and nothing changes.
func (c *SelectionCache) ToggleInspection(ctx context.Context, property model.SelectedInspectionProperty) (selected bool, err error) {
	if property.PropertyID == "" {
		return false, ErrMissingPropertyID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.inspectionIndex(property.PropertyID); i >= 0 {
		next := slices.Delete(slices.Clone(c.inspection), i, i+1)
		if err := c.persist(ctx, InspectionStorageKey, next, len(next)); err != nil {
			return true, err
		}
		c.inspection = next
		return false, nil
	}

	if len(c.inspection) >= MaxInspectionSelections {
		return false, ErrInspectionLimit
	}

	next := append(slices.Clone(c.inspection), property)
	if err := c.persist(ctx, InspectionStorageKey, next, len(next)); err != nil {
		return false, err
	}
	c.inspection = next
	return true, nil
}

func (c *SelectionCache) inspectionIndex(propertyID string) int {
	return slices.IndexFunc(c.inspection, func(p model.SelectedInspectionProperty) bool {
		return p.PropertyID == propertyID
	})
}

func (c *SelectionCache) IsSelectedForInspection(propertyID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inspectionIndex(propertyID) >= 0
}

func (c *SelectionCache) InspectionSelection() []model.SelectedInspectionProperty {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.inspection)
}

func (c *SelectionCache) CanSelectMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inspection) < MaxInspectionSelections
}

// RemoveFromInspection deselects a property. Unknown ids are a no-op.
func (c *SelectionCache) RemoveFromInspection(ctx context.Context, propertyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.inspectionIndex(propertyID)
	if i < 0 {
		return nil
	}
	next := slices.Delete(slices.Clone(c.inspection), i, i+1)
	if err := c.persist(ctx, InspectionStorageKey, next, len(next)); err != nil {
		return err
	}
	c.inspection = next
	return nil
}

func (c *SelectionCache) ClearInspectionSelection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.persist(ctx, InspectionStorageKey, nil, 0); err != nil {
		return err
	}
	c.inspection = nil
	return nil
}

// ---- negotiated prices ----

func (c *SelectionCache) AddNegotiatedPrice(ctx context.Context, entry model.NegotiatedPriceEntry) error {
	if entry.PropertyID == "" {
		return ErrMissingPropertyID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := upsert(c.prices, entry, func(e model.NegotiatedPriceEntry) bool { return e.PropertyID == entry.PropertyID })
	if err := c.persist(ctx, NegotiatedPriceStorageKey, next, len(next)); err != nil {
		return err
	}
	c.prices = next
	return nil
}

func (c *SelectionCache) NegotiatedPrice(propertyID string) (model.NegotiatedPriceEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.IndexFunc(c.prices, func(e model.NegotiatedPriceEntry) bool { return e.PropertyID == propertyID })
	if i < 0 {
		return model.NegotiatedPriceEntry{}, false
	}
	return c.prices[i], true
}

func (c *SelectionCache) NegotiatedPrices() []model.NegotiatedPriceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.prices)
}

func (c *SelectionCache) ClearNegotiatedPrice(ctx context.Context, propertyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(c.prices), func(e model.NegotiatedPriceEntry) bool { return e.PropertyID == propertyID })
	if len(next) == len(c.prices) {
		return nil
	}
	if err := c.persist(ctx, NegotiatedPriceStorageKey, next, len(next)); err != nil {
		return err
	}
	c.prices = next
	return nil
}

func (c *SelectionCache) ClearAllNegotiatedPrices(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.persist(ctx, NegotiatedPriceStorageKey, nil, 0); err != nil {
		return err
	}
	c.prices = nil
	return nil
}

// ---- LOI documents ----

func (c *SelectionCache) AddLOIDocument(ctx context.Context, entry model.LOIDocumentEntry) error {
	if entry.PropertyID == "" {
		return ErrMissingPropertyID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := upsert(c.documents, entry, func(e model.LOIDocumentEntry) bool { return e.PropertyID == entry.PropertyID })
	if err := c.persist(ctx, LOIDocumentStorageKey, next, len(next)); err != nil {
		return err
	}
	c.documents = next
	return nil
}

func (c *SelectionCache) LOIDocument(propertyID string) (model.LOIDocumentEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.IndexFunc(c.documents, func(e model.LOIDocumentEntry) bool { return e.PropertyID == propertyID })
	if i < 0 {
		return model.LOIDocumentEntry{}, false
	}
	return c.documents[i], true
}

func (c *SelectionCache) LOIDocuments() []model.LOIDocumentEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.documents)
}

func (c *SelectionCache) ClearLOIDocument(ctx context.Context, propertyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(c.documents), func(e model.LOIDocumentEntry) bool { return e.PropertyID == propertyID })
	if len(next) == len(c.documents) {
		return nil
	}
	if err := c.persist(ctx, LOIDocumentStorageKey, next, len(next)); err != nil {
		return err
	}
	c.documents = next
	return nil
}

func (c *SelectionCache) ClearAllLOIDocuments(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.persist(ctx, LOIDocumentStorageKey, nil, 0); err != nil {
		return err
	}
	c.documents = nil
	return nil
}

// State returns a copy of every section.
func (c *SelectionCache) State() model.SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.SelectionState{
		Inspection:       nonNil(slices.Clone(c.inspection)),
		NegotiatedPrices: nonNil(slices.Clone(c.prices)),
		LOIDocuments:     nonNil(slices.Clone(c.documents)),
	}
}

// upsert returns a copy of items with entry replacing the first match, or appended.
func upsert[T any](items []T, entry T, match func(T) bool) []T {
	out := slices.Clone(items)
	if i := slices.IndexFunc(out, match); i >= 0 {
		out[i] = entry
		return out
	}
	return append(out, entry)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
