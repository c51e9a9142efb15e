package model

import "encoding/json"

type SelectedInspectionProperty struct {
	PropertyID string          `json:"propertyId"`
	Property   json.RawMessage `json:"property"`
	SourceTab  string          `json:"sourceTab,omitempty"`
	SourcePage string          `json:"sourcePage,omitempty"`
}

type NegotiatedPriceEntry struct {
	PropertyID      string  `json:"propertyId"`
	OriginalPrice   float64 `json:"originalPrice"`
	NegotiatedPrice float64 `json:"negotiatedPrice"`
}

// LOIDocumentEntry records an uploaded letter of intent. The file itself lives
// behind DocumentURL; only its name and size are kept here.
type LOIDocumentEntry struct {
	PropertyID   string `json:"propertyId"`
	DocumentName string `json:"documentName"`
	DocumentSize int64  `json:"documentSize,omitempty"`
	DocumentURL  string `json:"documentUrl"`
}

type SelectionState struct {
	Inspection       []SelectedInspectionProperty `json:"inspection"`
	NegotiatedPrices []NegotiatedPriceEntry       `json:"negotiatedPrices"`
	LOIDocuments     []LOIDocumentEntry           `json:"loiDocuments"`
}
