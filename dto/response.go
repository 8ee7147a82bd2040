package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// DetectionTier names the parser strategy that produced a result.
type DetectionTier string

const (
	TierNone         DetectionTier = "none"
	TierJSON         DetectionTier = "json"
	TierLabeledBlock DetectionTier = "labeled_block"
	TierKeyValue     DetectionTier = "key_value"
)

// DetectionResponse is returned after a detection pass for a document.
type DetectionResponse struct {
	DocumentID      string        `json:"documentId"`
	Detector        string        `json:"detector,omitempty"`
	Tier            DetectionTier `json:"tier"`
	Annotations     []Annotation  `json:"annotations"`
	Dropped         int           `json:"dropped"`
	NothingDetected bool          `json:"nothingDetected"`
	Stale           bool          `json:"stale"`
	ProcessedAt     string        `json:"processedAt"`
}

// AnnotationsResponse lists the live annotations of a document.
type AnnotationsResponse struct {
	DocumentID  string       `json:"documentId"`
	Annotations []Annotation `json:"annotations"`
}

// OverlayResponse carries pixel geometry for every annotation of a document.
type OverlayResponse struct {
	DocumentID    string       `json:"documentId"`
	ViewportReady bool         `json:"viewportReady"`
	Viewport      *PdfViewport `json:"viewport,omitempty"`
	Overlays      []Overlay    `json:"overlays"`
}

// InvoiceForm is the structured form populated from annotation values.
type InvoiceForm struct {
	Vendor    string      `json:"vendor"`
	Date      string      `json:"date"`
	DueDate   string      `json:"dueDate"`
	Amount    float64     `json:"amount"`
	Tax       float64     `json:"tax"`
	Total     float64     `json:"total"`
	Currency  string      `json:"currency"`
	Notes     string      `json:"notes"`
	Connected []FieldType `json:"connected"`
}
