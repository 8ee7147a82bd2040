package dto

// PdfViewport describes how a page is currently drawn inside its scroll container.
// It is recomputed on every render or zoom and always replaced as a whole.
type PdfViewport struct {
	OriginalWidth  float64 `json:"originalWidth"`
	OriginalHeight float64 `json:"originalHeight"`
	RenderedWidth  float64 `json:"renderedWidth"`
	RenderedHeight float64 `json:"renderedHeight"`
	OffsetX        float64 `json:"offsetX"`
	OffsetY        float64 `json:"offsetY"`
}

// Scale returns the horizontal render scale, or 0 when the original size is unknown.
func (v PdfViewport) Scale() float64 {
	if v.OriginalWidth <= 0 {
		return 0
	}
	return v.RenderedWidth / v.OriginalWidth
}

// PixelBox is a rectangle in pixels relative to the rendering container's top-left corner.
type PixelBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Overlay is what the renderer needs to draw one annotation over the page.
type Overlay struct {
	AnnotationID string    `json:"annotationId"`
	Type         FieldType `json:"type"`
	Color        string    `json:"color"`
	Value        string    `json:"value"`
	Box          PixelBox  `json:"box"`
	Anchor       Point     `json:"anchor"`
}

// PageSize is the original size of a page in PDF points (or pixels for images).
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextLine is one line of recognized text with its pixel box on the page image.
type TextLine struct {
	Text   string
	X      int
	Y      int
	Width  int
	Height int
}

// DetectionPage is everything a field detection service may look at for one page.
type DetectionPage struct {
	DocumentID  string
	PageNumber  int
	Filename    string
	MimeType    string
	Data        []byte // original upload
	Image       []byte // page image, PNG encoded; empty for text-only sources
	ImageWidth  int
	ImageHeight int
	Size        PageSize
}

// IsPDF reports whether the upload is a PDF document.
func (p *DetectionPage) IsPDF() bool {
	return p.MimeType == "application/pdf"
}
