package utils

import (
	"math"
	"regexp"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/google/uuid"
)

// DefaultFieldColor is used for anything outside the colour table.
const DefaultFieldColor = "#3b82f6"

// FieldColors gives every canonical field a stable display colour.
var FieldColors = map[dto.FieldType]string{
	dto.FieldVendor:   "#10b981", // green
	dto.FieldDate:     "#3b82f6", // blue
	dto.FieldDueDate:  "#8b5cf6", // purple
	dto.FieldAmount:   "#f59e0b", // amber
	dto.FieldTax:      "#ef4444", // red
	dto.FieldTotal:    "#ec4899", // pink
	dto.FieldCurrency: "#06b6d4", // cyan
	dto.FieldNotes:    "#6b7280", // gray
}

var reMoneyNoise = regexp.MustCompile(`[^0-9.,]`)

// FieldColor returns the display colour for a field type.
func FieldColor(ft dto.FieldType) string {
	if c, ok := FieldColors[ft]; ok {
		return c
	}
	return DefaultFieldColor
}

// CleanMoneyValue keeps only digits, commas and periods.
func CleanMoneyValue(text string) string {
	return reMoneyNoise.ReplaceAllString(text, "")
}

// NewAnnotationID returns a fresh opaque identity for an annotation of the given type.
func NewAnnotationID(ft dto.FieldType) string {
	return string(ft) + "-" + uuid.NewString()
}

// ClampBox pulls a noisy box into the unit square.
func ClampBox(b dto.NormalizedBox) dto.NormalizedBox {
	b.X = clampUnit(b.X)
	b.Y = clampUnit(b.Y)
	b.Width = math.Max(0, sanitize(b.Width))
	b.Height = math.Max(0, sanitize(b.Height))
	if b.X+b.Width > 1 {
		b.Width = 1 - b.X
	}
	if b.Y+b.Height > 1 {
		b.Height = 1 - b.Y
	}
	return b
}

func clampUnit(v float64) float64 {
	return math.Min(1, math.Max(0, sanitize(v)))
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// NormalizeDetectedFields turns accepted parser output into annotations.
// Fields whose type is not canonical are skipped. When a type occurs more than
// once, the highest confidence wins and ties go to the later field.
func NormalizeDetectedFields(fields []dto.DetectedField) []dto.Annotation {
	type candidate struct {
		annotation dto.Annotation
		confidence float64
	}

	var order []dto.FieldType
	best := make(map[dto.FieldType]candidate)

	for _, field := range fields {
		ft := dto.FieldType(field.Type)
		if !ft.IsValid() {
			continue
		}

		box := ClampBox(field.BoundingBox)
		center := box.Center()
		value := field.Text
		if ft.IsMoney() {
			value = CleanMoneyValue(value)
		}

		ann := dto.Annotation{
			ID:          NewAnnotationID(ft),
			X:           center.X,
			Y:           center.Y,
			Type:        ft,
			Value:       value,
			Color:       FieldColor(ft),
			BoundingBox: &box,
		}

		prev, seen := best[ft]
		if !seen {
			order = append(order, ft)
		}
		if !seen || field.Confidence >= prev.confidence {
			best[ft] = candidate{annotation: ann, confidence: field.Confidence}
		}
	}

	annotations := make([]dto.Annotation, 0, len(order))
	for _, ft := range order {
		annotations = append(annotations, best[ft].annotation)
	}
	return annotations
}
