package dto

import (
	"errors"
	"strings"
)

// FieldType is one of the canonical invoice attributes the engine recognizes.
type FieldType string

const (
	FieldVendor   FieldType = "vendor"
	FieldDate     FieldType = "date"
	FieldDueDate  FieldType = "dueDate"
	FieldAmount   FieldType = "amount"
	FieldTax      FieldType = "tax"
	FieldTotal    FieldType = "total"
	FieldCurrency FieldType = "currency"
	FieldNotes    FieldType = "notes"
)

var ErrInvalidFieldType = errors.New("invalid field type")

// FieldTypes lists the canonical field types in form order.
var FieldTypes = []FieldType{
	FieldVendor,
	FieldDate,
	FieldDueDate,
	FieldAmount,
	FieldTax,
	FieldTotal,
	FieldCurrency,
	FieldNotes,
}

// IsValid reports whether t is one of the canonical field types.
func (t FieldType) IsValid() bool {
	for _, ft := range FieldTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// IsMoney reports whether values of this type are monetary amounts.
func (t FieldType) IsMoney() bool {
	return t == FieldAmount || t == FieldTax || t == FieldTotal
}

// ParseFieldType resolves an exact canonical name, ignoring case.
func ParseFieldType(s string) (FieldType, error) {
	s = strings.TrimSpace(s)
	for _, ft := range FieldTypes {
		if strings.EqualFold(s, string(ft)) {
			return ft, nil
		}
	}
	return "", ErrInvalidFieldType
}

// NormalizedBox is a rectangle expressed as fractions of the page size.
type NormalizedBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the centre point of the box.
func (b NormalizedBox) Center() Point {
	return Point{
		X: b.X + b.Width/2,
		Y: b.Y + b.Height/2,
	}
}

// Point is a position; normalized or pixel depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Annotation pins one field value to a location on the page.
type Annotation struct {
	ID          string         `json:"id"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Type        FieldType      `json:"type"`
	Value       string         `json:"value"`
	Color       string         `json:"color"`
	BoundingBox *NormalizedBox `json:"boundingBox,omitempty"`
}

// DetectedField is a single raw field produced by the response parser.
type DetectedField struct {
	Type        string        `json:"type"`
	Text        string        `json:"text"`
	BoundingBox NormalizedBox `json:"boundingBox"`
	Confidence  float64       `json:"confidence"`
}

// DetectionPayload is the structured response shape of a field detection service.
type DetectionPayload struct {
	Fields []DetectedField `json:"fields"`
}
