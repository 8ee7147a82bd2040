package utils

import (
	"math"
	"strings"
	"testing"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDetectedFields(t *testing.T) {
	fields := []dto.DetectedField{
		{Type: "vendor", Text: "Acme Corp", BoundingBox: dto.NormalizedBox{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.1}},
		{Type: "total", Text: "€ 1.320,00 EUR", BoundingBox: dto.NormalizedBox{X: 0.6, Y: 0.8, Width: 0.2, Height: 0.04}},
	}

	annotations := NormalizeDetectedFields(fields)
	require.Len(t, annotations, 2)

	vendor := annotations[0]
	assert.Equal(t, dto.FieldVendor, vendor.Type)
	assert.Equal(t, "Acme Corp", vendor.Value)
	assert.InDelta(t, 0.2, vendor.X, 1e-9)
	assert.InDelta(t, 0.15, vendor.Y, 1e-9)
	assert.Equal(t, "#10b981", vendor.Color)
	require.NotNil(t, vendor.BoundingBox)
	assert.Equal(t, fields[0].BoundingBox, *vendor.BoundingBox)

	total := annotations[1]
	assert.Equal(t, "1.320,00", total.Value)
	assert.Equal(t, "#ec4899", total.Color)
}

func TestNormalizeGeneratesDistinctIDs(t *testing.T) {
	fields := []dto.DetectedField{
		{Type: "vendor", Text: "A"},
		{Type: "date", Text: "B"},
		{Type: "notes", Text: "C"},
	}

	first := NormalizeDetectedFields(fields)
	second := NormalizeDetectedFields(fields)

	seen := make(map[string]bool)
	for _, ann := range append(first, second...) {
		assert.True(t, strings.HasPrefix(ann.ID, string(ann.Type)+"-"), ann.ID)
		assert.False(t, seen[ann.ID], "id reused: %s", ann.ID)
		seen[ann.ID] = true
	}
}

func TestNormalizeKeepsOnePerType(t *testing.T) {
	fields := []dto.DetectedField{
		{Type: "total", Text: "10", Confidence: 0.5},
		{Type: "vendor", Text: "Acme"},
		{Type: "total", Text: "20", Confidence: 0.9},
		{Type: "total", Text: "30", Confidence: 0.7},
		{Type: "vendor", Text: "Acme Inc"},
	}

	annotations := NormalizeDetectedFields(fields)
	require.Len(t, annotations, 2)

	// first-seen order is kept
	assert.Equal(t, dto.FieldTotal, annotations[0].Type)
	assert.Equal(t, "20", annotations[0].Value)
	// equal confidence goes to the later field
	assert.Equal(t, "Acme Inc", annotations[1].Value)
}

func TestNormalizeSkipsUnknownTypes(t *testing.T) {
	annotations := NormalizeDetectedFields([]dto.DetectedField{{Type: "Signature", Text: "x"}})
	assert.Empty(t, annotations)
}

func TestNormalizeClampsBoxes(t *testing.T) {
	annotations := NormalizeDetectedFields([]dto.DetectedField{
		{Type: "notes", Text: "n", BoundingBox: dto.NormalizedBox{X: -0.1, Y: 0.5, Width: 0.3, Height: 0.7}},
	})
	require.Len(t, annotations, 1)

	box := annotations[0].BoundingBox
	assert.InDelta(t, 0.0, box.X, 1e-9)
	assert.InDelta(t, 0.5, box.Y, 1e-9)
	assert.InDelta(t, 0.3, box.Width, 1e-9)
	assert.InDelta(t, 0.5, box.Height, 1e-9)
	assert.InDelta(t, 0.15, annotations[0].X, 1e-9)
	assert.InDelta(t, 0.75, annotations[0].Y, 1e-9)
}

func TestClampBox(t *testing.T) {
	tests := []struct {
		name string
		in   dto.NormalizedBox
		want dto.NormalizedBox
	}{
		{"inside", dto.NormalizedBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}, dto.NormalizedBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}},
		{"negative size", dto.NormalizedBox{X: 0.5, Y: 0.5, Width: -1, Height: -1}, dto.NormalizedBox{X: 0.5, Y: 0.5}},
		{"past the edge", dto.NormalizedBox{X: 1.5, Y: 0.9, Width: 0.2, Height: 0.2}, dto.NormalizedBox{X: 1, Y: 0.9, Width: 0, Height: 0.1}},
		{"not a number", dto.NormalizedBox{X: math.NaN(), Y: math.Inf(1), Width: math.NaN(), Height: 0.1}, dto.NormalizedBox{Height: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampBox(tt.in)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.want.Width, got.Width, 1e-9)
			assert.InDelta(t, tt.want.Height, got.Height, 1e-9)
		})
	}
}

func TestCleanMoneyValue(t *testing.T) {
	assert.Equal(t, "1,250.00", CleanMoneyValue("$1,250.00"))
	assert.Equal(t, "99", CleanMoneyValue(" USD 99 "))
	assert.Equal(t, "", CleanMoneyValue("n/a"))
}

func TestFieldColor(t *testing.T) {
	for _, ft := range dto.FieldTypes {
		assert.NotEmpty(t, FieldColor(ft))
	}
	assert.Equal(t, DefaultFieldColor, FieldColor("unknown"))
}
