package utils

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/sirupsen/logrus"
)

// DetectionTier is one fallback strategy of the response parser. Parse reports
// false when the raw response does not have the shape this tier understands.
type DetectionTier interface {
	Name() dto.DetectionTier
	Parse(raw string) ([]dto.DetectedField, bool)
}

// ParseResult is the outcome of running a raw response through the tier chain.
type ParseResult struct {
	Tier    dto.DetectionTier
	Fields  []dto.DetectedField
	Dropped int
}

// Empty reports whether nothing usable was detected.
func (r ParseResult) Empty() bool {
	return len(r.Fields) == 0
}

// DetectionParser runs tiers in order and stops at the first one that matches.
type DetectionParser struct {
	tiers []DetectionTier
}

// NewDetectionParser builds a parser over the given tiers.
func NewDetectionParser(tiers ...DetectionTier) *DetectionParser {
	return &DetectionParser{tiers: tiers}
}

// DefaultDetectionParser returns the JSON → labeled block → key-value chain.
func DefaultDetectionParser() *DetectionParser {
	return NewDetectionParser(JSONTier{}, LabeledBlockTier{}, KeyValueTier{})
}

// Parse never fails: a response no tier understands yields an empty result with TierNone.
func (p *DetectionParser) Parse(raw string) ParseResult {
	for _, tier := range p.tiers {
		fields, ok := tier.Parse(raw)
		if !ok {
			continue
		}

		result := ParseResult{Tier: tier.Name()}
		for _, field := range fields {
			accepted, ok := acceptField(tier.Name(), field)
			if !ok {
				result.Dropped++
				logrus.WithFields(logrus.Fields{
					"tier":  tier.Name(),
					"label": field.Type,
				}).Debug("Dropping unclassifiable field")
				continue
			}
			result.Fields = append(result.Fields, accepted)
		}
		return result
	}

	return ParseResult{Tier: dto.TierNone}
}

// acceptField resolves the field's label to a canonical type. Canonical JSON
// labels are trusted; everything else goes through the classifier.
func acceptField(tier dto.DetectionTier, field dto.DetectedField) (dto.DetectedField, bool) {
	if tier == dto.TierJSON && dto.FieldType(field.Type).IsValid() {
		return field, true
	}
	ft, ok := ClassifyFieldType(field.Type)
	if !ok {
		return field, false
	}
	field.Type = string(ft)
	return field, true
}

// ---------------- JSON ----------------

// JSONTier decodes a {"fields": [...]} object.
type JSONTier struct{}

func (JSONTier) Name() dto.DetectionTier { return dto.TierJSON }

func (JSONTier) Parse(raw string) ([]dto.DetectedField, bool) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(body, "{") || !json.Valid([]byte(body)) {
		return nil, false
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, false
	}

	var items []json.RawMessage
	if rawFields, ok := envelope["fields"]; ok {
		// a non-array "fields" is treated as an empty detection
		if err := json.Unmarshal(rawFields, &items); err != nil {
			logrus.WithError(err).Debug("Ignoring undecodable fields in JSON detection response")
		}
	}

	fields := make([]dto.DetectedField, 0, len(items))
	for _, item := range items {
		var obj map[string]interface{}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		field := dto.DetectedField{
			Type:       toString(obj["type"]),
			Text:       toString(obj["text"]),
			Confidence: toFloat(obj["confidence"]),
		}
		if box, ok := obj["boundingBox"].(map[string]interface{}); ok {
			field.BoundingBox = ScalePercentBox(dto.NormalizedBox{
				X:      toFloat(box["x"]),
				Y:      toFloat(box["y"]),
				Width:  toFloat(box["width"]),
				Height: toFloat(box["height"]),
			})
		}
		fields = append(fields, field)
	}
	return fields, true
}

// stripCodeFence removes one surrounding ``` fence, as chat models like to add.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ---------------- Labeled blocks ----------------

var (
	reBlockType = regexp.MustCompile(
		`(?im)field[ \t_]*type[*_\x60 \t]*:[*_\x60 \t]*(.*?)[*_\x60 \t,;]*(?:\bexact[ \t_]*text[ \t_]*value[*_\x60 \t]*:|$)`)
	reBlockValue = regexp.MustCompile(
		`(?im)exact[ \t_]*text[ \t_]*value[*_\x60 \t]*:[*_\x60 \t]*(.*?)[*_\x60 \t,;]*(?:\bposition[*_\x60 \t]*:|$)`)
	reBlockPosition = regexp.MustCompile(
		`(?i)position[*_\x60 \t]*:[*_\x60 \t]*\(?\s*` +
			`x\s*[:=]\s*(-?\d+(?:\.\d+)?)\s*%?\s*,\s*` +
			`y\s*[:=]\s*(-?\d+(?:\.\d+)?)\s*%?\s*,\s*` +
			`w(?:idth)?\s*[:=]\s*(-?\d+(?:\.\d+)?)\s*%?\s*,\s*` +
			`h(?:eight)?\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
)

type blockMarkerKind int

const (
	markerType blockMarkerKind = iota
	markerValue
	markerPosition
)

type blockMarker struct {
	offset int
	kind   blockMarkerKind
	groups []string
}

// LabeledBlockTier reads repeated "Field Type / Exact Text Value / Position" blocks.
type LabeledBlockTier struct{}

func (LabeledBlockTier) Name() dto.DetectionTier { return dto.TierLabeledBlock }

func (LabeledBlockTier) Parse(raw string) ([]dto.DetectedField, bool) {
	markers := collectMarkers(raw, reBlockType, markerType)
	markers = append(markers, collectMarkers(raw, reBlockValue, markerValue)...)
	markers = append(markers, collectMarkers(raw, reBlockPosition, markerPosition)...)
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].offset < markers[j].offset })

	var fields []dto.DetectedField
	var current *dto.DetectedField
	for _, m := range markers {
		switch m.kind {
		case markerType:
			// a new label abandons an unfinished block
			current = &dto.DetectedField{Type: m.groups[0]}
		case markerValue:
			if current != nil {
				current.Text = m.groups[0]
			}
		case markerPosition:
			if current == nil {
				continue
			}
			current.BoundingBox = ScalePercentBox(dto.NormalizedBox{
				X:      parseNumber(m.groups[0]),
				Y:      parseNumber(m.groups[1]),
				Width:  parseNumber(m.groups[2]),
				Height: parseNumber(m.groups[3]),
			})
			fields = append(fields, *current)
			current = nil
		}
	}

	return fields, len(fields) > 0
}

func collectMarkers(raw string, re *regexp.Regexp, kind blockMarkerKind) []blockMarker {
	var markers []blockMarker
	for _, loc := range re.FindAllStringSubmatchIndex(raw, -1) {
		groups := make([]string, 0, len(loc)/2-1)
		for i := 2; i+1 < len(loc); i += 2 {
			if loc[i] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, strings.TrimSpace(raw[loc[i]:loc[i+1]]))
		}
		markers = append(markers, blockMarker{offset: loc[0], kind: kind, groups: groups})
	}
	return markers
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ScalePercentBox treats every coordinate above 1 as a percentage.
// A value of exactly 1 stays a fraction.
func ScalePercentBox(b dto.NormalizedBox) dto.NormalizedBox {
	return dto.NormalizedBox{
		X:      percentToFraction(b.X),
		Y:      percentToFraction(b.Y),
		Width:  percentToFraction(b.Width),
		Height: percentToFraction(b.Height),
	}
}

func percentToFraction(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

// ---------------- Key-value ----------------

type keyValuePattern struct {
	fieldType dto.FieldType
	re        *regexp.Regexp
}

func keyValueRegex(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[\s*_\x60#>\-]*(` + label + `)[*_\x60 \t]*:[*_\x60 \t]*(\S.*?)[*_\x60 \t]*$`)
}

// keyValuePatterns are anchored at line start so "Due Date:" never feeds "Date:".
var keyValuePatterns = []keyValuePattern{
	{dto.FieldVendor, keyValueRegex(`vendor(?:[ \t]+name)?`)},
	{dto.FieldDate, keyValueRegex(`(?:invoice[ \t]+)?date`)},
	{dto.FieldDueDate, keyValueRegex(`due[ \t]*date`)},
	{dto.FieldAmount, keyValueRegex(`amount|sub[ \t]*total`)},
	{dto.FieldTax, keyValueRegex(`vat|tax`)},
	{dto.FieldTotal, keyValueRegex(`(?:grand[ \t]+)?total`)},
	{dto.FieldCurrency, keyValueRegex(`currency`)},
	{dto.FieldNotes, keyValueRegex(`notes`)},
}

// DefaultBoxes places key-value matches, which carry no position, on typical invoice regions.
var DefaultBoxes = map[dto.FieldType]dto.NormalizedBox{
	dto.FieldVendor:   {X: 0.05, Y: 0.05, Width: 0.40, Height: 0.05},
	dto.FieldDate:     {X: 0.65, Y: 0.10, Width: 0.25, Height: 0.04},
	dto.FieldDueDate:  {X: 0.65, Y: 0.15, Width: 0.25, Height: 0.04},
	dto.FieldAmount:   {X: 0.65, Y: 0.70, Width: 0.25, Height: 0.04},
	dto.FieldTax:      {X: 0.65, Y: 0.75, Width: 0.25, Height: 0.04},
	dto.FieldTotal:    {X: 0.65, Y: 0.80, Width: 0.25, Height: 0.04},
	dto.FieldCurrency: {X: 0.65, Y: 0.85, Width: 0.10, Height: 0.04},
	dto.FieldNotes:    {X: 0.05, Y: 0.88, Width: 0.60, Height: 0.06},
}

// KeyValueTier is the last resort: "Label: value" lines without positions.
type KeyValueTier struct{}

func (KeyValueTier) Name() dto.DetectionTier { return dto.TierKeyValue }

func (KeyValueTier) Parse(raw string) ([]dto.DetectedField, bool) {
	var fields []dto.DetectedField
	for _, p := range keyValuePatterns {
		m := p.re.FindStringSubmatch(raw)
		if len(m) < 3 {
			continue
		}
		label := strings.TrimSpace(m[1])
		field := dto.DetectedField{
			Type: label,
			Text: strings.TrimSpace(m[2]),
		}
		if ft, ok := ClassifyFieldType(label); ok {
			field.BoundingBox = DefaultBoxes[ft]
		}
		fields = append(fields, field)
	}
	return fields, len(fields) > 0
}
