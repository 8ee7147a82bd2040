package utils

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Aashish23092/invoice-annotation/dto"
)

// maxLabelWords keeps sentences that merely mention "total" or "date" from being read as labels.
const maxLabelWords = 4

// LabeledBlocksFromLines turns positioned OCR lines into the labeled-block text
// understood by LabeledBlockTier. A "Label: value" line, or a label line ending in
// a colon followed by a value line, becomes one block located at the value.
// Positions are written as fractions of the page image size.
func LabeledBlocksFromLines(lines []dto.TextLine, pageWidth, pageHeight int) string {
	if pageWidth <= 0 || pageHeight <= 0 {
		return ""
	}

	var b strings.Builder
	seen := make(map[dto.FieldType]bool)

	for i, line := range lines {
		label, value, ok := splitLabelLine(line.Text)
		if !ok {
			continue
		}
		ft, ok := ClassifyFieldType(label)
		if !ok || seen[ft] {
			continue
		}

		text := strings.TrimSpace(line.Text)
		box := valueBox(line, len([]rune(text))-len([]rune(value)))
		if value == "" {
			if i+1 >= len(lines) || strings.TrimSpace(lines[i+1].Text) == "" {
				continue
			}
			next := lines[i+1]
			value = strings.TrimSpace(next.Text)
			box = next
		}

		seen[ft] = true
		fmt.Fprintf(&b, "Field Type: %s\n", label)
		fmt.Fprintf(&b, "Exact Text Value: %s\n", value)
		fmt.Fprintf(&b, "Position: (x: %.4f, y: %.4f, width: %.4f, height: %.4f)\n\n",
			float64(box.X)/float64(pageWidth),
			float64(box.Y)/float64(pageHeight),
			float64(box.Width)/float64(pageWidth),
			float64(box.Height)/float64(pageHeight),
		)
	}

	return b.String()
}

// splitLabelLine splits "Label: value" at the first colon.
func splitLabelLine(text string) (string, string, bool) {
	idx := strings.Index(text, ":")
	if idx <= 0 {
		return "", "", false
	}
	label := strings.TrimSpace(text[:idx])
	value := strings.TrimSpace(text[idx+1:])

	words := strings.Fields(label)
	if len(words) == 0 || len(words) > maxLabelWords {
		return "", "", false
	}
	if !strings.ContainsFunc(label, unicode.IsLetter) {
		return "", "", false
	}
	return label, value, true
}

// valueBox estimates the sub-box of a line holding its value, assuming evenly spaced
// glyphs. valueStart counts runes of the trimmed line text.
func valueBox(line dto.TextLine, valueStart int) dto.TextLine {
	total := len([]rune(strings.TrimSpace(line.Text)))
	if total == 0 || valueStart <= 0 || valueStart >= total {
		return line
	}
	shift := line.Width * valueStart / total
	return dto.TextLine{
		Text:   line.Text,
		X:      line.X + shift,
		Y:      line.Y,
		Width:  line.Width - shift,
		Height: line.Height,
	}
}
