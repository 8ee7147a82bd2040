package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
)

// ErrNoPageImage is returned by detectors that need pixels when the page has none.
var ErrNoPageImage = errors.New("page has no image")

type TesseractClient struct {
	dataPath string
	language string
}

func NewTesseractClient(dataPath string) *TesseractClient {
	return &TesseractClient{
		dataPath: dataPath,
		language: "eng",
	}
}

// ExtractLines recognizes the text lines of the page image with their pixel boxes.
func (tc *TesseractClient) ExtractLines(ctx context.Context, page *dto.DetectionPage) ([]dto.TextLine, int, int, error) {
	if len(page.Image) == 0 {
		return nil, 0, 0, ErrNoPageImage
	}

	img, err := decodePageImage(page.Image)
	if err != nil {
		return nil, 0, 0, err
	}
	data, err := encodePNG(enhanceForOCR(img))
	if err != nil {
		return nil, 0, 0, err
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, 0, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if tc.dataPath != "" {
		client.SetTessdataPrefix(tc.dataPath)
	}
	if err := client.SetLanguage(tc.language); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("OCR extraction failed: %w", err)
	}

	lines := make([]dto.TextLine, 0, len(boxes))
	var totalConf float64
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		totalConf += box.Confidence
		lines = append(lines, dto.TextLine{
			Text:   text,
			X:      box.Box.Min.X,
			Y:      box.Box.Min.Y,
			Width:  box.Box.Dx(),
			Height: box.Box.Dy(),
		})
	}

	avgConf := 0.0
	if len(lines) > 0 {
		avgConf = totalConf / float64(len(lines))
	}
	logrus.WithFields(logrus.Fields{
		"document":   page.DocumentID,
		"lines":      len(lines),
		"confidence": avgConf,
	}).Debug("Tesseract recognized page")

	return lines, img.Bounds().Dx(), img.Bounds().Dy(), nil
}
