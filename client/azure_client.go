package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// AzureClient reads printed text lines through Azure Computer Vision OCR.
type AzureClient struct {
	client *computervision.BaseClient
}

func NewAzureClient(endpoint, apiKey string) *AzureClient {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &AzureClient{client: &client}
}

func (a *AzureClient) ExtractLines(ctx context.Context, page *dto.DetectionPage) ([]dto.TextLine, int, int, error) {
	if len(page.Image) == 0 {
		return nil, 0, 0, ErrNoPageImage
	}

	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(page.Image)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to extract text: %w", err)
	}

	return linesFromOCRResult(result), page.ImageWidth, page.ImageHeight, nil
}

func linesFromOCRResult(result computervision.OcrResult) []dto.TextLine {
	if result.Regions == nil {
		return nil
	}

	var lines []dto.TextLine
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			box, ok := parseAzureBox(line.BoundingBox)
			if !ok || line.Words == nil {
				continue
			}

			var text strings.Builder
			for _, word := range *line.Words {
				if word.Text == nil {
					continue
				}
				text.WriteString(*word.Text)
				text.WriteString(" ")
			}

			box.Text = strings.TrimSpace(text.String())
			if box.Text != "" {
				lines = append(lines, box)
			}
		}
	}
	return lines
}

// parseAzureBox reads the "left,top,width,height" box string.
func parseAzureBox(s *string) (dto.TextLine, bool) {
	if s == nil {
		return dto.TextLine{}, false
	}
	parts := strings.Split(*s, ",")
	if len(parts) < 4 {
		return dto.TextLine{}, false
	}

	vals := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return dto.TextLine{}, false
		}
		vals[i] = v
	}
	return dto.TextLine{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, true
}
