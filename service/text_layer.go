package service

import (
	"context"
	"math"

	"github.com/Aashish23092/invoice-annotation/dto"
)

// TextLayerSource reads the embedded text of digital PDFs. Scans and images
// yield no lines.
type TextLayerSource struct {
	pdfProcessor PDFProcessor
}

func NewTextLayerSource(pdfProcessor PDFProcessor) *TextLayerSource {
	return &TextLayerSource{pdfProcessor: pdfProcessor}
}

func (s *TextLayerSource) ExtractLines(ctx context.Context, page *dto.DetectionPage) ([]dto.TextLine, int, int, error) {
	if !page.IsPDF() {
		return nil, 0, 0, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, 0, err
	}

	lines, err := s.pdfProcessor.TextLines(page.Data, page.PageNumber)
	if err != nil {
		return nil, 0, 0, err
	}
	return lines, int(math.Round(page.Size.Width)), int(math.Round(page.Size.Height)), nil
}
