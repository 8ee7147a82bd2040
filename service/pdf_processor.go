package service

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

type PDFProcessor interface {
	PageCount(pdfData []byte) (int, error)
	PageSize(pdfData []byte, pageNumber int) (dto.PageSize, error)
	TextLines(pdfData []byte, pageNumber int) ([]dto.TextLine, error)
	ExtractPageImage(pdfData []byte, pageNumber int) (image.Image, error)
}

type pdfProcessor struct{}

func NewPDFProcessor() PDFProcessor {
	return &pdfProcessor{}
}

func (p *pdfProcessor) PageCount(pdfData []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(pdfData), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

func (p *pdfProcessor) PageSize(pdfData []byte, pageNumber int) (dto.PageSize, error) {
	dims, err := api.PageDims(bytes.NewReader(pdfData), model.NewDefaultConfiguration())
	if err != nil {
		return dto.PageSize{}, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	if pageNumber < 1 || pageNumber > len(dims) {
		return dto.PageSize{}, fmt.Errorf("page %d out of range (document has %d pages)", pageNumber, len(dims))
	}
	d := dims[pageNumber-1]
	return dto.PageSize{Width: d.Width, Height: d.Height}, nil
}

// TextLines returns the text-layer lines of a page with boxes in PDF points,
// measured from the top-left corner.
func (p *pdfProcessor) TextLines(pdfData []byte, pageNumber int) ([]dto.TextLine, error) {
	size, err := p.PageSize(pdfData, pageNumber)
	if err != nil {
		return nil, err
	}

	r, err := pdf.NewReader(bytes.NewReader(pdfData), int64(len(pdfData)))
	if err != nil {
		return nil, err
	}
	if pageNumber > r.NumPage() {
		return nil, fmt.Errorf("page %d out of range", pageNumber)
	}

	page := r.Page(pageNumber)
	if page.V.IsNull() {
		return nil, nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("failed to read text rows: %w", err)
	}

	var lines []dto.TextLine
	for _, row := range rows {
		if line, ok := rowToLine(row.Content, size.Height); ok {
			lines = append(lines, line)
		}
	}

	// rows come bottom-up in PDF space
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Y < lines[j].Y })
	return lines, nil
}

// rowToLine joins the glyph runs of one row, inserting a space at visible gaps.
func rowToLine(texts []pdf.Text, pageHeight float64) (dto.TextLine, bool) {
	if len(texts) == 0 {
		return dto.TextLine{}, false
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var b strings.Builder
	minX, maxX := math.Inf(1), math.Inf(-1)
	baseline, fontSize := sorted[0].Y, 0.0
	prevEnd := math.Inf(-1)

	for _, t := range sorted {
		if b.Len() > 0 && t.X-prevEnd > t.FontSize*0.2 {
			b.WriteString(" ")
		}
		b.WriteString(t.S)
		prevEnd = t.X + t.W
		minX = math.Min(minX, t.X)
		maxX = math.Max(maxX, t.X+t.W)
		fontSize = math.Max(fontSize, t.FontSize)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return dto.TextLine{}, false
	}
	if fontSize <= 0 {
		fontSize = 10
	}

	return dto.TextLine{
		Text:   text,
		X:      int(math.Round(minX)),
		Y:      int(math.Round(pageHeight - baseline - fontSize)),
		Width:  int(math.Round(maxX - minX)),
		Height: int(math.Round(fontSize)),
	}, true
}

// ExtractPageImage returns the largest embedded image of a page, which for a
// scanned invoice is the page itself.
func (p *pdfProcessor) ExtractPageImage(pdfData []byte, pageNumber int) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "pdf_images")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempFile, err := os.CreateTemp("", "doc-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(pdfData); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("failed to write pdf data: %w", err)
	}
	tempFile.Close()

	conf := model.NewDefaultConfiguration()
	selectedPages := []string{strconv.Itoa(pageNumber)}
	if err := api.ExtractImagesFile(tempFile.Name(), tempDir, selectedPages, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	files, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}

	var best image.Image
	bestArea := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		imgFile, err := os.Open(filepath.Join(tempDir, file.Name()))
		if err != nil {
			continue
		}
		img, _, err := image.Decode(imgFile)
		imgFile.Close()
		if err != nil {
			continue
		}

		if area := img.Bounds().Dx() * img.Bounds().Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}

	if best == nil {
		return nil, fmt.Errorf("no image found on page %d", pageNumber)
	}
	return best, nil
}
