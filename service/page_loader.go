package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// DocumentUpload is one uploaded invoice together with the page to analyse.
type DocumentUpload struct {
	Filename   string
	MimeType   string
	Data       []byte
	PageNumber int
	Detector   string
}

// PageLoader prepares a DetectionPage from an upload.
type PageLoader struct {
	pdfProcessor PDFProcessor
}

func NewPageLoader(pdfProcessor PDFProcessor) *PageLoader {
	return &PageLoader{pdfProcessor: pdfProcessor}
}

// MimeTypeFor guesses the media type of an upload from its file name.
func MimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func (l *PageLoader) Load(ctx context.Context, documentID string, upload DocumentUpload) (*dto.DetectionPage, error) {
	if len(upload.Data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}

	mimeType := upload.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = MimeTypeFor(upload.Filename)
	}
	pageNumber := upload.PageNumber
	if pageNumber < 1 {
		pageNumber = 1
	}

	page := &dto.DetectionPage{
		DocumentID: documentID,
		PageNumber: pageNumber,
		Filename:   upload.Filename,
		MimeType:   mimeType,
		Data:       upload.Data,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if page.IsPDF() {
		if err := l.loadPDF(page); err != nil {
			return nil, err
		}
		return page, nil
	}

	img, err := imaging.Decode(bytes.NewReader(upload.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := setPageImage(page, img); err != nil {
		return nil, err
	}
	page.Size = dto.PageSize{Width: float64(page.ImageWidth), Height: float64(page.ImageHeight)}
	return page, nil
}

func (l *PageLoader) loadPDF(page *dto.DetectionPage) error {
	count, err := l.pdfProcessor.PageCount(page.Data)
	if err != nil {
		return err
	}
	if page.PageNumber > count {
		return fmt.Errorf("page %d out of range (document has %d pages)", page.PageNumber, count)
	}

	size, err := l.pdfProcessor.PageSize(page.Data, page.PageNumber)
	if err != nil {
		return err
	}
	page.Size = size

	// Text-only PDFs have no page image; detectors that need one will skip.
	img, err := l.pdfProcessor.ExtractPageImage(page.Data, page.PageNumber)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"document": page.DocumentID,
			"page":     page.PageNumber,
		}).WithError(err).Debug("No page image in PDF")
		return nil
	}
	return setPageImage(page, img)
}

func setPageImage(page *dto.DetectionPage, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode page image: %w", err)
	}
	page.Image = buf.Bytes()
	page.ImageWidth = img.Bounds().Dx()
	page.ImageHeight = img.Bounds().Dy()
	return nil
}
