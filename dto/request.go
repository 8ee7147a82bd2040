package dto

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
)

// DetectUploadRequest represents the incoming multipart detection request
type DetectUploadRequest struct {
	File       *multipart.FileHeader
	PageNumber int
	Detector   string
}

// Validate performs basic validation on the request
func (r *DetectUploadRequest) Validate() error {
	if r.File == nil {
		return errors.New("file is required")
	}

	filename := strings.ToLower(r.File.Filename)
	validExtensions := []string{".pdf", ".png", ".jpg", ".jpeg"}
	valid := false
	for _, ext := range validExtensions {
		if strings.HasSuffix(filename, ext) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid file type. Supported: PDF, PNG, JPG")
	}

	if r.PageNumber < 1 {
		return errors.New("page must be 1 or greater")
	}
	return nil
}

// RawDetectionRequest carries a detection response the caller obtained itself.
type RawDetectionRequest struct {
	Raw string `json:"raw"`
}

func (r *RawDetectionRequest) Validate() error {
	if strings.TrimSpace(r.Raw) == "" {
		return errors.New("raw detection response is required")
	}
	return nil
}

// PinRequest places a field manually. Either Click (with Viewport and
// ContainerOrigin) or Point must be set.
type PinRequest struct {
	Type            string       `json:"type"`
	Value           string       `json:"value"`
	Click           *Point       `json:"click,omitempty"`
	ContainerOrigin Point        `json:"containerOrigin"`
	Viewport        *PdfViewport `json:"viewport,omitempty"`
	Point           *Point       `json:"point,omitempty"`
}

func (r *PinRequest) Validate() error {
	if _, err := ParseFieldType(r.Type); err != nil {
		return fmt.Errorf("%w: %q", err, r.Type)
	}
	if r.Click == nil && r.Point == nil {
		return errors.New("either click or point is required")
	}
	if r.Click != nil && r.Point != nil {
		return errors.New("click and point are mutually exclusive")
	}
	return nil
}

// UpdateValueRequest edits the text of an existing annotation.
type UpdateValueRequest struct {
	Value string `json:"value"`
}

// ViewportRequest replaces the document's current viewport.
type ViewportRequest struct {
	Viewport PdfViewport `json:"viewport"`
}

func (r *ViewportRequest) Validate() error {
	v := r.Viewport
	if v.RenderedWidth < 0 || v.RenderedHeight < 0 || v.OriginalWidth < 0 || v.OriginalHeight < 0 {
		return errors.New("viewport sizes must not be negative")
	}
	return nil
}
