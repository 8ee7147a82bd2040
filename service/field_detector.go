package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/Aashish23092/invoice-annotation/utils"
	"github.com/sirupsen/logrus"
)

// FieldDetector is a Field Detection Service: it looks at a page and returns a
// raw response (JSON or free text) for the parser to interpret.
type FieldDetector interface {
	Detect(ctx context.Context, page *dto.DetectionPage) (string, error)
}

// FieldDetectorFunc adapts a function to FieldDetector.
type FieldDetectorFunc func(ctx context.Context, page *dto.DetectionPage) (string, error)

func (f FieldDetectorFunc) Detect(ctx context.Context, page *dto.DetectionPage) (string, error) {
	return f(ctx, page)
}

// LineSource produces positioned text lines for a page together with the size
// of the frame the line boxes are measured in.
type LineSource interface {
	ExtractLines(ctx context.Context, page *dto.DetectionPage) (lines []dto.TextLine, width, height int, err error)
}

// LayoutDetector turns the lines of a LineSource into labeled-block text.
type LayoutDetector struct {
	source LineSource
}

func NewLayoutDetector(source LineSource) *LayoutDetector {
	return &LayoutDetector{source: source}
}

func (d *LayoutDetector) Detect(ctx context.Context, page *dto.DetectionPage) (string, error) {
	lines, width, height, err := d.source.ExtractLines(ctx, page)
	if err != nil {
		return "", err
	}
	return utils.LabeledBlocksFromLines(lines, width, height), nil
}

// NamedDetector pairs a detector with the name it is configured under.
type NamedDetector struct {
	Name     string
	Detector FieldDetector
}

// ChainDetector asks each detector in turn and returns the first non-empty response.
type ChainDetector struct {
	detectors []NamedDetector
}

func NewChainDetector(detectors ...NamedDetector) *ChainDetector {
	return &ChainDetector{detectors: detectors}
}

func (c *ChainDetector) Detect(ctx context.Context, page *dto.DetectionPage) (string, error) {
	var errs []error
	for _, nd := range c.detectors {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		raw, err := nd.Detector.Detect(ctx, page)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"document": page.DocumentID,
				"detector": nd.Name,
			}).WithError(err).Warn("Detector failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", nd.Name, err))
			continue
		}
		if strings.TrimSpace(raw) == "" {
			logrus.WithFields(logrus.Fields{
				"document": page.DocumentID,
				"detector": nd.Name,
			}).Debug("Detector returned nothing, trying next")
			continue
		}
		return raw, nil
	}

	// every detector failing is a service failure; empty answers are not
	if len(errs) == len(c.detectors) && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", nil
}
