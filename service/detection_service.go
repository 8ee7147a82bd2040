package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/Aashish23092/invoice-annotation/utils"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownDetector = errors.New("unknown detector")
	ErrDetectionFailed = errors.New("field detection failed")
)

// DetectionService runs the detect → parse → normalize → store pipeline for a
// document and applies results in the order requests were issued.
type DetectionService struct {
	sessions        *SessionRegistry
	pages           *PageLoader
	parser          *utils.DetectionParser
	detectors       map[string]FieldDetector
	defaultDetector string
	timeout         time.Duration
}

type DetectionOption func(*DetectionService)

// WithDetector registers a detector under name.
func WithDetector(name string, detector FieldDetector) DetectionOption {
	return func(s *DetectionService) {
		s.detectors[strings.ToLower(name)] = detector
	}
}

// WithDefaultDetector picks the detector used when a request names none.
func WithDefaultDetector(name string) DetectionOption {
	return func(s *DetectionService) {
		s.defaultDetector = strings.ToLower(name)
	}
}

// WithTimeout bounds every detection call. Zero means no bound.
func WithTimeout(d time.Duration) DetectionOption {
	return func(s *DetectionService) {
		s.timeout = d
	}
}

// WithParser swaps the tier chain.
func WithParser(parser *utils.DetectionParser) DetectionOption {
	return func(s *DetectionService) {
		s.parser = parser
	}
}

func NewDetectionService(sessions *SessionRegistry, pages *PageLoader, opts ...DetectionOption) *DetectionService {
	s := &DetectionService{
		sessions:  sessions,
		pages:     pages,
		parser:    utils.DefaultDetectionParser(),
		detectors: make(map[string]FieldDetector),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detectors lists the registered detector names.
func (s *DetectionService) Detectors() []string {
	names := make([]string, 0, len(s.detectors))
	for name := range s.detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *DetectionService) detector(name string) (string, FieldDetector, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = s.defaultDetector
	}
	d, ok := s.detectors[name]
	if !ok {
		return name, nil, fmt.Errorf("%w: %q", ErrUnknownDetector, name)
	}
	return name, d, nil
}

// DetectDocument asks a Field Detection Service about one page of an upload.
// A request overtaken by a newer one for the same document returns a Stale
// response and leaves the store alone. A failing service leaves the store alone too.
func (s *DetectionService) DetectDocument(ctx context.Context, documentID string, upload DocumentUpload) (*dto.DetectionResponse, error) {
	name, detector, err := s.detector(upload.Detector)
	if err != nil {
		return nil, err
	}

	session := s.sessions.Open(documentID)
	ticket := session.BeginDetection(ctx)

	logger := logrus.WithFields(logrus.Fields{
		"document": documentID,
		"detector": name,
		"ticket":   ticket.Seq,
	})
	logger.Info("Starting field detection")

	detectCtx := ticket.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(detectCtx, s.timeout)
		defer cancel()
	}

	page, err := s.pages.Load(detectCtx, documentID, upload)
	if err != nil {
		return s.abandon(session, ticket, name, fmt.Errorf("failed to prepare page: %w", err))
	}

	raw, err := detector.Detect(detectCtx, page)
	if err != nil {
		logger.WithError(err).Error("Field detection service failed")
		return s.abandon(session, ticket, name, fmt.Errorf("%w: %v", ErrDetectionFailed, err))
	}

	return s.apply(session, ticket, name, raw), nil
}

// DetectRaw runs a response obtained elsewhere through the same pipeline.
func (s *DetectionService) DetectRaw(ctx context.Context, documentID, raw string) (*dto.DetectionResponse, error) {
	session := s.sessions.Open(documentID)
	ticket := session.BeginDetection(ctx)
	return s.apply(session, ticket, "", raw), nil
}

func (s *DetectionService) apply(session *DocumentSession, ticket *DetectionTicket, detector, raw string) *dto.DetectionResponse {
	result := s.parser.Parse(raw)
	annotations := utils.NormalizeDetectedFields(result.Fields)

	response := &dto.DetectionResponse{
		DocumentID:      session.ID,
		Detector:        detector,
		Tier:            result.Tier,
		Annotations:     annotations,
		Dropped:         result.Dropped,
		NothingDetected: len(annotations) == 0,
		ProcessedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	if !session.CommitDetection(ticket, annotations) {
		response.Stale = true
		return response
	}

	logrus.WithFields(logrus.Fields{
		"document":    session.ID,
		"tier":        result.Tier,
		"annotations": len(annotations),
		"dropped":     result.Dropped,
	}).Info("Field detection applied")
	return response
}

func (s *DetectionService) abandon(session *DocumentSession, ticket *DetectionTicket, detector string, err error) (*dto.DetectionResponse, error) {
	// losing to a newer request is not a failure
	if !session.IsLatest(ticket) {
		session.AbandonDetection(ticket)
		return &dto.DetectionResponse{
			DocumentID:  session.ID,
			Detector:    detector,
			Tier:        dto.TierNone,
			Annotations: []dto.Annotation{},
			Stale:       true,
			ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
	session.AbandonDetection(ticket)
	return nil, err
}
