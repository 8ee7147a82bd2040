package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/Aashish23092/invoice-annotation/utils"
	"github.com/Aashish23092/invoice-annotation/utils/viewport"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownDocument  = errors.New("unknown document")
	ErrViewportNotReady = errors.New("page viewport is not available yet")
)

// DetectionTicket identifies one detection request for a document. Only the
// most recently issued ticket may write its result into the store.
type DetectionTicket struct {
	DocumentID string
	Seq        uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled as soon as a newer detection is issued for the document.
func (t *DetectionTicket) Context() context.Context {
	return t.ctx
}

// DocumentSession owns everything the engine tracks for the active document:
// its annotation store, the last reported viewport and the detection order.
type DocumentSession struct {
	ID    string
	store *AnnotationStore

	mu       sync.Mutex
	viewport *dto.PdfViewport
	latest   uint64
	inFlight context.CancelFunc
}

func newDocumentSession(id string) *DocumentSession {
	return &DocumentSession{
		ID:    id,
		store: NewAnnotationStore(),
	}
}

func (s *DocumentSession) Store() *AnnotationStore {
	return s.store
}

// BeginDetection issues a new ticket and cancels the one still in flight.
func (s *DocumentSession) BeginDetection(parent context.Context) *DetectionTicket {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight != nil {
		s.inFlight()
	}
	s.latest++
	s.inFlight = cancel

	return &DetectionTicket{
		DocumentID: s.ID,
		Seq:        s.latest,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// IsLatest reports whether no newer detection has been issued since t.
func (s *DocumentSession) IsLatest(t *DetectionTicket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Seq == s.latest
}

// CommitDetection installs the annotations of t unless a newer ticket exists.
// It reports whether the store was written.
func (s *DocumentSession) CommitDetection(t *DetectionTicket, annotations []dto.Annotation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer t.cancel()

	if t.Seq != s.latest {
		logrus.WithFields(logrus.Fields{
			"document": s.ID,
			"ticket":   t.Seq,
			"latest":   s.latest,
		}).Info("Discarding stale detection result")
		return false
	}

	s.store.ReplaceAll(annotations)
	s.inFlight = nil
	return true
}

// AbandonDetection releases t after a failed detection; the store is untouched.
func (s *DocumentSession) AbandonDetection(t *DetectionTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.cancel()
	if t.Seq == s.latest {
		s.inFlight = nil
	}
}

// SetViewport replaces the viewport reported by the renderer.
func (s *DocumentSession) SetViewport(vp dto.PdfViewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = &vp
}

// Viewport returns the last reported viewport, if any.
func (s *DocumentSession) Viewport() (dto.PdfViewport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewport == nil {
		return dto.PdfViewport{}, false
	}
	return *s.viewport, true
}

// Pin places a field manually, either from a pointer click or a normalized point.
func (s *DocumentSession) Pin(req *dto.PinRequest) (dto.Annotation, error) {
	ft, err := dto.ParseFieldType(req.Type)
	if err != nil {
		return dto.Annotation{}, err
	}

	var point dto.Point
	switch {
	case req.Click != nil:
		vp, ok := s.Viewport()
		if req.Viewport != nil {
			vp, ok = *req.Viewport, true
		}
		if !ok {
			return dto.Annotation{}, ErrViewportNotReady
		}
		point, ok = viewport.ToNormalized(req.Click.X, req.Click.Y, req.ContainerOrigin, vp)
		if !ok {
			return dto.Annotation{}, ErrViewportNotReady
		}
	case req.Point != nil:
		clamped := utils.ClampBox(dto.NormalizedBox{X: req.Point.X, Y: req.Point.Y})
		point = dto.Point{X: clamped.X, Y: clamped.Y}
	default:
		return dto.Annotation{}, errors.New("either click or point is required")
	}

	annotation := dto.Annotation{
		ID:    utils.NewAnnotationID(ft),
		X:     point.X,
		Y:     point.Y,
		Type:  ft,
		Value: req.Value,
		Color: utils.FieldColor(ft),
	}
	s.store.Add(annotation)
	return annotation, nil
}

// Close cancels any in-flight detection and empties the store.
func (s *DocumentSession) Close() {
	s.mu.Lock()
	if s.inFlight != nil {
		s.inFlight()
		s.inFlight = nil
	}
	// a discarded document accepts no late results
	s.latest++
	s.viewport = nil
	s.mu.Unlock()

	s.store.Clear()
}

// SessionRegistry maps document ids to their sessions.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*DocumentSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*DocumentSession)}
}

// Open returns the session for id, creating it on first use.
func (r *SessionRegistry) Open(id string) *DocumentSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		session = newDocumentSession(id)
		r.sessions[id] = session
	}
	return session
}

// Get returns an existing session.
func (r *SessionRegistry) Get(id string) (*DocumentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownDocument
	}
	return session, nil
}

// Discard closes and forgets the session for id.
func (r *SessionRegistry) Discard(id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrUnknownDocument
	}
	session.Close()
	return nil
}
