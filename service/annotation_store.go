package service

import (
	"errors"
	"sync"

	"github.com/Aashish23092/invoice-annotation/dto"
)

var ErrAnnotationNotFound = errors.New("annotation not found")

// AnnotationStore holds the live annotations of one document. It never holds
// more than one annotation per field type.
type AnnotationStore struct {
	mu          sync.Mutex
	annotations []dto.Annotation
}

func NewAnnotationStore() *AnnotationStore {
	return &AnnotationStore{}
}

// Add replaces any annotation of the same type, then appends the new one.
func (s *AnnotationStore) Add(annotation dto.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotations = addByType(s.annotations, cloneAnnotation(annotation))
}

// ReplaceAll discards the current set and installs the given list. A list that
// repeats a type collapses exactly as a sequence of Add calls would.
func (s *AnnotationStore) ReplaceAll(annotations []dto.Annotation) {
	next := make([]dto.Annotation, 0, len(annotations))
	for _, ann := range annotations {
		next = addByType(next, cloneAnnotation(ann))
	}

	s.mu.Lock()
	s.annotations = next
	s.mu.Unlock()
}

// UpdateValue edits the text of the annotation with the given id. Position and
// type are left untouched.
func (s *AnnotationStore) UpdateValue(id, value string) (dto.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.annotations {
		if s.annotations[i].ID == id {
			s.annotations[i].Value = value
			return cloneAnnotation(s.annotations[i]), nil
		}
	}
	return dto.Annotation{}, ErrAnnotationNotFound
}

// Clear empties the set.
func (s *AnnotationStore) Clear() {
	s.mu.Lock()
	s.annotations = nil
	s.mu.Unlock()
}

// Get returns a copy of the current annotations.
func (s *AnnotationStore) Get() []dto.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]dto.Annotation, 0, len(s.annotations))
	for _, ann := range s.annotations {
		out = append(out, cloneAnnotation(ann))
	}
	return out
}

func addByType(list []dto.Annotation, annotation dto.Annotation) []dto.Annotation {
	filtered := list[:0]
	for _, ann := range list {
		if ann.Type != annotation.Type {
			filtered = append(filtered, ann)
		}
	}
	return append(filtered, annotation)
}

func cloneAnnotation(ann dto.Annotation) dto.Annotation {
	if ann.BoundingBox != nil {
		box := *ann.BoundingBox
		ann.BoundingBox = &box
	}
	return ann
}
