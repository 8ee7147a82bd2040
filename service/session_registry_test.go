package service

import (
	"context"
	"testing"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/Aashish23092/invoice-annotation/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clickViewport = dto.PdfViewport{
	OriginalWidth:  612,
	OriginalHeight: 792,
	RenderedWidth:  800,
	RenderedHeight: 1000,
	OffsetX:        10,
	OffsetY:        20,
}

func TestBeginDetectionCancelsPrevious(t *testing.T) {
	session := newDocumentSession("doc")

	first := session.BeginDetection(context.Background())
	second := session.BeginDetection(context.Background())

	assert.ErrorIs(t, first.Context().Err(), context.Canceled)
	assert.NoError(t, second.Context().Err())
	assert.False(t, session.IsLatest(first))
	assert.True(t, session.IsLatest(second))
}

func TestCommitDetectionLastIssuedWins(t *testing.T) {
	session := newDocumentSession("doc")

	first := session.BeginDetection(context.Background())
	second := session.BeginDetection(context.Background())

	assert.True(t, session.CommitDetection(second, []dto.Annotation{ann("v2", dto.FieldVendor, "New")}))
	// the older request resolves late
	assert.False(t, session.CommitDetection(first, []dto.Annotation{ann("v1", dto.FieldVendor, "Old")}))

	got := session.Store().Get()
	require.Len(t, got, 1)
	assert.Equal(t, "New", got[0].Value)
}

func TestAbandonDetectionLeavesStore(t *testing.T) {
	session := newDocumentSession("doc")
	session.Store().Add(ann("v1", dto.FieldVendor, "Acme"))

	ticket := session.BeginDetection(context.Background())
	session.AbandonDetection(ticket)

	assert.ErrorIs(t, ticket.Context().Err(), context.Canceled)
	got := session.Store().Get()
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].Value)
}

func TestPinFromClickUsesSessionViewport(t *testing.T) {
	session := newDocumentSession("doc")
	session.SetViewport(clickViewport)

	pinned, err := session.Pin(&dto.PinRequest{
		Type:            "dueDate",
		Click:           &dto.Point{X: 410, Y: 520},
		ContainerOrigin: dto.Point{X: 100, Y: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, dto.FieldDueDate, pinned.Type)
	assert.InDelta(t, 0.375, pinned.X, 1e-9)
	assert.InDelta(t, 0.40, pinned.Y, 1e-9)
	assert.Equal(t, utils.FieldColor(dto.FieldDueDate), pinned.Color)
	assert.Empty(t, pinned.Value)
	assert.Nil(t, pinned.BoundingBox)
	assert.NotEmpty(t, pinned.ID)
}

func TestPinFromClickWithRequestViewport(t *testing.T) {
	session := newDocumentSession("doc")

	vp := clickViewport
	pinned, err := session.Pin(&dto.PinRequest{
		Type:            "total",
		Value:           "99.00",
		Click:           &dto.Point{X: 0, Y: 0},
		ContainerOrigin: dto.Point{X: 100, Y: 100},
		Viewport:        &vp,
	})
	require.NoError(t, err)

	// clicks in the margin land on the nearest edge
	assert.Equal(t, 0.0, pinned.X)
	assert.Equal(t, 0.0, pinned.Y)
	assert.Equal(t, "99.00", pinned.Value)
}

func TestPinWithoutViewport(t *testing.T) {
	session := newDocumentSession("doc")

	_, err := session.Pin(&dto.PinRequest{Type: "total", Click: &dto.Point{X: 1, Y: 1}})
	assert.ErrorIs(t, err, ErrViewportNotReady)
}

func TestPinPointReplacesSameType(t *testing.T) {
	session := newDocumentSession("doc")
	session.Store().Add(ann("v1", dto.FieldVendor, "Detected"))

	pinned, err := session.Pin(&dto.PinRequest{Type: "Vendor", Value: "Manual", Point: &dto.Point{X: 1.4, Y: 0.2}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, pinned.X)
	assert.InDelta(t, 0.2, pinned.Y, 1e-9)

	got := session.Store().Get()
	require.Len(t, got, 1)
	assert.Equal(t, "Manual", got[0].Value)
}

func TestPinRejectsUnknownType(t *testing.T) {
	session := newDocumentSession("doc")

	_, err := session.Pin(&dto.PinRequest{Type: "signature", Point: &dto.Point{}})
	assert.ErrorIs(t, err, dto.ErrInvalidFieldType)
}

func TestCloseRejectsLateResults(t *testing.T) {
	session := newDocumentSession("doc")
	session.SetViewport(clickViewport)
	session.Store().Add(ann("v1", dto.FieldVendor, "Acme"))

	ticket := session.BeginDetection(context.Background())
	session.Close()

	assert.ErrorIs(t, ticket.Context().Err(), context.Canceled)
	assert.False(t, session.CommitDetection(ticket, []dto.Annotation{ann("t1", dto.FieldTotal, "1")}))
	assert.Empty(t, session.Store().Get())

	_, ok := session.Viewport()
	assert.False(t, ok)
}

func TestSessionRegistry(t *testing.T) {
	registry := NewSessionRegistry()

	_, err := registry.Get("doc")
	assert.ErrorIs(t, err, ErrUnknownDocument)

	opened := registry.Open("doc")
	assert.Same(t, opened, registry.Open("doc"))

	got, err := registry.Get("doc")
	require.NoError(t, err)
	assert.Same(t, opened, got)

	require.NoError(t, registry.Discard("doc"))
	assert.ErrorIs(t, registry.Discard("doc"), ErrUnknownDocument)

	_, err = registry.Get("doc")
	assert.ErrorIs(t, err, ErrUnknownDocument)
}
