package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const amountResponse = `{"fields":[{"type":"amount","text":"$1,250.00","boundingBox":{"x":0.7,"y":0.4,"width":0.15,"height":0.05},"confidence":0.9}]}`

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func staticDetector(raw string) FieldDetector {
	return FieldDetectorFunc(func(context.Context, *dto.DetectionPage) (string, error) {
		return raw, nil
	})
}

func newTestDetectionService(opts ...DetectionOption) (*DetectionService, *SessionRegistry) {
	sessions := NewSessionRegistry()
	return NewDetectionService(sessions, NewPageLoader(&fakePDFProcessor{}), opts...), sessions
}

func TestDetectDocument(t *testing.T) {
	var seen *dto.DetectionPage
	detector := FieldDetectorFunc(func(_ context.Context, page *dto.DetectionPage) (string, error) {
		seen = page
		return amountResponse, nil
	})
	svc, sessions := newTestDetectionService(
		WithDetector("fake", detector),
		WithDefaultDetector("fake"),
	)

	response, err := svc.DetectDocument(context.Background(), "doc", DocumentUpload{
		Filename: "invoice.png",
		Data:     testPNG(t, 40, 60),
	})
	require.NoError(t, err)

	assert.Equal(t, "doc", response.DocumentID)
	assert.Equal(t, "fake", response.Detector)
	assert.Equal(t, dto.TierJSON, response.Tier)
	assert.False(t, response.Stale)
	assert.False(t, response.NothingDetected)
	require.Len(t, response.Annotations, 1)
	assert.Equal(t, "1,250.00", response.Annotations[0].Value)
	_, err = time.Parse(time.RFC3339, response.ProcessedAt)
	assert.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "image/png", seen.MimeType)
	assert.Equal(t, 1, seen.PageNumber)
	assert.Equal(t, 40, seen.ImageWidth)
	assert.Equal(t, 60, seen.ImageHeight)
	assert.NotEmpty(t, seen.Image)

	session, err := sessions.Get("doc")
	require.NoError(t, err)
	stored := session.Store().Get()
	require.Len(t, stored, 1)
	assert.Equal(t, dto.FieldAmount, stored[0].Type)
}

func TestDetectDocumentUnknownDetector(t *testing.T) {
	svc, _ := newTestDetectionService(WithDetector("fake", staticDetector("")))

	_, err := svc.DetectDocument(context.Background(), "doc", DocumentUpload{
		Filename: "invoice.png",
		Data:     testPNG(t, 10, 10),
		Detector: "paddle",
	})
	assert.ErrorIs(t, err, ErrUnknownDetector)
}

func TestDetectDocumentFailureKeepsStore(t *testing.T) {
	failing := FieldDetectorFunc(func(context.Context, *dto.DetectionPage) (string, error) {
		return "", errors.New("503 service unavailable")
	})
	svc, sessions := newTestDetectionService(WithDetector("failing", failing))

	_, err := svc.DetectRaw(context.Background(), "doc", amountResponse)
	require.NoError(t, err)

	_, err = svc.DetectDocument(context.Background(), "doc", DocumentUpload{
		Filename: "invoice.png",
		Data:     testPNG(t, 10, 10),
		Detector: "failing",
	})
	assert.ErrorIs(t, err, ErrDetectionFailed)
	assert.Contains(t, err.Error(), "503")

	session, _ := sessions.Get("doc")
	assert.Len(t, session.Store().Get(), 1)
}

func TestDetectDocumentBadUpload(t *testing.T) {
	svc, _ := newTestDetectionService(WithDetector("fake", staticDetector(amountResponse)), WithDefaultDetector("fake"))

	_, err := svc.DetectDocument(context.Background(), "doc", DocumentUpload{
		Filename: "invoice.png",
		Data:     []byte("not an image"),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDetectionFailed)
}

func TestDetectRawNothingDetected(t *testing.T) {
	svc, sessions := newTestDetectionService()

	_, err := svc.DetectRaw(context.Background(), "doc", amountResponse)
	require.NoError(t, err)

	response, err := svc.DetectRaw(context.Background(), "doc", "Sorry, I cannot help with that.")
	require.NoError(t, err)

	assert.Equal(t, dto.TierNone, response.Tier)
	assert.True(t, response.NothingDetected)
	assert.Empty(t, response.Annotations)

	session, _ := sessions.Get("doc")
	assert.Empty(t, session.Store().Get())
}

func TestDetectRawLabeledBlocks(t *testing.T) {
	svc, _ := newTestDetectionService()

	response, err := svc.DetectRaw(context.Background(), "doc",
		"Field Type: Due Date\nExact Text Value: 2024-11-02\nPosition: (x: 70.0, y: 15.0, width: 20.0, height: 10.0)")
	require.NoError(t, err)

	require.Len(t, response.Annotations, 1)
	box := response.Annotations[0].BoundingBox
	assert.Equal(t, dto.FieldDueDate, response.Annotations[0].Type)
	assert.InDelta(t, 0.70, box.X, 1e-9)
	assert.InDelta(t, 0.15, box.Y, 1e-9)
	assert.InDelta(t, 0.20, box.Width, 1e-9)
	assert.InDelta(t, 0.10, box.Height, 1e-9)
}

func TestDetectDocumentLateResultIsStale(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	// resolves late and ignores cancellation
	slow := FieldDetectorFunc(func(context.Context, *dto.DetectionPage) (string, error) {
		close(started)
		<-release
		return `{"fields":[{"type":"vendor","text":"Old","boundingBox":{"x":0.1,"y":0.1,"width":0.1,"height":0.1}}]}`, nil
	})
	fast := staticDetector(`{"fields":[{"type":"vendor","text":"New","boundingBox":{"x":0.1,"y":0.1,"width":0.1,"height":0.1}}]}`)

	svc, sessions := newTestDetectionService(WithDetector("slow", slow), WithDetector("fast", fast))
	upload := DocumentUpload{Filename: "invoice.png", Data: testPNG(t, 10, 10)}

	type outcome struct {
		response *dto.DetectionResponse
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		u := upload
		u.Detector = "slow"
		r, err := svc.DetectDocument(context.Background(), "doc", u)
		done <- outcome{r, err}
	}()

	<-started
	upload.Detector = "fast"
	second, err := svc.DetectDocument(context.Background(), "doc", upload)
	require.NoError(t, err)
	assert.False(t, second.Stale)

	close(release)
	first := <-done
	require.NoError(t, first.err)
	assert.True(t, first.response.Stale)

	session, _ := sessions.Get("doc")
	stored := session.Store().Get()
	require.Len(t, stored, 1)
	assert.Equal(t, "New", stored[0].Value)
}

func TestDetectDocumentCancelledByNewerRequest(t *testing.T) {
	started := make(chan struct{})

	waiting := FieldDetectorFunc(func(ctx context.Context, _ *dto.DetectionPage) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc, sessions := newTestDetectionService(
		WithDetector("waiting", waiting),
		WithDetector("fast", staticDetector(amountResponse)),
	)
	upload := DocumentUpload{Filename: "invoice.png", Data: testPNG(t, 10, 10)}

	type outcome struct {
		response *dto.DetectionResponse
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		u := upload
		u.Detector = "waiting"
		r, err := svc.DetectDocument(context.Background(), "doc", u)
		done <- outcome{r, err}
	}()

	<-started
	upload.Detector = "fast"
	_, err := svc.DetectDocument(context.Background(), "doc", upload)
	require.NoError(t, err)

	first := <-done
	require.NoError(t, first.err)
	assert.True(t, first.response.Stale)

	session, _ := sessions.Get("doc")
	assert.Len(t, session.Store().Get(), 1)
}

func TestDetectDocumentTimeout(t *testing.T) {
	waiting := FieldDetectorFunc(func(ctx context.Context, _ *dto.DetectionPage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc, _ := newTestDetectionService(
		WithDetector("waiting", waiting),
		WithDefaultDetector("waiting"),
		WithTimeout(10*time.Millisecond),
	)

	_, err := svc.DetectDocument(context.Background(), "doc", DocumentUpload{
		Filename: "invoice.png",
		Data:     testPNG(t, 10, 10),
	})
	assert.ErrorIs(t, err, ErrDetectionFailed)
}

func TestDetectors(t *testing.T) {
	svc, _ := newTestDetectionService(
		WithDetector("QR", staticDetector("")),
		WithDetector("auto", staticDetector("")),
	)
	assert.Equal(t, []string{"auto", "qr"}, svc.Detectors())
}
