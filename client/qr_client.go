package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoQRCode       = errors.New("no QR code found")
	ErrNotEPCPayment  = errors.New("QR code is not an EPC payment code")
	ErrMalformedEPCQR = errors.New("malformed EPC payment code")
)

// EPCPayment is the content of a SEPA credit transfer ("BCD") QR code.
type EPCPayment struct {
	Name        string
	IBAN        string
	BIC         string
	Currency    string
	Amount      string
	Purpose     string
	Reference   string
	Remittance  string
	Information string
}

// ParseEPCPayment decodes the line-oriented EPC069-12 payload.
func ParseEPCPayment(text string) (*EPCPayment, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 7 || strings.TrimSpace(lines[0]) != "BCD" {
		return nil, ErrNotEPCPayment
	}
	if strings.TrimSpace(lines[3]) != "SCT" {
		return nil, fmt.Errorf("%w: identification %q", ErrMalformedEPCQR, lines[3])
	}

	at := func(i int) string {
		if i < len(lines) {
			return strings.TrimSpace(lines[i])
		}
		return ""
	}

	p := &EPCPayment{
		BIC:         at(4),
		Name:        at(5),
		IBAN:        at(6),
		Purpose:     at(8),
		Reference:   at(9),
		Remittance:  at(10),
		Information: at(11),
	}
	if p.Name == "" || p.IBAN == "" {
		return nil, fmt.Errorf("%w: beneficiary name and IBAN are required", ErrMalformedEPCQR)
	}

	if amount := at(7); amount != "" {
		if len(amount) < 4 {
			return nil, fmt.Errorf("%w: amount %q", ErrMalformedEPCQR, amount)
		}
		p.Currency = strings.ToUpper(amount[:3])
		p.Amount = amount[3:]
	}
	return p, nil
}

// Notes returns the remittance text, falling back to the structured reference.
func (p *EPCPayment) Notes() string {
	if p.Remittance != "" {
		return p.Remittance
	}
	return p.Reference
}

// QRClient reads payment QR codes printed on invoices.
type QRClient struct{}

func NewQRClient() *QRClient {
	return &QRClient{}
}

// Detect looks for an EPC payment QR code and reports its fields as a JSON
// detection payload located at the symbol. A page without one yields "".
func (q *QRClient) Detect(ctx context.Context, page *dto.DetectionPage) (string, error) {
	if len(page.Image) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := decodePageImage(page.Image)
	if err != nil {
		return "", err
	}

	text, box, err := decodeQR(img)
	if errors.Is(err, ErrNoQRCode) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	payment, err := ParseEPCPayment(text)
	if err != nil {
		logrus.WithField("document", page.DocumentID).WithError(err).Debug("Ignoring QR code")
		return "", nil
	}

	payload := PaymentDetection(payment, box)
	out, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR detection: %w", err)
	}
	return string(out), nil
}

func decodeQR(img image.Image) (string, dto.NormalizedBox, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", dto.NormalizedBox{}, fmt.Errorf("failed to create binary bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", dto.NormalizedBox{}, ErrNoQRCode
	}

	bounds := img.Bounds()
	return result.GetText(), symbolBox(result.GetResultPoints(), bounds.Dx(), bounds.Dy()), nil
}

// symbolBox spans the finder pattern centres as fractions of the image.
func symbolBox(points []gozxing.ResultPoint, width, height int) dto.NormalizedBox {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return dto.NormalizedBox{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.GetX())
		minY = math.Min(minY, p.GetY())
		maxX = math.Max(maxX, p.GetX())
		maxY = math.Max(maxY, p.GetY())
	}

	w, h := float64(width), float64(height)
	return dto.NormalizedBox{
		X:      minX / w,
		Y:      minY / h,
		Width:  (maxX - minX) / w,
		Height: (maxY - minY) / h,
	}
}

// PaymentDetection lays the payment's fields out as horizontal bands of the
// symbol box so every field gets its own anchor.
func PaymentDetection(p *EPCPayment, box dto.NormalizedBox) dto.DetectionPayload {
	type entry struct {
		ft   dto.FieldType
		text string
	}
	entries := []entry{
		{dto.FieldVendor, p.Name},
		{dto.FieldAmount, p.Amount},
		{dto.FieldCurrency, p.Currency},
		{dto.FieldNotes, p.Notes()},
	}

	var present []entry
	for _, e := range entries {
		if e.text != "" {
			present = append(present, e)
		}
	}

	payload := dto.DetectionPayload{Fields: make([]dto.DetectedField, 0, len(present))}
	if len(present) == 0 {
		return payload
	}

	band := box.Height / float64(len(present))
	for i, e := range present {
		payload.Fields = append(payload.Fields, dto.DetectedField{
			Type: string(e.ft),
			Text: e.text,
			BoundingBox: dto.NormalizedBox{
				X:      box.X,
				Y:      box.Y + band*float64(i),
				Width:  box.Width,
				Height: band,
			},
			Confidence: 1,
		})
	}
	return payload
}
