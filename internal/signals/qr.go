package signals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/richxcame/trustx/internal/risk"
)

// ErrNoQRCode is returned when an image holds no decodable QR code.
var ErrNoQRCode = errors.New("no QR code found in image")

// DecodeQR returns the payload of the QR code in data.
func DecodeQR(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", ErrNoQRCode
	}
	return res.GetText(), nil
}

// IsLink reports whether a payload is an http(s) URL.
func IsLink(payload string) bool {
	p := strings.ToLower(strings.TrimSpace(payload))
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// QRLinkExtractor applies URL heuristics to a QR payload that is a link.
type QRLinkExtractor struct {
	heuristics *URLHeuristics
}

func NewQRLinkExtractor(h *URLHeuristics) *QRLinkExtractor {
	return &QRLinkExtractor{heuristics: h}
}

func (e *QRLinkExtractor) Name() string { return SignalQRLink }

func (e *QRLinkExtractor) Extract(_ context.Context, req *Request) (risk.SignalResult, error) {
	if req.PrepErr != nil {
		return risk.SignalResult{}, fmt.Errorf("%w: %v", ErrExtractorUnavailable, req.PrepErr)
	}
	if !IsLink(req.QRPayload) {
		return risk.SignalResult{}, ErrNotApplicable
	}

	res, err := e.heuristics.Score(e.Name(), req.QRPayload)
	if err != nil {
		return risk.SignalResult{}, err
	}
	if res.Score > 0.5 {
		res.Indicators = append([]string{"QR code links to suspicious URL"}, res.Indicators...)
	}
	return res, nil
}

// QRTextExtractor scores the QR payload as text.
type QRTextExtractor struct {
	scorer *TextScorer
}

func NewQRTextExtractor(scorer *TextScorer) *QRTextExtractor {
	return &QRTextExtractor{scorer: scorer}
}

func (e *QRTextExtractor) Name() string { return SignalQRText }

func (e *QRTextExtractor) Extract(ctx context.Context, req *Request) (risk.SignalResult, error) {
	if req.PrepErr != nil {
		return risk.SignalResult{}, fmt.Errorf("%w: %v", ErrExtractorUnavailable, req.PrepErr)
	}
	if strings.TrimSpace(req.QRPayload) == "" {
		return risk.SignalResult{}, ErrNotApplicable
	}
	assessment := e.scorer.Score(ctx, req.QRPayload)
	return result(e.Name(), assessment.RiskScore, assessment.Indicators), nil
}
