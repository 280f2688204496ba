package detection

import (
	"context"
	"errors"
	"fmt"

	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	errOCRDisabled      = errors.New("text recognition is not configured")
	errRegistryDisabled = errors.New("advisor registry is not configured")
	errNoImage          = errors.New("no image supplied")
)

// prepare derives the intermediate inputs some extractors read: OCR text
// for images, the QR payload, and the advisor's registry status. A
// failure is recorded on req.PrepErr and surfaces through the dependent
// extractors.
func (p *Pipeline) prepare(ctx context.Context, req *signals.Request) {
	var err error
	switch req.Kind {
	case risk.KindImage:
		err = p.prepareImage(ctx, req)
	case risk.KindQR:
		err = p.prepareQR(ctx, req)
	case risk.KindAdvisor:
		err = p.prepareAdvisor(ctx, req)
	default:
		return
	}
	if err != nil {
		req.PrepErr = err
		logger.WithContext(ctx).Warn("input preparation failed",
			zap.String("input_kind", string(req.Kind)),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) prepareImage(ctx context.Context, req *signals.Request) error {
	if len(req.Image) == 0 {
		return errNoImage
	}
	if p.ocr == nil {
		return errOCRDisabled
	}

	ctx, span := tracing.StartSpan(ctx, "detection", "prepare.ocr",
		attribute.Int("image_bytes", len(req.Image)))
	defer span.End()

	text, err := bounded(ctx, p.extractorTimeout, func(ctx context.Context) (string, error) {
		return p.ocr.ExtractText(ctx, req.Image, req.ImageType)
	})
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	req.ExtractedText = text
	return nil
}

func (p *Pipeline) prepareQR(ctx context.Context, req *signals.Request) error {
	if len(req.Image) == 0 {
		return errNoImage
	}
	payload, err := bounded(ctx, p.extractorTimeout, func(context.Context) (string, error) {
		return p.decodeQR(req.Image)
	})
	if err != nil {
		return fmt.Errorf("qr: %w", err)
	}
	req.QRPayload = payload
	return nil
}

func (p *Pipeline) prepareAdvisor(ctx context.Context, req *signals.Request) error {
	if p.registry == nil {
		return errRegistryDisabled
	}

	ctx, span := tracing.StartSpan(ctx, "detection", "prepare.registry")
	defer span.End()

	status, err := bounded(ctx, p.extractorTimeout, func(ctx context.Context) (*signals.AdvisorStatus, error) {
		return p.registry.Status(ctx, req.AdvisorName, req.AdvisorID)
	})
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	req.Advisor = status
	return nil
}
