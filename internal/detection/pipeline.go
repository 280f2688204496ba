package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPipelineTimeout  = 15 * time.Second
	DefaultExtractorTimeout = 12 * time.Second
)

var (
	// ErrAnalysisFailed is returned when every extractor that ran failed.
	ErrAnalysisFailed = errors.New("analysis failed: no signal could be computed")
	// ErrUnsupportedKind is returned for an input kind with no weight table.
	ErrUnsupportedKind = errors.New("unsupported input kind")
)

// AdvisorLookup resolves the registration status of an advisor.
type AdvisorLookup interface {
	Status(ctx context.Context, name, id string) (*signals.AdvisorStatus, error)
}

// Options configures a Pipeline.
type Options struct {
	Weights          risk.Weights
	Extractors       *signals.Set
	OCR              signals.OCR
	Registry         AdvisorLookup
	DecodeQR         func([]byte) (string, error)
	PipelineTimeout  time.Duration
	ExtractorTimeout time.Duration
}

// Pipeline runs the extractors of an input kind concurrently and
// aggregates their signals.
type Pipeline struct {
	weights          risk.Weights
	set              *signals.Set
	ocr              signals.OCR
	registry         AdvisorLookup
	decodeQR         func([]byte) (string, error)
	pipelineTimeout  time.Duration
	extractorTimeout time.Duration
}

// New validates the weight tables against the registered extractors and
// builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Extractors == nil {
		return nil, fmt.Errorf("detection: no extractors registered")
	}
	if err := opts.Weights.Validate(opts.Extractors.Known); err != nil {
		return nil, err
	}
	if opts.PipelineTimeout <= 0 {
		opts.PipelineTimeout = DefaultPipelineTimeout
	}
	if opts.ExtractorTimeout <= 0 {
		opts.ExtractorTimeout = DefaultExtractorTimeout
	}
	if opts.DecodeQR == nil {
		opts.DecodeQR = signals.DecodeQR
	}

	return &Pipeline{
		weights:          opts.Weights,
		set:              opts.Extractors,
		ocr:              opts.OCR,
		registry:         opts.Registry,
		decodeQR:         opts.DecodeQR,
		pipelineTimeout:  opts.PipelineTimeout,
		extractorTimeout: opts.ExtractorTimeout,
	}, nil
}

// Weights returns the validated weight tables.
func (p *Pipeline) Weights() risk.Weights {
	return p.weights
}

// Result is the outcome of one pipeline run.
type Result struct {
	Assessment risk.Assessment
	// Failed lists signals whose extractor failed, in table order.
	Failed []string
	// Skipped lists signals that did not apply to the request.
	Skipped  []string
	Duration time.Duration
}

type outcome struct {
	result risk.SignalResult
	err    error
}

// Run prepares req, runs the extractors of its kind and aggregates the
// results. Preparation outputs are written to req.
func (p *Pipeline) Run(ctx context.Context, req *signals.Request) (*Result, error) {
	table, ok := p.weights.For(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.pipelineTimeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "detection", "detection.run",
		attribute.String("input_kind", string(req.Kind)))
	defer span.End()

	p.prepare(ctx, req)

	outcomes := make([]outcome, len(table.Entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range table.Entries {
		g.Go(func() error {
			outcomes[i] = p.extract(gctx, entry.Signal, req)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	collected := make(map[string]risk.SignalResult, len(outcomes))
	log := logger.WithContext(ctx)
	for i, o := range outcomes {
		name := table.Entries[i].Signal
		switch {
		case o.err == nil:
			o.result.Name = name
			collected[name] = o.result
		case errors.Is(o.err, signals.ErrNotApplicable):
			res.Skipped = append(res.Skipped, name)
		default:
			res.Failed = append(res.Failed, name)
			extractorFailuresTotal.WithLabelValues(name).Inc()
			log.Warn("extractor failed",
				zap.String("signal", name),
				zap.String("input_kind", string(req.Kind)),
				zap.Error(o.err),
			)
		}
	}

	if len(collected) == 0 && len(res.Failed) > 0 {
		span.SetStatus(codes.Error, ErrAnalysisFailed.Error())
		return nil, ErrAnalysisFailed
	}

	res.Assessment = risk.Aggregate(table, collected)
	res.Duration = time.Since(start)
	analysesTotal.WithLabelValues(string(req.Kind), string(res.Assessment.RiskLevel)).Inc()
	span.SetAttributes(
		attribute.Float64("risk_score", res.Assessment.RiskScore),
		attribute.String("risk_level", string(res.Assessment.RiskLevel)),
	)
	return res, nil
}

func (p *Pipeline) extract(ctx context.Context, name string, req *signals.Request) outcome {
	ext, ok := p.set.Get(name)
	if !ok {
		return outcome{err: fmt.Errorf("%w: no extractor for %s", signals.ErrExtractorUnavailable, name)}
	}

	ctx, span := tracing.StartSpan(ctx, "detection", "extractor."+name)
	defer span.End()
	start := time.Now()

	res, err := bounded(ctx, p.extractorTimeout, func(ctx context.Context) (risk.SignalResult, error) {
		return ext.Extract(ctx, req)
	})
	extractorDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, signals.ErrNotApplicable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome{result: res, err: err}
}

// bounded runs fn under timeout d. A call still running when the deadline
// passes is abandoned, and panics are converted into errors. Both count as
// the collaborator being unavailable.
func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type reply struct {
		v   T
		err error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- reply{zero, fmt.Errorf("%w: panic: %v", signals.ErrExtractorUnavailable, r)}
			}
		}()
		v, err := fn(ctx)
		done <- reply{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", signals.ErrExtractorUnavailable, ctx.Err())
	}
}
