package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richxcame/trustx/pkg/eventbus"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// EventRecorded is published for every stored entry.
	EventRecorded = "fingerprint.recorded"
	// EventAdvisorVerified is published for every advisor fingerprint.
	EventAdvisorVerified = "fingerprint.advisor_verified"

	// LedgerNetwork names the backend in status reports.
	LedgerNetwork = "local"

	maxTrailEntries = 100000
	maxTrailWindow  = 366 * 24 * time.Hour
)

// Service computes and stores content fingerprints. No external ledger
// is involved; entries are local integrity markers.
type Service struct {
	repo      RepositoryInterface
	publisher eventbus.Publisher
	threshold float64
	now       func() time.Time
}

// NewService creates a new fingerprint service
func NewService(repo RepositoryInterface, publisher eventbus.Publisher, threshold float64) *Service {
	if publisher == nil {
		publisher = eventbus.NoopPublisher{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		threshold: threshold,
		now:       time.Now,
	}
}

func (s *Service) Threshold() float64 {
	return s.threshold
}

// Record fingerprints the report when its score reaches the threshold.
// Below the threshold only the content hash is computed.
func (s *Service) Record(ctx context.Context, report Report) (*LogResult, error) {
	ctx, span := tracing.StartSpan(ctx, "fingerprint", "fingerprint.record",
		attribute.String("input_kind", report.InputKind),
		attribute.Float64("risk_score", report.RiskScore))
	defer span.End()

	contentHash, err := ContentHash(report.Body)
	if err != nil {
		fingerprintsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	result := &LogResult{
		Success:     true,
		ContentHash: contentHash,
		RiskScore:   report.RiskScore,
		Threshold:   s.threshold,
	}
	if !Exceeds(report.RiskScore, s.threshold) {
		fingerprintsTotal.WithLabelValues("below_threshold").Inc()
		return result, nil
	}

	indicators := report.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	entry := &Entry{
		ContentHash: contentHash,
		RiskScore:   report.RiskScore,
		ScoreInt:    ScoreInt(report.RiskScore),
		InputKind:   report.InputKind,
		Indicators:  indicators,
		// Postgres keeps microseconds; the hash must survive a round trip.
		RecordedAt: s.now().UTC().Truncate(time.Microsecond),
		AnalysisID: report.AnalysisID,
		Status:     StatusRecorded,
	}
	entry.TransactionHash, err = Recompute(entry)
	if err != nil {
		fingerprintsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		fingerprintsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	fingerprintsTotal.WithLabelValues("recorded").Inc()

	if err := s.publisher.Publish(ctx, EventRecorded, RecordedEvent{
		EntryID:         entry.ID,
		TransactionHash: entry.TransactionHash,
		ContentHash:     entry.ContentHash,
		RiskScore:       entry.RiskScore,
		InputKind:       entry.InputKind,
		AnalysisID:      entry.AnalysisID,
		RecordedAt:      entry.RecordedAt,
	}); err != nil {
		logger.WithContext(ctx).Warn("failed to publish fingerprint event",
			zap.String("transaction_hash", entry.TransactionHash), zap.Error(err))
	}

	result.Recorded = true
	result.Hash = entry.TransactionHash
	result.EntryID = &entry.ID
	result.RecordedAt = &entry.RecordedAt
	return result, nil
}

// Log fingerprints a free-form report.
func (s *Service) Log(ctx context.Context, report map[string]interface{}) (*LogResult, error) {
	parsed, err := ParseReport(report)
	if err != nil {
		return nil, err
	}
	return s.Record(ctx, parsed)
}

// ParseReport reads the fingerprinted fields of a free-form report. It must
// carry a numeric risk_score in [0,1]; input_kind (or input_type) and
// indicators are optional.
func ParseReport(report map[string]interface{}) (Report, error) {
	score, err := reportScore(report["risk_score"])
	if err != nil {
		return Report{}, err
	}

	kind := "unknown"
	for _, key := range []string{"input_kind", "input_type"} {
		if v, ok := report[key].(string); ok && strings.TrimSpace(v) != "" {
			kind = strings.TrimSpace(v)
			break
		}
	}

	var indicators []string
	if raw, ok := report["indicators"].([]interface{}); ok {
		for _, item := range raw {
			if str, ok := item.(string); ok {
				indicators = append(indicators, str)
			}
		}
	}

	return Report{
		Body:       report,
		RiskScore:  score,
		InputKind:  kind,
		Indicators: indicators,
	}, nil
}

func reportScore(v interface{}) (float64, error) {
	var score float64
	switch n := v.(type) {
	case float64:
		score = n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: risk_score is not a number", ErrInvalidReport)
		}
		score = f
	case nil:
		return 0, fmt.Errorf("%w: risk_score is required", ErrInvalidReport)
	default:
		return 0, fmt.Errorf("%w: risk_score is not a number", ErrInvalidReport)
	}
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: risk_score must be between 0 and 1", ErrInvalidReport)
	}
	return score, nil
}

// Verify reloads an entry and checks that its fingerprint still matches.
// An unknown hash is reported with Exists false rather than as an error.
func (s *Service) Verify(ctx context.Context, hash string) (*VerifyResult, error) {
	result := &VerifyResult{Hash: hash}

	entry, err := s.repo.GetByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	recomputed, err := Recompute(entry)
	if err != nil {
		return nil, err
	}

	result.Exists = true
	result.Entry = entry
	result.Recomputed = recomputed
	result.Valid = recomputed == entry.TransactionHash && entry.Status == StatusRecorded
	if !result.Valid {
		logger.WithContext(ctx).Warn("fingerprint mismatch",
			zap.String("transaction_hash", hash), zap.String("recomputed", recomputed))
	}
	return result, nil
}

func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	return s.repo.GetStats(ctx)
}

// FingerprintAdvisor fingerprints a successful advisor verification.
func (s *Service) FingerprintAdvisor(ctx context.Context, v AdvisorVerification) (*AdvisorFingerprint, error) {
	at := s.now().UTC().Truncate(time.Microsecond)
	advisorHash, err := AdvisorHash(v, at)
	if err != nil {
		fingerprintsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	fp := &AdvisorFingerprint{
		Hash:         AdvisorTransactionHash(advisorHash, v.AdvisorID, at),
		AdvisorHash:  advisorHash,
		VerifiedDate: at.Format(verifiedDateLayout),
		VerifiedAt:   at,
	}
	fingerprintsTotal.WithLabelValues("advisor").Inc()

	if err := s.publisher.Publish(ctx, EventAdvisorVerified, AdvisorVerifiedEvent{
		Hash:        fp.Hash,
		AdvisorHash: advisorHash,
		AdvisorID:   v.AdvisorID,
		Status:      v.Status,
		VerifiedAt:  at,
	}); err != nil {
		logger.WithContext(ctx).Warn("failed to publish advisor fingerprint event",
			zap.String("advisor_id", v.AdvisorID), zap.Error(err))
	}
	return fp, nil
}

// AuditTrail digests every entry recorded in [from, to).
func (s *Service) AuditTrail(ctx context.Context, from, to time.Time) (*AuditTrail, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidWindow)
	}
	if to.Sub(from) > maxTrailWindow {
		return nil, fmt.Errorf("%w: window exceeds %d days", ErrInvalidWindow, int(maxTrailWindow.Hours()/24))
	}

	ctx, span := tracing.StartSpan(ctx, "fingerprint", "fingerprint.audit_trail")
	defer span.End()

	entries, err := s.repo.ListRecorded(ctx, from, to, maxTrailEntries+1)
	if err != nil {
		return nil, err
	}
	if len(entries) > maxTrailEntries {
		return nil, fmt.Errorf("%w: more than %d", ErrTrailTooLarge, maxTrailEntries)
	}

	trailHash, err := AuditTrailHash(entries)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	span.SetAttributes(attribute.Int("entries", len(entries)))

	return &AuditTrail{
		Hash:           AuditTransactionHash(trailHash, now),
		AuditTrailHash: trailHash,
		TotalReports:   len(entries),
		From:           from.UTC(),
		To:             to.UTC(),
		CreatedAt:      now,
	}, nil
}

// Status reports the fingerprint log backend. A store error is reported as
// disconnected rather than returned.
func (s *Service) Status(ctx context.Context) *LedgerStatus {
	status := &LedgerStatus{Network: LedgerNetwork, Threshold: s.threshold}

	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		logger.WithContext(ctx).Warn("fingerprint store unavailable", zap.Error(err))
		return status
	}
	status.Connected = true
	status.TotalEntries = stats.Total

	latest, err := s.repo.LatestRecordedAt(ctx)
	if err != nil {
		logger.WithContext(ctx).Warn("failed to read latest fingerprint", zap.Error(err))
		return status
	}
	status.LatestRecordedAt = latest
	return status
}
