package analysis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/trustx/internal/detection"
	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/eventbus"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/pagination"
	"github.com/richxcame/trustx/pkg/security"
	"github.com/richxcame/trustx/pkg/storage"
	"go.uber.org/zap"
)

const (
	// EventHighRisk is published for every HIGH analysis
	EventHighRisk = "analysis.high_risk"

	dashboardCacheKey = "trustx:dashboard:stats"
	dashboardCacheTTL = 30 * time.Second

	maxContentRunes     = 20000
	maxAdvisorNameRunes = 200
	trendDays           = 7
	indicatorSample     = 100
	topIndicators       = 10
	highActivityAlert   = 10
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp"}

// Config holds the optional collaborators of the service
type Config struct {
	Repo         RepositoryInterface
	Detector     Detector
	Fingerprints Fingerprinter
	Registry     RegistryStats
	Storage      storage.Storage
	Cache        CacheInterface
	Publisher    eventbus.Publisher
	HistorySize  int
}

// Service orchestrates analyses and serves history and statistics
type Service struct {
	repo         RepositoryInterface
	detector     Detector
	fingerprints Fingerprinter
	registry     RegistryStats
	storage      storage.Storage
	cache        CacheInterface
	publisher    eventbus.Publisher
	historySize  int
	now          func() time.Time
}

// NewService creates a new analysis service
func NewService(cfg Config) *Service {
	if cfg.Publisher == nil {
		cfg.Publisher = eventbus.NoopPublisher{}
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = pagination.DefaultLimit
	}
	return &Service{
		repo:         cfg.Repo,
		detector:     cfg.Detector,
		fingerprints: cfg.Fingerprints,
		registry:     cfg.Registry,
		storage:      cfg.Storage,
		cache:        cfg.Cache,
		publisher:    cfg.Publisher,
		historySize:  cfg.HistorySize,
		now:          time.Now,
	}
}

// Detect analyses one input. Persistence, session counters, evidence
// upload, fingerprinting and events are best effort: their failures are
// logged and never fail the request.
func (s *Service) Detect(ctx context.Context, in Input) (*Analysis, error) {
	log := logger.WithContext(ctx).With(zap.String("input_kind", string(in.Kind)))

	req, raw, err := prepareRequest(in)
	if err != nil {
		return nil, err
	}

	out := &Analysis{InputKind: in.Kind, ContentFingerprint: ContentFingerprint(raw)}
	out.EvidenceKey = s.storeEvidence(ctx, in)

	result, err := s.detector.Run(ctx, req)
	if err != nil {
		s.discardEvidence(ctx, out.EvidenceKey)
		switch {
		case errors.Is(err, detection.ErrAnalysisFailed):
			return nil, common.NewUnprocessableError(detection.ErrAnalysisFailed.Error(), err)
		case errors.Is(err, detection.ErrUnsupportedKind):
			return nil, common.NewBadRequestError("unsupported input type", err)
		}
		return nil, common.NewInternalError("internal server error", err)
	}

	out.Assessment = result.Assessment
	out.FailedSignals = result.Failed
	out.SkippedSignals = result.Skipped
	out.ProcessingMS = result.Duration.Milliseconds()
	out.ExtractedText = firstNonEmpty(req.ExtractedText, req.QRPayload)

	record := &Record{
		InputKind:          in.Kind,
		ContentFingerprint: out.ContentFingerprint,
		RiskScore:          result.Assessment.RiskScore,
		RiskLevel:          result.Assessment.RiskLevel,
		Assessment:         result.Assessment,
		SessionID:          in.SessionID,
		UserAgent:          in.UserAgent,
		IPAddress:          in.ClientIP,
	}
	if out.EvidenceKey != "" {
		record.EvidenceKey = &out.EvidenceKey
	}
	if err := s.repo.CreateRecord(ctx, record); err != nil {
		log.Error("failed to persist analysis", zap.Error(err))
		s.discardEvidence(ctx, out.EvidenceKey)
		out.EvidenceKey = ""
	} else {
		out.RecordID = &record.ID
	}

	highRisk := result.Assessment.RiskLevel == risk.LevelHigh
	if in.SessionID != nil {
		if err := s.repo.IncrementSession(ctx, *in.SessionID, highRisk, s.now().UTC()); err != nil {
			log.Warn("failed to update session counters", zap.String("session_id", in.SessionID.String()), zap.Error(err))
		}
	}

	s.fingerprint(ctx, out)

	if highRisk {
		if err := s.publisher.Publish(ctx, EventHighRisk, HighRiskEvent{
			RecordID:           out.RecordID,
			InputKind:          in.Kind,
			RiskScore:          out.RiskScore,
			Indicators:         out.Indicators,
			ContentFingerprint: out.ContentFingerprint,
			LedgerFingerprint:  out.LedgerFingerprint,
			SessionID:          in.SessionID,
		}); err != nil {
			log.Warn("failed to publish high risk event", zap.Error(err))
		}
	}

	return out, nil
}

// fingerprint records risky analyses in the fingerprint log and attaches
// the result to the stored record.
func (s *Service) fingerprint(ctx context.Context, out *Analysis) {
	if s.fingerprints == nil || !fingerprint.Exceeds(out.RiskScore, s.fingerprints.Threshold()) {
		return
	}
	log := logger.WithContext(ctx)

	res, err := s.fingerprints.Record(ctx, fingerprint.Report{
		Body: map[string]interface{}{
			"input_kind":          out.InputKind,
			"content_fingerprint": out.ContentFingerprint,
			"risk_score":          out.RiskScore,
			"risk_level":          out.RiskLevel,
			"indicators":          out.Indicators,
		},
		RiskScore:  out.RiskScore,
		InputKind:  string(out.InputKind),
		Indicators: out.Indicators,
		AnalysisID: out.RecordID,
	})
	if err != nil {
		log.Error("failed to record fingerprint", zap.Error(err))
		return
	}
	out.Fingerprint = res
	if !res.Recorded {
		return
	}
	out.LedgerFingerprint = res.Hash

	if out.RecordID != nil {
		if err := s.repo.AttachLedgerFingerprint(ctx, *out.RecordID, res.Hash); err != nil {
			log.Error("failed to attach ledger fingerprint", zap.String("record_id", out.RecordID.String()), zap.Error(err))
		}
	}
}

func (s *Service) storeEvidence(ctx context.Context, in Input) string {
	if s.storage == nil || len(in.Image) == 0 {
		return ""
	}
	session := ""
	if in.SessionID != nil {
		session = in.SessionID.String()
	}
	key := storage.GenerateEvidenceKey(string(in.Kind), session, in.ImageType)
	res, err := s.storage.Upload(ctx, key, bytes.NewReader(in.Image), int64(len(in.Image)), in.ImageType)
	if err != nil {
		logger.WithContext(ctx).Warn("failed to store evidence", zap.String("key", key), zap.Error(err))
		return ""
	}
	return res.Key
}

// discardEvidence removes an upload that no stored record references.
func (s *Service) discardEvidence(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		logger.WithContext(ctx).Warn("failed to discard evidence", zap.String("key", key), zap.Error(err))
	}
}

// prepareRequest checks the fields each kind requires, sanitises them and
// returns the raw content used for the content fingerprint.
func prepareRequest(in Input) (*signals.Request, []byte, error) {
	req := &signals.Request{Kind: in.Kind}

	switch in.Kind {
	case risk.KindText:
		req.Content = security.SanitizeInput(in.Content, maxContentRunes)
		if req.Content == "" {
			return nil, nil, common.NewBadRequestError("content is required for text analysis", nil)
		}
		return req, []byte(in.Content), nil

	case risk.KindURL:
		if strings.TrimSpace(in.URL) == "" {
			return nil, nil, common.NewBadRequestError("url is required for url analysis", nil)
		}
		req.URL = security.SanitizeURL(in.URL)
		if req.URL == "" {
			return nil, nil, common.NewBadRequestError("url must be an absolute http or https URL", nil)
		}
		return req, []byte(in.URL), nil

	case risk.KindImage, risk.KindQR:
		if len(in.Image) == 0 {
			return nil, nil, common.NewBadRequestError(fmt.Sprintf("an image file is required for %s analysis", in.Kind), nil)
		}
		if !storage.ValidateMimeType(in.ImageType, allowedImageTypes) {
			return nil, nil, common.NewBadRequestError("unsupported image type", nil)
		}
		req.Image = in.Image
		req.ImageType = in.ImageType
		return req, in.Image, nil

	case risk.KindAdvisor:
		req.AdvisorName = security.SanitizeInput(in.AdvisorName, maxAdvisorNameRunes)
		req.AdvisorID = security.SanitizeIdentifier(in.AdvisorID)
		if req.AdvisorName == "" {
			return nil, nil, common.NewBadRequestError("advisor_name is required for advisor analysis", nil)
		}
		raw := in.AdvisorName
		if in.AdvisorID != "" {
			raw += "|" + in.AdvisorID
		}
		return req, []byte(raw), nil
	}

	return nil, nil, common.NewBadRequestError("unsupported input type", nil)
}

// ContentFingerprint is the hex sha256 of the raw submitted content.
func ContentFingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetHistory returns the most recent records, newest first
func (s *Service) GetHistory(ctx context.Context, sessionID *uuid.UUID, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = s.historySize
	}
	limit = pagination.Normalize(limit, 0).Limit
	return s.repo.ListRecords(ctx, sessionID, limit)
}

// CreateSession starts a session. An empty user type means INVESTOR.
func (s *Service) CreateSession(ctx context.Context, userType, ip, userAgent string) (*Session, error) {
	ut := UserType(strings.ToUpper(strings.TrimSpace(userType)))
	if ut == "" {
		ut = UserTypeInvestor
	}
	session := &Session{
		UserType:  ut,
		IPAddress: ip,
		UserAgent: security.TruncateString(userAgent, 255),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSessionSummary returns a session with its derived rates
func (s *Service) GetSessionSummary(ctx context.Context, id uuid.UUID) (*SessionSummary, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := &SessionSummary{Session: *session}
	if session.TotalAnalyses > 0 {
		summary.RiskDetectionRate = round2(float64(session.HighRiskDetections) / float64(session.TotalAnalyses) * 100)
	}
	if session.FirstAnalysis != nil && session.LastAnalysis != nil {
		summary.Duration = session.LastAnalysis.Sub(*session.FirstAnalysis).String()
	}
	return summary, nil
}

// GetDashboard returns dashboard statistics, cached briefly
func (s *Service) GetDashboard(ctx context.Context) (*Dashboard, error) {
	log := logger.WithContext(ctx)

	if s.cache != nil {
		var cached Dashboard
		found, err := s.cache.GetJSON(ctx, dashboardCacheKey, &cached)
		if err != nil {
			log.Warn("dashboard cache read failed", zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	d, err := s.buildDashboard(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, dashboardCacheKey, d, dashboardCacheTTL); err != nil {
			log.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return d, nil
}

func (s *Service) buildDashboard(ctx context.Context) (*Dashboard, error) {
	log := logger.WithContext(ctx)
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	overview, err := s.repo.GetOverview(ctx, today, today.AddDate(0, 0, -7), today.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	byLevel, err := s.repo.CountByLevel(ctx)
	if err != nil {
		return nil, err
	}
	byKind, err := s.repo.CountByKind(ctx)
	if err != nil {
		return nil, err
	}
	daily, err := s.repo.HighRiskByDay(ctx, today.AddDate(0, 0, -(trendDays-1)))
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopHighRiskIndicators(ctx, indicatorSample, topIndicators)
	if err != nil {
		return nil, err
	}

	if overview.TotalAnalyses > 0 {
		overview.HighRiskPercentage = round2(float64(byLevel[string(risk.LevelHigh)]) / float64(overview.TotalAnalyses) * 100)
	}

	trend := make([]TrendPoint, 0, trendDays)
	for i := 0; i < trendDays; i++ {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		trend = append(trend, TrendPoint{Date: day, HighRiskCount: daily[day]})
	}

	d := &Dashboard{
		Overview:           *overview,
		RiskBreakdown:      byLevel,
		InputTypeBreakdown: byKind,
		Trends:             Trends{HighRisk7Days: trend},
		TopIndicators:      top,
		Alerts:             activeAlerts(trend[0].HighRiskCount, now),
		LastUpdated:        now,
	}

	if s.fingerprints != nil {
		if d.Fingerprints, err = s.fingerprints.GetStats(ctx); err != nil {
			log.Warn("failed to load fingerprint stats", zap.Error(err))
		}
	}
	if s.registry != nil {
		if d.Registry, err = s.registry.GetStats(ctx); err != nil {
			log.Warn("failed to load registry stats", zap.Error(err))
		}
	}
	return d, nil
}

func activeAlerts(highToday int64, now time.Time) []Alert {
	alerts := make([]Alert, 0, 1)
	if highToday > highActivityAlert {
		alerts = append(alerts, Alert{
			Type:           "HIGH_ACTIVITY",
			Severity:       risk.LevelHigh,
			Message:        fmt.Sprintf("High fraud activity detected: %d high-risk reports today", highToday),
			CreatedAt:      now,
			ActionRequired: true,
		})
	}
	return alerts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
