package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/richxcame/trustx/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyQuery is returned when neither a name nor an id is given.
var ErrEmptyQuery = errors.New("advisor name or id is required")

const recentRegistration = 365 * 24 * time.Hour

// Service verifies advisors, brokers and fund houses
type Service struct {
	repo  RepositoryInterface
	cache CacheInterface
	web   WebSourceInterface
	seed  *SeedData
	names *signals.AdvisorNameExtractor
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time

	fingerprints VerificationFingerprinter
}

// NewService creates a registry service. cache and web may be nil.
func NewService(repo RepositoryInterface, cache CacheInterface, web WebSourceInterface, seed *SeedData, ttl time.Duration) *Service {
	if seed == nil {
		seed = DefaultSeed()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		repo:  repo,
		cache: cache,
		web:   web,
		seed:  seed,
		names: signals.NewAdvisorNameExtractor(signals.DefaultRules()),
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithFingerprinter fingerprints every lookup that finds a registered advisor.
func (s *Service) WithFingerprinter(f VerificationFingerprinter) *Service {
	s.fingerprints = f
	return s
}

type match struct {
	advisor *Advisor
	source  Source
}

// Lookup verifies an advisor. An exact id match wins over a name match.
// Concurrent identical lookups share one resolution.
func (s *Service) Lookup(ctx context.Context, name, advisorID string) (*LookupResult, error) {
	name = strings.TrimSpace(name)
	advisorID = strings.TrimSpace(advisorID)
	if name == "" && advisorID == "" {
		return nil, ErrEmptyQuery
	}

	key := lookupKey(name, advisorID)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.resolve(ctx, key, name, advisorID)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.IncrVerifications(ctx); err != nil {
			logger.WithContext(ctx).Debug("failed to count verification", zap.Error(err))
		}
	}
	return s.buildResult(ctx, name, advisorID, v.(*match)), nil
}

// Status adapts Lookup to the detection pipeline.
func (s *Service) Status(ctx context.Context, name, advisorID string) (*signals.AdvisorStatus, error) {
	res, err := s.Lookup(ctx, name, advisorID)
	if err != nil {
		return nil, err
	}
	status := &signals.AdvisorStatus{Registered: res.IsRegistered, Status: res.Status}
	if res.MatchedRecord != nil {
		status.RegisteredOn = res.MatchedRecord.RegisteredOn
	}
	return status, nil
}

func (s *Service) resolve(ctx context.Context, key, name, advisorID string) (*match, error) {
	log := logger.WithContext(ctx)

	if s.cache != nil {
		a, err := s.cache.Get(ctx, key)
		if err == nil {
			return &match{advisor: a, source: SourceCache}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			log.Warn("advisor cache read failed", zap.Error(err))
		}
	}

	var stale *Advisor
	stored, dbErr := s.findStored(ctx, name, advisorID)
	switch {
	case dbErr == nil:
		if s.now().Sub(stored.LastVerified) < s.ttl {
			s.remember(ctx, key, stored)
			return &match{advisor: stored, source: SourceDatabase}, nil
		}
		stale = stored
	case errors.Is(dbErr, ErrNotFound):
		dbErr = nil
	default:
		log.Warn("advisor store lookup failed", zap.Error(dbErr))
	}

	var webErr error
	if s.web != nil {
		found, err := s.web.Search(ctx, name, advisorID)
		switch {
		case err == nil:
			found.LastVerified = s.now()
			if err := s.repo.Upsert(ctx, found); err != nil {
				log.Error("failed to cache advisor", zap.String("advisor_id", found.AdvisorID), zap.Error(err))
			}
			s.remember(ctx, key, found)
			return &match{advisor: found, source: SourceWeb}, nil
		case errors.Is(err, ErrNotFound):
			return &match{source: SourceNone}, nil
		default:
			webErr = err
			log.Warn("registry web lookup failed", zap.Error(err))
		}
	}

	if stale != nil {
		return &match{advisor: stale, source: SourceStale}, nil
	}
	if dbErr != nil {
		return nil, fmt.Errorf("registry unavailable: %w", errors.Join(dbErr, webErr))
	}
	return &match{source: SourceNone}, nil
}

func (s *Service) findStored(ctx context.Context, name, advisorID string) (*Advisor, error) {
	if advisorID != "" {
		a, err := s.repo.FindByAdvisorID(ctx, advisorID)
		if err == nil || !errors.Is(err, ErrNotFound) || name == "" {
			return a, err
		}
	}
	return s.repo.FindByName(ctx, name)
}

func (s *Service) remember(ctx context.Context, key string, a *Advisor) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, a); err != nil {
		logger.WithContext(ctx).Warn("advisor cache write failed", zap.Error(err))
	}
}

func (s *Service) buildResult(ctx context.Context, name, advisorID string, m *match) *LookupResult {
	res := &LookupResult{
		AdvisorName: name,
		AdvisorID:   advisorID,
		Source:      m.source,
		VerifiedAt:  s.now().UTC(),
	}

	if m.advisor == nil {
		res.Status = StatusNotFound
		res.RiskIndicators = []string{}
		if sig, err := s.names.Extract(ctx, &signals.Request{Kind: risk.KindAdvisor, AdvisorName: name}); err == nil {
			res.RiskIndicators = sig.Indicators
		}
		res.Recommendations = unregisteredRecommendations()
		return res
	}

	a := m.advisor
	res.IsRegistered = true
	res.Status = a.Status
	res.MatchedRecord = a
	res.RiskIndicators = []string{}
	if a.Status != StatusActive {
		res.RiskIndicators = append(res.RiskIndicators, fmt.Sprintf("Advisor status is %s, not ACTIVE", a.Status))
	}
	if a.RegisteredOn != nil && s.now().Sub(*a.RegisteredOn) < recentRegistration {
		res.RiskIndicators = append(res.RiskIndicators, "Recently registered advisor (less than 1 year)")
	}
	res.Recommendations = registeredRecommendations(a.Status)
	res.VerificationFingerprint = s.fingerprintVerification(ctx, a)
	return res
}

// fingerprintVerification is best effort: a failure leaves the result unmarked.
func (s *Service) fingerprintVerification(ctx context.Context, a *Advisor) *fingerprint.AdvisorFingerprint {
	if s.fingerprints == nil {
		return nil
	}
	fp, err := s.fingerprints.FingerprintAdvisor(ctx, fingerprint.AdvisorVerification{
		AdvisorID:          a.AdvisorID,
		AdvisorName:        a.Name,
		RegistrationNumber: a.RegistrationNumber,
		Status:             a.Status,
	})
	if err != nil {
		logger.WithContext(ctx).Warn("failed to fingerprint advisor verification",
			zap.String("advisor_id", a.AdvisorID), zap.Error(err))
		return nil
	}
	return fp
}

func registeredRecommendations(status string) []string {
	recs := []string{
		"Advisor is SEBI registered - good sign",
		"Verify advisor credentials independently",
		"Check fee structure and terms carefully",
	}
	if status != StatusActive {
		recs = append([]string{fmt.Sprintf("WARNING: Advisor status is %s - proceed with caution", status)}, recs...)
	}
	return recs
}

func unregisteredRecommendations() []string {
	return []string{
		"DANGER: Advisor not found in SEBI registry",
		"DO NOT invest through unregistered advisors",
		"Report this advisor to SEBI if they claim to be registered",
		"Only use SEBI registered investment advisors",
	}
}

// matchName returns the first entry containing query, ignoring case.
func matchName(entries []string, query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e), q) {
			return e, true
		}
	}
	return "", false
}

// VerifyBroker checks a stock broker against the registered list
func (s *Service) VerifyBroker(name string) *EntityVerification {
	res := &EntityVerification{Name: name, EntityType: "Stock Broker", VerifiedAt: s.now().UTC()}
	if matched, ok := matchName(s.seed.Brokers, name); ok {
		res.IsRegistered = true
		res.Status = StatusActive
		res.MatchedName = matched
		res.RiskIndicators = []string{}
		res.Recommendations = []string{"Broker is SEBI registered and can be trusted for trading"}
		return res
	}

	res.Status = StatusNotFound
	res.RiskIndicators = []string{
		"Broker not found in SEBI registered list",
		"Potentially operating without SEBI registration",
	}
	res.Recommendations = []string{
		"DO NOT trade with unregistered broker",
		"Verify broker registration on SEBI website",
		"Choose only SEBI registered brokers",
	}
	return res
}

// VerifyFund checks a mutual fund house against the registered list
func (s *Service) VerifyFund(name, amcName string) *EntityVerification {
	res := &EntityVerification{Name: name, EntityType: "Mutual Fund", VerifiedAt: s.now().UTC()}
	query := amcName
	if strings.TrimSpace(query) == "" {
		query = name
	}
	if matched, ok := matchName(s.seed.FundHouses, query); ok {
		res.IsRegistered = true
		res.Status = StatusActive
		res.MatchedName = matched
		res.RiskIndicators = []string{}
		res.Recommendations = []string{"AMC is SEBI registered"}
		return res
	}

	res.Status = StatusNotFound
	res.RiskIndicators = []string{"Fund/AMC not found in SEBI registered list"}
	res.Recommendations = []string{"Verify fund registration before investing"}
	return res
}

// CheckAlerts reports regulator warnings that mention name
func (s *Service) CheckAlerts(name string) *AlertResult {
	res := &AlertResult{EntityName: name, AlertDetails: []string{}, RiskLevel: risk.LevelLow}
	if matched, ok := matchName(s.seed.Alerts, name); ok {
		res.HasAlerts = true
		res.RiskLevel = risk.LevelHigh
		res.AlertDetails = []string{
			fmt.Sprintf("SEBI Alert: %s is operating without registration", matched),
			"Entity has been flagged for fraudulent activities",
		}
	}
	return res
}

// GetStats returns advisor cache counts and the number of verifications
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		n, err := s.cache.Verifications(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("failed to read verification count", zap.Error(err))
		}
		stats.Verifications = n
	}
	return stats, nil
}

// Seed upserts the sample advisors, refreshing their verification time
func (s *Service) Seed(ctx context.Context) error {
	var errs []error
	for _, a := range s.seed.AdvisorRecords(s.now()) {
		if err := s.repo.Upsert(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("seed %s: %w", a.AdvisorID, err))
		}
	}
	return errors.Join(errs...)
}
