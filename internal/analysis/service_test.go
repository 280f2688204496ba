package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/trustx/internal/detection"
	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/registry"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ========================================
// MOCKS
// ========================================

// MockRepository is a mock implementation of RepositoryInterface
type MockRepository struct {
	mock.Mock
}

var recordID = uuid.MustParse("7f0c7c1e-2d8e-4d55-9a43-0c1f3a9f5e21")

func (m *MockRepository) CreateRecord(ctx context.Context, record *Record) error {
	args := m.Called(ctx, record)
	if args.Error(0) == nil {
		record.ID = recordID
		record.CreatedAt = fixedNow
	}
	return args.Error(0)
}

func (m *MockRepository) AttachLedgerFingerprint(ctx context.Context, id uuid.UUID, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockRepository) ListRecords(ctx context.Context, sessionID *uuid.UUID, limit int) ([]*Record, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Record), args.Error(1)
}

func (m *MockRepository) CreateSession(ctx context.Context, session *Session) error {
	args := m.Called(ctx, session)
	if args.Error(0) == nil {
		session.ID = uuid.New()
		session.CreatedAt = fixedNow
	}
	return args.Error(0)
}

func (m *MockRepository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockRepository) IncrementSession(ctx context.Context, id uuid.UUID, highRisk bool, at time.Time) error {
	args := m.Called(ctx, id, highRisk, at)
	return args.Error(0)
}

func (m *MockRepository) GetOverview(ctx context.Context, today, weekAgo, monthAgo time.Time) (*Overview, error) {
	args := m.Called(ctx, today, weekAgo, monthAgo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Overview), args.Error(1)
}

func (m *MockRepository) CountByLevel(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockRepository) CountByKind(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockRepository) HighRiskByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockRepository) TopHighRiskIndicators(ctx context.Context, sample, limit int) ([]IndicatorCount, error) {
	args := m.Called(ctx, sample, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]IndicatorCount), args.Error(1)
}

// MockDetector is a mock implementation of Detector
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Run(ctx context.Context, req *signals.Request) (*detection.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*detection.Result), args.Error(1)
}

// MockFingerprinter is a mock implementation of Fingerprinter
type MockFingerprinter struct {
	mock.Mock
}

func (m *MockFingerprinter) Record(ctx context.Context, report fingerprint.Report) (*fingerprint.LogResult, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fingerprint.LogResult), args.Error(1)
}

func (m *MockFingerprinter) Threshold() float64 {
	return fingerprint.DefaultThreshold
}

func (m *MockFingerprinter) GetStats(ctx context.Context) (*fingerprint.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fingerprint.Stats), args.Error(1)
}

// MockRegistryStats is a mock implementation of RegistryStats
type MockRegistryStats struct {
	mock.Mock
}

func (m *MockRegistryStats) GetStats(ctx context.Context) (*registry.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.Stats), args.Error(1)
}

// MockStorage is a mock implementation of storage.Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	args := m.Called(ctx, key, reader, size, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.UploadResult), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// MockCache is a mock implementation of CacheInterface
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	args := m.Called(ctx, key, dest)
	if fill, ok := args.Get(2).(*Dashboard); ok && fill != nil {
		*dest.(*Dashboard) = *fill
	}
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

// MockPublisher is a mock implementation of eventbus.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	return m.Called(ctx, eventType, data).Error(0)
}

func (m *MockPublisher) Close() {}

// ========================================
// HELPERS
// ========================================

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type deps struct {
	repo     *MockRepository
	detector *MockDetector
	prints   *MockFingerprinter
	registry *MockRegistryStats
	storage  *MockStorage
	cache    *MockCache
	pub      *MockPublisher
}

func newDeps() *deps {
	return &deps{
		repo:     new(MockRepository),
		detector: new(MockDetector),
		prints:   new(MockFingerprinter),
		registry: new(MockRegistryStats),
		storage:  new(MockStorage),
		cache:    new(MockCache),
		pub:      new(MockPublisher),
	}
}

func (d *deps) service() *Service {
	svc := NewService(Config{
		Repo:         d.repo,
		Detector:     d.detector,
		Fingerprints: d.prints,
		Registry:     d.registry,
		Storage:      d.storage,
		Cache:        d.cache,
		Publisher:    d.pub,
	})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func result(score float64, indicators ...string) *detection.Result {
	if indicators == nil {
		indicators = []string{}
	}
	level := risk.ClassifyRisk(score)
	return &detection.Result{
		Assessment: risk.Assessment{
			RiskScore:       score,
			RiskLevel:       level,
			Indicators:      indicators,
			Recommendations: risk.Recommendations(level),
		},
		Duration: 40 * time.Millisecond,
	}
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ========================================
// DETECT
// ========================================

func TestDetect_HighRiskText(t *testing.T) {
	d := newDeps()
	content := "guaranteed 100% returns, act now!"
	d.detector.On("Run", mock.Anything, mock.MatchedBy(func(r *signals.Request) bool {
		return r.Kind == risk.KindText && r.Content == content
	})).Return(result(0.82, "Contains common fraud keywords"), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.MatchedBy(func(r *Record) bool {
		return r.RiskLevel == risk.LevelHigh && r.ContentFingerprint == sha(content) && r.IPAddress == "10.0.0.1"
	})).Return(nil)
	d.prints.On("Record", mock.Anything, mock.MatchedBy(func(r fingerprint.Report) bool {
		return r.RiskScore == 0.82 && r.InputKind == "text" && r.AnalysisID != nil && *r.AnalysisID == recordID
	})).Return(&fingerprint.LogResult{Success: true, Recorded: true, Hash: "0xabc"}, nil)
	d.repo.On("AttachLedgerFingerprint", mock.Anything, recordID, "0xabc").Return(nil)
	d.pub.On("Publish", mock.Anything, EventHighRisk, mock.AnythingOfType("analysis.HighRiskEvent")).Return(nil)

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindText, Content: content, ClientIP: "10.0.0.1"})

	require.NoError(t, err)
	assert.Equal(t, 0.82, out.RiskScore)
	assert.Equal(t, risk.LevelHigh, out.RiskLevel)
	assert.Equal(t, sha(content), out.ContentFingerprint)
	assert.Len(t, out.ContentFingerprint, 64)
	require.NotNil(t, out.RecordID)
	assert.Equal(t, recordID, *out.RecordID)
	assert.Equal(t, "0xabc", out.LedgerFingerprint)
	assert.Equal(t, int64(40), out.ProcessingMS)

	d.repo.AssertExpectations(t)
	d.prints.AssertExpectations(t)
	d.pub.AssertExpectations(t)
}

func TestDetect_PersistenceFailureStillResponds(t *testing.T) {
	d := newDeps()
	d.detector.On("Run", mock.Anything, mock.Anything).Return(result(0.9), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	d.prints.On("Record", mock.Anything, mock.MatchedBy(func(r fingerprint.Report) bool {
		return r.AnalysisID == nil
	})).Return(&fingerprint.LogResult{Success: true, Recorded: true, Hash: "0xdef"}, nil)
	d.pub.On("Publish", mock.Anything, EventHighRisk, mock.Anything).Return(nil)

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindText, Content: "act now"})

	require.NoError(t, err)
	assert.Nil(t, out.RecordID)
	assert.Equal(t, "0xdef", out.LedgerFingerprint)
	d.repo.AssertNotCalled(t, "AttachLedgerFingerprint", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetect_BelowThresholdIsNotFingerprinted(t *testing.T) {
	d := newDeps()
	d.detector.On("Run", mock.Anything, mock.Anything).Return(result(0.699999), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.Anything).Return(nil)

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindText, Content: "hello"})

	require.NoError(t, err)
	assert.Empty(t, out.LedgerFingerprint)
	assert.Nil(t, out.Fingerprint)
	d.prints.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	d.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetect_FingerprintFailureIsNotFatal(t *testing.T) {
	d := newDeps()
	d.detector.On("Run", mock.Anything, mock.Anything).Return(result(0.7), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.Anything).Return(nil)
	d.prints.On("Record", mock.Anything, mock.Anything).Return(nil, errors.New("store down"))
	d.pub.On("Publish", mock.Anything, EventHighRisk, mock.Anything).Return(errors.New("nats down"))

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindText, Content: "x"})

	require.NoError(t, err)
	assert.Empty(t, out.LedgerFingerprint)
	assert.NotNil(t, out.RecordID)
}

func TestDetect_UpdatesSessionCounters(t *testing.T) {
	d := newDeps()
	session := uuid.New()
	d.detector.On("Run", mock.Anything, mock.Anything).Return(result(0.5), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.MatchedBy(func(r *Record) bool {
		return r.SessionID != nil && *r.SessionID == session
	})).Return(nil)
	d.repo.On("IncrementSession", mock.Anything, session, false, fixedNow).Return(ErrSessionNotFound)

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindURL, URL: "http://bit.ly/x", SessionID: &session})

	require.NoError(t, err)
	assert.Equal(t, risk.LevelMedium, out.RiskLevel)
	d.repo.AssertExpectations(t)
}

func TestDetect_AnalysisFailed(t *testing.T) {
	d := newDeps()
	d.detector.On("Run", mock.Anything, mock.Anything).Return(nil, detection.ErrAnalysisFailed)

	_, err := d.service().Detect(context.Background(), Input{Kind: risk.KindURL, URL: "https://example.com"})

	require.Error(t, err)
	appErr := common.AsAppError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
	assert.Equal(t, "analysis failed: no signal could be computed", appErr.Message)
	d.repo.AssertNotCalled(t, "CreateRecord", mock.Anything, mock.Anything)
}

func TestDetect_UnexpectedPipelineError(t *testing.T) {
	d := newDeps()
	d.detector.On("Run", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := d.service().Detect(context.Background(), Input{Kind: risk.KindText, Content: "x"})

	appErr := common.AsAppError(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, "internal server error", appErr.Message)
}

func TestDetect_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"empty text", Input{Kind: risk.KindText, Content: "  \x00 "}},
		{"missing url", Input{Kind: risk.KindURL}},
		{"non http url", Input{Kind: risk.KindURL, URL: "ftp://example.com/file"}},
		{"relative url", Input{Kind: risk.KindURL, URL: "bit.ly/abc"}},
		{"image without file", Input{Kind: risk.KindImage}},
		{"qr with pdf", Input{Kind: risk.KindQR, Image: []byte("%PDF-1.4"), ImageType: "application/pdf"}},
		{"advisor without name", Input{Kind: risk.KindAdvisor, AdvisorID: "INA000001234"}},
		{"unknown kind", Input{Kind: "video", Content: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			_, err := d.service().Detect(context.Background(), tt.in)

			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, common.AsAppError(err).Code)
			d.detector.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestDetect_ImageStoresEvidence(t *testing.T) {
	d := newDeps()
	img := []byte("\x89PNG\r\n\x1a\nfake")
	d.storage.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > 0 && key[:len("evidence/image/")] == "evidence/image/"
	}), mock.Anything, int64(len(img)), "image/png").Return(&storage.UploadResult{Key: "evidence/image/k.png"}, nil)
	d.detector.On("Run", mock.Anything, mock.MatchedBy(func(r *signals.Request) bool {
		r.ExtractedText = "Guaranteed returns"
		return r.Kind == risk.KindImage && len(r.Image) == len(img)
	})).Return(result(0.2), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.MatchedBy(func(r *Record) bool {
		return r.EvidenceKey != nil && *r.EvidenceKey == "evidence/image/k.png"
	})).Return(nil)

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindImage, Image: img, ImageType: "image/png"})

	require.NoError(t, err)
	assert.Equal(t, "evidence/image/k.png", out.EvidenceKey)
	assert.Equal(t, "Guaranteed returns", out.ExtractedText)
	assert.Equal(t, sha(string(img)), out.ContentFingerprint)
}

func TestDetect_EvidenceUploadFailureIsNotFatal(t *testing.T) {
	d := newDeps()
	d.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("bucket missing"))
	d.detector.On("Run", mock.Anything, mock.Anything).Return(result(0.1), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.MatchedBy(func(r *Record) bool { return r.EvidenceKey == nil })).Return(nil)

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindQR, Image: []byte("GIF89a"), ImageType: "image/gif"})

	require.NoError(t, err)
	assert.Empty(t, out.EvidenceKey)
}

func TestDetect_FailedAnalysisDiscardsEvidence(t *testing.T) {
	d := newDeps()
	d.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&storage.UploadResult{Key: "evidence/image/k.png"}, nil)
	d.storage.On("Delete", mock.Anything, "evidence/image/k.png").Return(nil)
	d.detector.On("Run", mock.Anything, mock.Anything).Return(nil, detection.ErrAnalysisFailed)

	_, err := d.service().Detect(context.Background(), Input{Kind: risk.KindImage, Image: []byte("\x89PNG"), ImageType: "image/png"})

	require.Error(t, err)
	d.storage.AssertExpectations(t)
	d.repo.AssertNotCalled(t, "CreateRecord", mock.Anything, mock.Anything)
}

func TestDetect_UnpersistedRecordDiscardsEvidence(t *testing.T) {
	d := newDeps()
	d.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&storage.UploadResult{Key: "evidence/qr/k.gif"}, nil)
	d.storage.On("Delete", mock.Anything, "evidence/qr/k.gif").Return(errors.New("access denied"))
	d.detector.On("Run", mock.Anything, mock.Anything).Return(result(0.1), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.Anything).Return(errors.New("db down"))

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindQR, Image: []byte("GIF89a"), ImageType: "image/gif"})

	require.NoError(t, err)
	assert.Empty(t, out.EvidenceKey)
	assert.Nil(t, out.RecordID)
	d.storage.AssertExpectations(t)
}

func TestDetect_AdvisorFingerprintIncludesID(t *testing.T) {
	d := newDeps()
	d.detector.On("Run", mock.Anything, mock.MatchedBy(func(r *signals.Request) bool {
		return r.AdvisorName == "Wealth Guru" && r.AdvisorID == "INA000009999"
	})).Return(result(0.0), nil)
	d.repo.On("CreateRecord", mock.Anything, mock.Anything).Return(nil)

	out, err := d.service().Detect(context.Background(), Input{Kind: risk.KindAdvisor, AdvisorName: "Wealth Guru", AdvisorID: "ina-000009999"})

	require.NoError(t, err)
	assert.Equal(t, sha("Wealth Guru|ina-000009999"), out.ContentFingerprint)
}

// ========================================
// HISTORY AND SESSIONS
// ========================================

func TestGetHistory_Limits(t *testing.T) {
	d := newDeps()
	session := uuid.New()
	d.repo.On("ListRecords", mock.Anything, (*uuid.UUID)(nil), 10).Return([]*Record{}, nil).Once()
	d.repo.On("ListRecords", mock.Anything, &session, 100).Return([]*Record{{ID: recordID}}, nil).Once()
	d.repo.On("ListRecords", mock.Anything, (*uuid.UUID)(nil), 25).Return([]*Record{}, nil).Once()
	svc := d.service()

	_, err := svc.GetHistory(context.Background(), nil, 0)
	require.NoError(t, err)
	records, err := svc.GetHistory(context.Background(), &session, 500)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	_, err = svc.GetHistory(context.Background(), nil, 25)
	require.NoError(t, err)

	d.repo.AssertExpectations(t)
}

func TestCreateSession_DefaultsToInvestor(t *testing.T) {
	d := newDeps()
	d.repo.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *Session) bool {
		return s.UserType == UserTypeInvestor && s.IPAddress == "10.0.0.2"
	})).Return(nil)

	session, err := d.service().CreateSession(context.Background(), "", "10.0.0.2", "curl/8")

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, session.ID)
}

func TestCreateSession_NormalisesUserType(t *testing.T) {
	d := newDeps()
	d.repo.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *Session) bool {
		return s.UserType == UserTypeRegulator
	})).Return(nil)

	_, err := d.service().CreateSession(context.Background(), "regulator", "", "")
	require.NoError(t, err)
}

func TestGetSessionSummary(t *testing.T) {
	d := newDeps()
	id := uuid.New()
	first := fixedNow.Add(-90 * time.Minute)
	d.repo.On("GetSession", mock.Anything, id).Return(&Session{
		ID: id, UserType: UserTypeInvestor, TotalAnalyses: 3, HighRiskDetections: 1,
		FirstAnalysis: &first, LastAnalysis: &fixedNow,
	}, nil)

	summary, err := d.service().GetSessionSummary(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, 33.33, summary.RiskDetectionRate)
	assert.Equal(t, "1h30m0s", summary.Duration)
}

func TestGetSessionSummary_NotFound(t *testing.T) {
	d := newDeps()
	id := uuid.New()
	d.repo.On("GetSession", mock.Anything, id).Return(nil, ErrSessionNotFound)

	_, err := d.service().GetSessionSummary(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// ========================================
// DASHBOARD
// ========================================

func expectDashboardQueries(d *deps, highToday int64) {
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d.repo.On("GetOverview", mock.Anything, today, today.AddDate(0, 0, -7), today.AddDate(0, 0, -30)).
		Return(&Overview{TotalAnalyses: 40, AnalysesToday: 12, AnalysesThisWeek: 30, AnalysesThisMonth: 40}, nil)
	d.repo.On("CountByLevel", mock.Anything).Return(map[string]int64{"HIGH": 15, "MEDIUM": 5, "LOW": 20}, nil)
	d.repo.On("CountByKind", mock.Anything).Return(map[string]int64{"text": 30, "url": 10}, nil)
	d.repo.On("HighRiskByDay", mock.Anything, today.AddDate(0, 0, -6)).
		Return(map[string]int64{"2026-03-01": highToday, "2026-02-27": 2}, nil)
	d.repo.On("TopHighRiskIndicators", mock.Anything, 100, 10).
		Return([]IndicatorCount{{Pattern: "URL shortener detected", Count: 9, Severity: risk.LevelHigh}}, nil)
}

func TestGetDashboard_BuildsAndCaches(t *testing.T) {
	d := newDeps()
	expectDashboardQueries(d, 11)
	d.prints.On("GetStats", mock.Anything).Return(&fingerprint.Stats{Total: 7}, nil)
	d.registry.On("GetStats", mock.Anything).Return(nil, errors.New("db down"))
	d.cache.On("GetJSON", mock.Anything, dashboardCacheKey, mock.Anything).Return(false, nil, nil)
	d.cache.On("SetJSON", mock.Anything, dashboardCacheKey, mock.AnythingOfType("*analysis.Dashboard"), 30*time.Second).Return(nil)

	dash, err := d.service().GetDashboard(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 37.5, dash.Overview.HighRiskPercentage)
	require.Len(t, dash.Trends.HighRisk7Days, 7)
	assert.Equal(t, TrendPoint{Date: "2026-03-01", HighRiskCount: 11}, dash.Trends.HighRisk7Days[0])
	assert.Equal(t, TrendPoint{Date: "2026-02-28", HighRiskCount: 0}, dash.Trends.HighRisk7Days[1])
	assert.Equal(t, TrendPoint{Date: "2026-02-27", HighRiskCount: 2}, dash.Trends.HighRisk7Days[2])
	assert.Equal(t, "2026-02-23", dash.Trends.HighRisk7Days[6].Date)
	require.Len(t, dash.Alerts, 1)
	assert.Equal(t, "HIGH_ACTIVITY", dash.Alerts[0].Type)
	assert.Equal(t, int64(7), dash.Fingerprints.Total)
	assert.Nil(t, dash.Registry)
	assert.Len(t, dash.TopIndicators, 1)

	d.cache.AssertExpectations(t)
}

func TestGetDashboard_NoAlertAtTen(t *testing.T) {
	d := newDeps()
	expectDashboardQueries(d, 10)
	d.prints.On("GetStats", mock.Anything).Return(&fingerprint.Stats{}, nil)
	d.registry.On("GetStats", mock.Anything).Return(&registry.Stats{TotalAdvisors: 2}, nil)
	d.cache.On("GetJSON", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"), nil)
	d.cache.On("SetJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	dash, err := d.service().GetDashboard(context.Background())

	require.NoError(t, err)
	assert.Empty(t, dash.Alerts)
	assert.Equal(t, int64(2), dash.Registry.TotalAdvisors)
}

func TestGetDashboard_CacheHit(t *testing.T) {
	d := newDeps()
	cached := &Dashboard{Overview: Overview{TotalAnalyses: 99}}
	d.cache.On("GetJSON", mock.Anything, dashboardCacheKey, mock.Anything).Return(true, nil, cached)

	dash, err := d.service().GetDashboard(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(99), dash.Overview.TotalAnalyses)
	d.repo.AssertNotCalled(t, "GetOverview", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetDashboard_RepositoryError(t *testing.T) {
	d := newDeps()
	d.cache.On("GetJSON", mock.Anything, mock.Anything, mock.Anything).Return(false, nil, nil)
	d.repo.On("GetOverview", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	_, err := d.service().GetDashboard(context.Background())
	assert.Error(t, err)
	d.cache.AssertNotCalled(t, "SetJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
