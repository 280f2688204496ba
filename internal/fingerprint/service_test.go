package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of RepositoryInterface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, entry *Entry) error {
	args := m.Called(ctx, entry)
	if args.Error(0) == nil {
		entry.ID = uuid.New()
		entry.CreatedAt = entry.RecordedAt
	}
	return args.Error(0)
}

func (m *MockRepository) GetByHash(ctx context.Context, hash string) (*Entry, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockRepository) GetStats(ctx context.Context) (*Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stats), args.Error(1)
}

func (m *MockRepository) ListRecorded(ctx context.Context, from, to time.Time, limit int) ([]*Entry, error) {
	args := m.Called(ctx, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Entry), args.Error(1)
}

func (m *MockRepository) LatestRecordedAt(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

// MockPublisher is a mock implementation of eventbus.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	args := m.Called(ctx, eventType, data)
	return args.Error(0)
}

func (m *MockPublisher) Close() {}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func newTestService(repo RepositoryInterface, pub *MockPublisher) *Service {
	var svc *Service
	if pub == nil {
		svc = NewService(repo, nil, 0)
	} else {
		svc = NewService(repo, pub, 0)
	}
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// ========================================
// RECORD
// ========================================

func TestRecord_AtThreshold(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *Entry) bool {
		return e.Status == StatusRecorded && e.ScoreInt == 70 && e.GasUsed == 0 &&
			e.RecordedAt.Equal(fixedNow.Truncate(time.Microsecond))
	})).Return(nil)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, EventRecorded, mock.AnythingOfType("fingerprint.RecordedEvent")).Return(nil)

	svc := newTestService(repo, pub)
	analysisID := uuid.New()
	res, err := svc.Record(context.Background(), Report{
		Body:       map[string]interface{}{"risk_score": 0.7},
		RiskScore:  0.70,
		InputKind:  "text",
		Indicators: []string{"URL shortener detected"},
		AnalysisID: &analysisID,
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Recorded)
	assert.False(t, res.Notarized)
	assert.Zero(t, res.GasUsed)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, res.Hash)
	require.NotNil(t, res.EntryID)

	expected, err := TransactionHash(res.ContentHash, 70, "text", []string{"URL shortener detected"}, fixedNow.Truncate(time.Microsecond))
	require.NoError(t, err)
	assert.Equal(t, expected, res.Hash)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRecord_BelowThreshold(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	res, err := svc.Record(context.Background(), Report{Body: map[string]interface{}{"x": 1}, RiskScore: 0.699999, InputKind: "text"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Recorded)
	assert.Empty(t, res.Hash)
	assert.Len(t, res.ContentHash, 64)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRecord_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	pub := new(MockPublisher)

	svc := newTestService(repo, pub)
	_, err := svc.Record(context.Background(), Report{Body: "x", RiskScore: 0.9, InputKind: "url"})

	assert.Error(t, err)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecord_PublishFailureIsNotFatal(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, EventRecorded, mock.Anything).Return(errors.New("nats: connection closed"))

	svc := newTestService(repo, pub)
	res, err := svc.Record(context.Background(), Report{Body: "x", RiskScore: 0.95, InputKind: "qr"})

	require.NoError(t, err)
	assert.True(t, res.Recorded)
}

func TestRecord_UnencodableBody(t *testing.T) {
	svc := newTestService(new(MockRepository), nil)

	_, err := svc.Record(context.Background(), Report{Body: make(chan int), RiskScore: 0.9})
	assert.ErrorIs(t, err, ErrInvalidReport)
}

// ========================================
// LOG
// ========================================

func TestLog_ExtractsFields(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *Entry) bool {
		return e.InputKind == "url" && e.ScoreInt == 85 &&
			assert.ObjectsAreEqual([]string{"URL shortener detected"}, e.Indicators)
	})).Return(nil)

	svc := newTestService(repo, nil)
	res, err := svc.Log(context.Background(), map[string]interface{}{
		"risk_score": json.Number("0.85"),
		"input_type": "url",
		"indicators": []interface{}{"URL shortener detected", 42},
	})

	require.NoError(t, err)
	assert.True(t, res.Recorded)
	repo.AssertExpectations(t)
}

func TestLog_DefaultsKindToUnknown(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *Entry) bool {
		return e.InputKind == "unknown" && len(e.Indicators) == 0
	})).Return(nil)

	svc := newTestService(repo, nil)
	_, err := svc.Log(context.Background(), map[string]interface{}{"risk_score": 0.9})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestLog_InvalidScore(t *testing.T) {
	svc := newTestService(new(MockRepository), nil)

	tests := []struct {
		name   string
		report map[string]interface{}
	}{
		{"missing", map[string]interface{}{"input_kind": "text"}},
		{"string", map[string]interface{}{"risk_score": "high"}},
		{"negative", map[string]interface{}{"risk_score": -0.1}},
		{"above one", map[string]interface{}{"risk_score": 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Log(context.Background(), tt.report)
			assert.ErrorIs(t, err, ErrInvalidReport)
		})
	}
}

func TestParseReport_PrefersInputKind(t *testing.T) {
	report, err := ParseReport(map[string]interface{}{
		"risk_score": 0.4,
		"input_kind": " qr ",
		"input_type": "text",
	})

	require.NoError(t, err)
	assert.Equal(t, "qr", report.InputKind)
	assert.Equal(t, 0.4, report.RiskScore)
	assert.Nil(t, report.Indicators)
}

// ========================================
// VERIFY
// ========================================

func storedEntry(t *testing.T) *Entry {
	e := &Entry{
		ID:          uuid.New(),
		ContentHash: "c0ffee",
		RiskScore:   0.82,
		ScoreInt:    82,
		InputKind:   "text",
		Indicators:  []string{"Contains common fraud keywords"},
		RecordedAt:  fixedNow.Truncate(time.Microsecond),
		Status:      StatusRecorded,
	}
	hash, err := Recompute(e)
	require.NoError(t, err)
	e.TransactionHash = hash
	return e
}

func TestVerify_Valid(t *testing.T) {
	e := storedEntry(t)
	// Reloaded rows come back in the server's zone.
	reloaded := *e
	reloaded.RecordedAt = e.RecordedAt.In(time.FixedZone("IST", 5*3600+1800))

	repo := new(MockRepository)
	repo.On("GetByHash", mock.Anything, e.TransactionHash).Return(&reloaded, nil)

	res, err := newTestService(repo, nil).Verify(context.Background(), e.TransactionHash)

	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.True(t, res.Valid)
	assert.Equal(t, e.TransactionHash, res.Recomputed)
	assert.False(t, res.Notarized)
}

func TestVerify_Tampered(t *testing.T) {
	e := storedEntry(t)
	e.ScoreInt = 40

	repo := new(MockRepository)
	repo.On("GetByHash", mock.Anything, e.TransactionHash).Return(e, nil)

	res, err := newTestService(repo, nil).Verify(context.Background(), e.TransactionHash)

	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.False(t, res.Valid)
}

func TestVerify_Unknown(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByHash", mock.Anything, "0xabc").Return(nil, ErrNotFound)

	res, err := newTestService(repo, nil).Verify(context.Background(), "0xabc")

	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.False(t, res.Valid)
}

func TestVerify_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetByHash", mock.Anything, "0xabc").Return(nil, errors.New("timeout"))

	_, err := newTestService(repo, nil).Verify(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestGetStats(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetStats", mock.Anything).Return(&Stats{Total: 3, ByStatus: map[string]int64{StatusRecorded: 3}}, nil)

	stats, err := newTestService(repo, nil).GetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
}

// ========================================
// ADVISOR VERIFICATIONS
// ========================================

var verifiedAdvisor = AdvisorVerification{
	AdvisorID:          "INA000012345",
	AdvisorName:        "Rajesh Kumar Sharma",
	RegistrationNumber: "INA000012345",
	Status:             "ACTIVE",
}

func TestFingerprintAdvisor(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, EventAdvisorVerified, mock.MatchedBy(func(e AdvisorVerifiedEvent) bool {
		return e.AdvisorID == "INA000012345" && e.Status == "ACTIVE"
	})).Return(nil)
	svc := newTestService(new(MockRepository), pub)

	fp, err := svc.FingerprintAdvisor(context.Background(), verifiedAdvisor)

	require.NoError(t, err)
	at := fixedNow.Truncate(time.Microsecond)
	wantAdvisorHash, err := AdvisorHash(verifiedAdvisor, at)
	require.NoError(t, err)
	assert.Equal(t, wantAdvisorHash, fp.AdvisorHash)
	assert.Equal(t, AdvisorTransactionHash(wantAdvisorHash, "INA000012345", at), fp.Hash)
	assert.Equal(t, "2026-03-01", fp.VerifiedDate)
	assert.False(t, fp.Notarized)
	pub.AssertExpectations(t)
}

func TestFingerprintAdvisor_PublishFailureIsNotFatal(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, EventAdvisorVerified, mock.Anything).Return(errors.New("nats down"))
	svc := newTestService(new(MockRepository), pub)

	fp, err := svc.FingerprintAdvisor(context.Background(), verifiedAdvisor)

	require.NoError(t, err)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, fp.Hash)
}

// ========================================
// AUDIT TRAIL
// ========================================

func TestAuditTrail(t *testing.T) {
	from := fixedNow.Add(-24 * time.Hour)
	entries := []*Entry{storedEntry(t), storedEntry(t)}
	entries[1].ContentHash = "ff"

	repo := new(MockRepository)
	repo.On("ListRecorded", mock.Anything, from, fixedNow, maxTrailEntries+1).Return(entries, nil)
	svc := newTestService(repo, nil)

	trail, err := svc.AuditTrail(context.Background(), from, fixedNow)

	require.NoError(t, err)
	want, err := AuditTrailHash(entries)
	require.NoError(t, err)
	assert.Equal(t, want, trail.AuditTrailHash)
	assert.Equal(t, AuditTransactionHash(want, fixedNow.Truncate(time.Microsecond)), trail.Hash)
	assert.Equal(t, 2, trail.TotalReports)
	assert.Equal(t, from, trail.From)
}

func TestAuditTrail_EmptyWindow(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListRecorded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*Entry(nil), nil)
	svc := newTestService(repo, nil)

	trail, err := svc.AuditTrail(context.Background(), fixedNow.Add(-time.Hour), fixedNow)

	require.NoError(t, err)
	assert.Zero(t, trail.TotalReports)
	// sha256 of the empty string
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", trail.AuditTrailHash)
}

func TestAuditTrail_InvalidWindow(t *testing.T) {
	svc := newTestService(new(MockRepository), nil)

	_, err := svc.AuditTrail(context.Background(), fixedNow, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = svc.AuditTrail(context.Background(), fixedNow.Add(-400*24*time.Hour), fixedNow)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestAuditTrail_TooManyEntries(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListRecorded", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(make([]*Entry, maxTrailEntries+1), nil)
	svc := newTestService(repo, nil)

	_, err := svc.AuditTrail(context.Background(), fixedNow.Add(-time.Hour), fixedNow)
	assert.ErrorIs(t, err, ErrTrailTooLarge)
}

// ========================================
// STATUS
// ========================================

func TestStatus(t *testing.T) {
	latest := fixedNow.Add(-time.Minute)
	repo := new(MockRepository)
	repo.On("GetStats", mock.Anything).Return(&Stats{Total: 7}, nil)
	repo.On("LatestRecordedAt", mock.Anything).Return(&latest, nil)
	svc := newTestService(repo, nil)

	status := svc.Status(context.Background())

	assert.True(t, status.Connected)
	assert.False(t, status.Notarized)
	assert.Equal(t, LedgerNetwork, status.Network)
	assert.Equal(t, int64(7), status.TotalEntries)
	assert.Equal(t, DefaultThreshold, status.Threshold)
	require.NotNil(t, status.LatestRecordedAt)
	assert.Equal(t, latest, *status.LatestRecordedAt)
}

func TestStatus_StoreDown(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetStats", mock.Anything).Return(nil, errors.New("connection refused"))
	svc := newTestService(repo, nil)

	status := svc.Status(context.Background())

	assert.False(t, status.Connected)
	assert.Zero(t, status.TotalEntries)
	repo.AssertNotCalled(t, "LatestRecordedAt", mock.Anything)
}
