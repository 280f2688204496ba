//go:build integration

package fingerprint

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"github.com/richxcame/trustx/migrations"
	"github.com/richxcame/trustx/pkg/database"
)

// RepositoryIntegrationSuite runs the repository against a real Postgres
// named by TRUSTX_TEST_DATABASE_URL.
type RepositoryIntegrationSuite struct {
	suite.Suite
	pool    *pgxpool.Pool
	repo    *Repository
	service *Service
}

func TestRepositoryIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RepositoryIntegrationSuite))
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	url := os.Getenv("TRUSTX_TEST_DATABASE_URL")
	if url == "" {
		s.T().Skip("TRUSTX_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", url)
	s.Require().NoError(err)
	defer db.Close()
	s.Require().NoError(database.Migrate(db, migrations.FS))

	s.pool, err = pgxpool.New(context.Background(), url)
	s.Require().NoError(err)
	s.repo = NewRepository(s.pool)
	s.service = NewService(s.repo, nil, DefaultThreshold)
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *RepositoryIntegrationSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE fingerprint_entries CASCADE")
	s.Require().NoError(err)
}

// ============================================
// RECORD AND VERIFY ROUND TRIP
// ============================================

func (s *RepositoryIntegrationSuite) TestRecordThenVerify() {
	ctx := context.Background()
	s.service.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC) }

	res, err := s.service.Log(ctx, map[string]interface{}{
		"risk_score": 0.91,
		"input_type": "text",
		"indicators": []interface{}{"Contains common fraud keywords"},
	})
	s.Require().NoError(err)
	s.Require().True(res.Recorded)

	verified, err := s.service.Verify(ctx, res.Hash)
	s.Require().NoError(err)
	s.True(verified.Exists)
	s.True(verified.Valid)
	s.Equal(res.Hash, verified.Recomputed)
	s.Equal([]string{"Contains common fraud keywords"}, verified.Entry.Indicators)
}

func (s *RepositoryIntegrationSuite) TestGetByHash_NotFound() {
	_, err := s.repo.GetByHash(context.Background(), "0x"+"00000000000000000000000000000000000000000000000000000000000000aa")
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestGetStats() {
	ctx := context.Background()
	for _, kind := range []string{"text", "text", "url"} {
		_, err := s.service.Record(ctx, Report{
			Body:      map[string]interface{}{"kind": kind, "n": time.Now().UnixNano()},
			RiskScore: 0.8,
			InputKind: kind,
		})
		s.Require().NoError(err)
	}

	stats, err := s.repo.GetStats(ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), stats.Total)
	s.Equal(int64(3), stats.ByStatus[StatusRecorded])
	s.Equal(int64(2), stats.ByKind["text"])
	s.Equal(int64(1), stats.ByKind["url"])
}

func (s *RepositoryIntegrationSuite) TestAuditTrailOverStoredEntries() {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	latest, err := s.repo.LatestRecordedAt(ctx)
	s.Require().NoError(err)
	s.Nil(latest)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		s.service.now = func() time.Time { return at }
		_, err := s.service.Record(ctx, Report{
			Body:      map[string]interface{}{"n": i},
			RiskScore: 0.9,
			InputKind: "text",
		})
		s.Require().NoError(err)
	}

	entries, err := s.repo.ListRecorded(ctx, base, base.Add(2*time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.True(entries[0].RecordedAt.Before(entries[1].RecordedAt))

	first, err := s.service.AuditTrail(ctx, base, base.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(2, first.TotalReports)
	again, err := s.service.AuditTrail(ctx, base, base.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(first.AuditTrailHash, again.AuditTrailHash)

	latest, err = s.repo.LatestRecordedAt(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.True(latest.Equal(base.Add(2 * time.Hour)))
}
