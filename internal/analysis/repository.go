package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/pkg/database"
)

// Repository handles database operations for analyses and sessions
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new analysis repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateRecord stores an analysis record
func (r *Repository) CreateRecord(ctx context.Context, rec *Record) error {
	assessment, err := json.Marshal(rec.Assessment)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	query := `
		INSERT INTO analysis_records (
			input_kind, content_fingerprint, risk_score, risk_level, assessment,
			ledger_fingerprint, session_id, evidence_key, user_agent, ip_address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	return database.WithRetry(ctx, func(ctx context.Context) error {
		ctx, cancel := database.WithQueryTimeout(ctx)
		defer cancel()
		err := r.db.QueryRow(ctx, query,
			rec.InputKind, rec.ContentFingerprint, rec.RiskScore, rec.RiskLevel, assessment,
			rec.LedgerFingerprint, rec.SessionID, rec.EvidenceKey, rec.UserAgent, rec.IPAddress,
		).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create analysis record: %w", err)
		}
		return nil
	})
}

// AttachLedgerFingerprint sets the ledger fingerprint once
func (r *Repository) AttachLedgerFingerprint(ctx context.Context, id uuid.UUID, hash string) error {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		UPDATE analysis_records
		SET ledger_fingerprint = $2
		WHERE id = $1 AND ledger_fingerprint IS NULL
	`
	if _, err := r.db.Exec(ctx, query, id, hash); err != nil {
		return fmt.Errorf("failed to attach ledger fingerprint: %w", err)
	}
	return nil
}

// ListRecords returns the most recent records, optionally for one session
func (r *Repository) ListRecords(ctx context.Context, sessionID *uuid.UUID, limit int) ([]*Record, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, input_kind, content_fingerprint, risk_score, risk_level, assessment,
		       ledger_fingerprint, session_id, evidence_key, created_at
		FROM analysis_records
		WHERE ($1::uuid IS NULL OR session_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis records: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec := &Record{}
		var assessment []byte
		if err := rows.Scan(
			&rec.ID, &rec.InputKind, &rec.ContentFingerprint, &rec.RiskScore, &rec.RiskLevel, &assessment,
			&rec.LedgerFingerprint, &rec.SessionID, &rec.EvidenceKey, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis record: %w", err)
		}
		if err := json.Unmarshal(assessment, &rec.Assessment); err != nil {
			return nil, fmt.Errorf("failed to decode assessment %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis records: %w", err)
	}
	return records, nil
}

// CreateSession stores a new session
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO analysis_sessions (user_type, ip_address, user_agent)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := r.db.QueryRow(ctx, query, s.UserType, s.IPAddress, s.UserAgent).Scan(&s.ID, &s.CreatedAt); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_type, total_analyses, high_risk_detections,
		       first_analysis, last_analysis, created_at
		FROM analysis_sessions
		WHERE id = $1
	`

	s := &Session{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserType, &s.TotalAnalyses, &s.HighRiskDetections,
		&s.FirstAnalysis, &s.LastAnalysis, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// IncrementSession counts one more analysis against a session
func (r *Repository) IncrementSession(ctx context.Context, id uuid.UUID, highRisk bool, at time.Time) error {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		UPDATE analysis_sessions
		SET total_analyses = total_analyses + 1,
		    high_risk_detections = high_risk_detections + CASE WHEN $2 THEN 1 ELSE 0 END,
		    first_analysis = COALESCE(first_analysis, $3),
		    last_analysis = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, highRisk, at)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetOverview counts records overall and per time window
func (r *Repository) GetOverview(ctx context.Context, today, weekAgo, monthAgo time.Time) (*Overview, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*) FILTER (WHERE created_at >= $3)
		FROM analysis_records
	`

	o := &Overview{}
	err := r.db.QueryRow(ctx, query, today, weekAgo, monthAgo).Scan(
		&o.TotalAnalyses, &o.AnalysesToday, &o.AnalysesThisWeek, &o.AnalysesThisMonth,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis overview: %w", err)
	}
	return o, nil
}

func (r *Repository) CountByLevel(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, "risk_level")
}

func (r *Repository) CountByKind(ctx context.Context) (map[string]int64, error) {
	return r.countBy(ctx, "input_kind")
}

// countBy groups records by a fixed column name
func (r *Repository) countBy(ctx context.Context, column string) (map[string]int64, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM analysis_records GROUP BY %[1]s`, column)
	return r.collectCounts(ctx, query)
}

// HighRiskByDay counts HIGH records per UTC day since the given time
func (r *Repository) HighRiskByDay(ctx context.Context, since time.Time) (map[string]int64, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM analysis_records
		WHERE risk_level = $1 AND created_at >= $2
		GROUP BY day
	`
	return r.collectCounts(ctx, query, risk.LevelHigh, since)
}

func (r *Repository) collectCounts(ctx context.Context, query string, args ...interface{}) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count analysis records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counts: %w", err)
	}
	return counts, nil
}

// TopHighRiskIndicators ranks indicators across the most recent sample
// HIGH records
func (r *Repository) TopHighRiskIndicators(ctx context.Context, sample, limit int) ([]IndicatorCount, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT indicator, COUNT(*) AS n
		FROM (
			SELECT assessment
			FROM analysis_records
			WHERE risk_level = $1 AND jsonb_typeof(assessment->'indicators') = 'array'
			ORDER BY created_at DESC
			LIMIT $2
		) recent,
		jsonb_array_elements_text(recent.assessment->'indicators') AS indicator
		GROUP BY indicator
		ORDER BY n DESC, indicator
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, risk.LevelHigh, sample, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank indicators: %w", err)
	}
	defer rows.Close()

	top := make([]IndicatorCount, 0, limit)
	for rows.Next() {
		ic := IndicatorCount{Severity: risk.LevelHigh}
		if err := rows.Scan(&ic.Pattern, &ic.Count); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		top = append(top, ic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate indicators: %w", err)
	}
	return top, nil
}
