package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/trustx/pkg/database"
)

// Repository handles database operations for fingerprint entries
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new fingerprint repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create stores a new entry and fills in its id and creation time
func (r *Repository) Create(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO fingerprint_entries (
			transaction_hash, content_hash, risk_score, score_int, input_kind,
			indicators, recorded_at, analysis_id, status, gas_used
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	return database.WithRetry(ctx, func(ctx context.Context) error {
		ctx, cancel := database.WithQueryTimeout(ctx)
		defer cancel()
		err := r.db.QueryRow(ctx, query,
			e.TransactionHash, e.ContentHash, e.RiskScore, e.ScoreInt, e.InputKind,
			e.Indicators, e.RecordedAt, e.AnalysisID, e.Status, e.GasUsed,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create fingerprint entry: %w", err)
		}
		return nil
	})
}

// GetByHash retrieves an entry by its transaction hash
func (r *Repository) GetByHash(ctx context.Context, hash string) (*Entry, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, transaction_hash, content_hash, risk_score, score_int, input_kind,
		       indicators, recorded_at, analysis_id, status, gas_used, created_at
		FROM fingerprint_entries
		WHERE transaction_hash = $1
	`

	e := &Entry{}
	err := r.db.QueryRow(ctx, query, hash).Scan(
		&e.ID, &e.TransactionHash, &e.ContentHash, &e.RiskScore, &e.ScoreInt, &e.InputKind,
		&e.Indicators, &e.RecordedAt, &e.AnalysisID, &e.Status, &e.GasUsed, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint entry: %w", err)
	}
	return e, nil
}

// GetStats counts entries by status and input kind
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT 'status' AS dimension, status AS value, COUNT(*) FROM fingerprint_entries GROUP BY status
		UNION ALL
		SELECT 'kind', input_kind, COUNT(*) FROM fingerprint_entries GROUP BY input_kind
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{ByStatus: map[string]int64{}, ByKind: map[string]int64{}}
	for rows.Next() {
		var dimension, value string
		var count int64
		if err := rows.Scan(&dimension, &value, &count); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint stats: %w", err)
		}
		if dimension == "status" {
			stats.ByStatus[value] = count
			stats.Total += count
		} else {
			stats.ByKind[value] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fingerprint stats: %w", err)
	}
	return stats, nil
}

// ListRecorded returns up to limit entries recorded in [from, to), oldest first
func (r *Repository) ListRecorded(ctx context.Context, from, to time.Time, limit int) ([]*Entry, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, transaction_hash, content_hash, risk_score, score_int, input_kind,
		       indicators, recorded_at, analysis_id, status, gas_used, created_at
		FROM fingerprint_entries
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY recorded_at, id
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fingerprint entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(
			&e.ID, &e.TransactionHash, &e.ContentHash, &e.RiskScore, &e.ScoreInt, &e.InputKind,
			&e.Indicators, &e.RecordedAt, &e.AnalysisID, &e.Status, &e.GasUsed, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fingerprint entries: %w", err)
	}
	return entries, nil
}

// LatestRecordedAt returns the newest recorded_at, or nil for an empty log
func (r *Repository) LatestRecordedAt(ctx context.Context) (*time.Time, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	var latest *time.Time
	if err := r.db.QueryRow(ctx, `SELECT MAX(recorded_at) FROM fingerprint_entries`).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to get latest fingerprint: %w", err)
	}
	return latest, nil
}
