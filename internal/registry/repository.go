package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/trustx/pkg/database"
)

const advisorColumns = `
	id, advisor_id, advisor_name, registration_number, registration_date, status,
	company_name, contact_info, verified, last_verified, created_at
`

// Repository handles database operations for the advisor cache
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new registry repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanAdvisor(row pgx.Row) (*Advisor, error) {
	a := &Advisor{}
	err := row.Scan(
		&a.ID, &a.AdvisorID, &a.Name, &a.RegistrationNumber, &a.RegisteredOn, &a.Status,
		&a.CompanyName, &a.Contact, &a.Verified, &a.LastVerified, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan advisor: %w", err)
	}
	return a, nil
}

// FindByAdvisorID retrieves an advisor by exact registration id
func (r *Repository) FindByAdvisorID(ctx context.Context, advisorID string) (*Advisor, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + advisorColumns + `FROM advisors WHERE advisor_id = $1`
	return scanAdvisor(r.db.QueryRow(ctx, query, advisorID))
}

// FindByName retrieves the most recently verified advisor whose name
// contains name, ignoring case
func (r *Repository) FindByName(ctx context.Context, name string) (*Advisor, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `SELECT` + advisorColumns + `
		FROM advisors
		WHERE advisor_name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY last_verified DESC
		LIMIT 1
	`
	return scanAdvisor(r.db.QueryRow(ctx, query, escapeLike(name)))
}

// Upsert inserts or refreshes an advisor keyed by advisor_id
func (r *Repository) Upsert(ctx context.Context, a *Advisor) error {
	query := `
		INSERT INTO advisors (
			advisor_id, advisor_name, registration_number, registration_date, status,
			company_name, contact_info, verified, last_verified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (advisor_id) DO UPDATE SET
			advisor_name = EXCLUDED.advisor_name,
			registration_number = COALESCE(NULLIF(EXCLUDED.registration_number, ''), advisors.registration_number),
			registration_date = COALESCE(EXCLUDED.registration_date, advisors.registration_date),
			status = EXCLUDED.status,
			company_name = COALESCE(NULLIF(EXCLUDED.company_name, ''), advisors.company_name),
			contact_info = EXCLUDED.contact_info,
			verified = EXCLUDED.verified,
			last_verified = EXCLUDED.last_verified
		RETURNING id, created_at
	`

	return database.WithRetry(ctx, func(ctx context.Context) error {
		ctx, cancel := database.WithQueryTimeout(ctx)
		defer cancel()
		err := r.db.QueryRow(ctx, query,
			a.AdvisorID, a.Name, a.RegistrationNumber, a.RegisteredOn, a.Status,
			a.CompanyName, a.Contact, a.Verified, a.LastVerified,
		).Scan(&a.ID, &a.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert advisor: %w", err)
		}
		return nil
	})
}

// GetStats counts cached advisors by status
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	ctx, cancel := database.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COUNT(*) FILTER (WHERE status = 'SUSPENDED'),
			COUNT(*) FILTER (WHERE status = 'CANCELLED')
		FROM advisors
	`

	s := &Stats{}
	err := r.db.QueryRow(ctx, query).Scan(&s.TotalAdvisors, &s.ActiveAdvisors, &s.SuspendedAdvisors, &s.CancelledAdvisors)
	if err != nil {
		return nil, fmt.Errorf("failed to get advisor stats: %w", err)
	}
	return s, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
