package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/trustx/internal/detection"
	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/registry"
	"github.com/richxcame/trustx/internal/signals"
)

var ErrSessionNotFound = errors.New("session not found")

// RepositoryInterface defines persistence for records, sessions and statistics
type RepositoryInterface interface {
	CreateRecord(ctx context.Context, record *Record) error
	AttachLedgerFingerprint(ctx context.Context, id uuid.UUID, hash string) error
	ListRecords(ctx context.Context, sessionID *uuid.UUID, limit int) ([]*Record, error)

	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	IncrementSession(ctx context.Context, id uuid.UUID, highRisk bool, at time.Time) error

	GetOverview(ctx context.Context, today, weekAgo, monthAgo time.Time) (*Overview, error)
	CountByLevel(ctx context.Context) (map[string]int64, error)
	CountByKind(ctx context.Context) (map[string]int64, error)
	HighRiskByDay(ctx context.Context, since time.Time) (map[string]int64, error)
	TopHighRiskIndicators(ctx context.Context, sample, limit int) ([]IndicatorCount, error)
}

// Detector runs the detection pipeline
type Detector interface {
	Run(ctx context.Context, req *signals.Request) (*detection.Result, error)
}

// Fingerprinter records content fingerprints of risky analyses
type Fingerprinter interface {
	Record(ctx context.Context, report fingerprint.Report) (*fingerprint.LogResult, error)
	Threshold() float64
	GetStats(ctx context.Context) (*fingerprint.Stats, error)
}

// RegistryStats reports advisor cache counters
type RegistryStats interface {
	GetStats(ctx context.Context) (*registry.Stats, error)
}

// CacheInterface caches the dashboard
type CacheInterface interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
