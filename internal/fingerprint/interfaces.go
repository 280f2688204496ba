package fingerprint

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("fingerprint not found")
	ErrInvalidReport = errors.New("invalid report")
	ErrInvalidWindow = errors.New("invalid audit window")
	ErrTrailTooLarge = errors.New("audit window holds too many entries")
)

// RepositoryInterface defines the persistence used by the fingerprint service
type RepositoryInterface interface {
	Create(ctx context.Context, entry *Entry) error
	GetByHash(ctx context.Context, hash string) (*Entry, error)
	GetStats(ctx context.Context) (*Stats, error)
	ListRecorded(ctx context.Context, from, to time.Time, limit int) ([]*Entry, error)
	LatestRecordedAt(ctx context.Context) (*time.Time, error)
}
