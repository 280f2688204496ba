package registry

import (
	"context"
	"errors"

	"github.com/richxcame/trustx/internal/fingerprint"
)

// ErrNotFound is returned by stores when no advisor matches.
var ErrNotFound = errors.New("advisor not found")

// RepositoryInterface is the persistent advisor cache.
type RepositoryInterface interface {
	FindByAdvisorID(ctx context.Context, advisorID string) (*Advisor, error)
	FindByName(ctx context.Context, name string) (*Advisor, error)
	Upsert(ctx context.Context, advisor *Advisor) error
	GetStats(ctx context.Context) (*Stats, error)
}

// CacheInterface is the short-lived lookup cache in front of the repository.
type CacheInterface interface {
	Get(ctx context.Context, key string) (*Advisor, error)
	Set(ctx context.Context, key string, advisor *Advisor) error
	IncrVerifications(ctx context.Context) error
	Verifications(ctx context.Context) (int64, error)
}

// WebSourceInterface queries the regulator's public register.
type WebSourceInterface interface {
	Search(ctx context.Context, name, advisorID string) (*Advisor, error)
}

// VerificationFingerprinter fingerprints successful advisor verifications.
type VerificationFingerprinter interface {
	FingerprintAdvisor(ctx context.Context, v fingerprint.AdvisorVerification) (*fingerprint.AdvisorFingerprint, error)
}
