package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/richxcame/trustx/pkg/logger"
	"go.uber.org/zap"
)

// ProviderType enumerates supported secret backends.
type ProviderType string

const (
	ProviderNone  ProviderType = ""
	ProviderVault ProviderType = "vault"
	ProviderAWS   ProviderType = "aws"
	ProviderFile  ProviderType = "file"
)

var (
	// ErrProviderNotConfigured is returned when a reference names a backend that has no configuration.
	ErrProviderNotConfigured = errors.New("secrets: provider not configured")
	// ErrInvalidReference indicates an invalid or empty reference string.
	ErrInvalidReference = errors.New("secrets: invalid reference")
	// ErrKeyNotFound is returned when a requested key does not exist in the secret payload.
	ErrKeyNotFound = errors.New("secrets: key not found")
)

// Reference describes the logical location of a secret within a provider.
type Reference struct {
	// Path is the provider-specific path where the secret is stored.
	Path string
	// Key optionally targets a single entry within the secret.
	Key string
	// Version requests a specific version when supported by the backend.
	Version string
	// Provider selects the backend.
	Provider ProviderType
}

// CacheKey returns the cache identifier for the reference.
func (r Reference) CacheKey() string {
	sb := strings.Builder{}
	sb.WriteString(string(r.Provider))
	sb.WriteString("|")
	sb.WriteString(r.Path)
	if r.Version != "" {
		sb.WriteString("@")
		sb.WriteString(r.Version)
	}
	return sb.String()
}

// IsReference reports whether value uses the provider://path syntax.
func IsReference(value string) bool {
	idx := strings.Index(value, "://")
	if idx <= 0 {
		return false
	}
	switch ProviderType(value[:idx]) {
	case ProviderVault, ProviderAWS, ProviderFile:
		return true
	}
	return false
}

// ParseReference converts a raw reference string into a Reference.
// Supported syntax: provider://path[@version][#key]
func ParseReference(raw string) (Reference, error) {
	var ref Reference

	clean := strings.TrimSpace(raw)
	idx := strings.Index(clean, "://")
	if idx <= 0 {
		return ref, ErrInvalidReference
	}
	ref.Provider = ProviderType(clean[:idx])
	clean = clean[idx+3:]

	if idx := strings.Index(clean, "#"); idx >= 0 {
		ref.Key = strings.TrimSpace(clean[idx+1:])
		clean = strings.TrimSpace(clean[:idx])
	}

	// file paths may legitimately contain '@'
	if ref.Provider != ProviderFile {
		if idx := strings.LastIndex(clean, "@"); idx >= 0 {
			ref.Version = strings.TrimSpace(clean[idx+1:])
			clean = strings.TrimSpace(clean[:idx])
		}
		clean = strings.Trim(clean, "/")
	}

	ref.Path = clean
	if ref.Path == "" || ref.Path == "/" {
		return ref, ErrInvalidReference
	}
	return ref, nil
}

// Metadata carries provider-specific metadata about a secret.
type Metadata struct {
	Version     string
	CreatedAt   time.Time
	RetrievedAt time.Time
}

// Secret represents a resolved secret payload.
type Secret struct {
	Data     map[string]string
	Metadata Metadata
}

// Value returns a single entry from the secret payload.
func (s Secret) Value(key string) (string, bool) {
	if s.Data == nil {
		return "", false
	}
	val, ok := s.Data[key]
	return val, ok && val != ""
}

// Config represents the runtime configuration for a Manager.
type Config struct {
	CacheTTL time.Duration
	Vault    VaultConfig
	AWS      AWSConfig
}

type provider interface {
	Name() ProviderType
	Fetch(ctx context.Context, ref Reference) (Secret, error)
}

// Manager resolves secret references against vault, AWS Secrets Manager or
// the local filesystem, caching payloads for CacheTTL.
type Manager struct {
	cfg      Config
	cacheTTL time.Duration

	mu        sync.Mutex
	providers map[ProviderType]provider
	cache     map[string]cachedSecret
}

type cachedSecret struct {
	secret    Secret
	expiresAt time.Time
}

// NewManager creates a Manager. Remote providers are constructed on first use.
func NewManager(cfg Config) *Manager {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Manager{
		cfg:       cfg,
		cacheTTL:  cfg.CacheTTL,
		providers: map[ProviderType]provider{ProviderFile: fileProvider{}},
		cache:     make(map[string]cachedSecret),
	}
}

// Resolve returns value unchanged unless it is a secret reference, in which
// case the referenced secret is fetched. It satisfies config.SecretResolver.
func (m *Manager) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	ref, err := ParseReference(value)
	if err != nil {
		return "", err
	}
	return m.GetString(ctx, ref)
}

// GetString returns a single value from the referenced secret. Without a key,
// single-entry secrets return their only value.
func (m *Manager) GetString(ctx context.Context, ref Reference) (string, error) {
	secret, err := m.GetSecret(ctx, ref)
	if err != nil {
		return "", err
	}

	if ref.Key == "" {
		if len(secret.Data) == 1 {
			for _, v := range secret.Data {
				return v, nil
			}
		}
		return "", fmt.Errorf("%w: reference to %s needs a #key", ErrKeyNotFound, ref.Path)
	}

	if value, ok := secret.Value(ref.Key); ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrKeyNotFound, ref.Key)
}

// GetSecret resolves the full secret payload for the provided reference.
func (m *Manager) GetSecret(ctx context.Context, ref Reference) (Secret, error) {
	if ref.Path == "" {
		return Secret{}, ErrInvalidReference
	}

	if secret, ok := m.loadFromCache(ref); ok {
		return secret, nil
	}

	prov, err := m.providerFor(ctx, ref.Provider)
	if err != nil {
		return Secret{}, err
	}

	secret, err := prov.Fetch(ctx, ref)
	if err != nil {
		logger.Warn("secret fetch failed",
			zap.String("provider", string(ref.Provider)),
			zap.String("secret_path", ref.Path),
			zap.Error(err))
		return Secret{}, err
	}
	secret.Metadata.RetrievedAt = time.Now().UTC()

	m.saveToCache(ref, secret)
	logger.Debug("secret fetched",
		zap.String("provider", string(ref.Provider)),
		zap.String("secret_path", ref.Path),
		zap.String("version", secret.Metadata.Version))

	return secret, nil
}

func (m *Manager) providerFor(ctx context.Context, name ProviderType) (provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prov, ok := m.providers[name]; ok {
		return prov, nil
	}

	var (
		prov provider
		err  error
	)
	switch name {
	case ProviderVault:
		prov, err = newVaultProvider(m.cfg.Vault)
	case ProviderAWS:
		prov, err = newAWSProvider(ctx, m.cfg.AWS)
	default:
		return nil, fmt.Errorf("secrets: unsupported provider %q", name)
	}
	if err != nil {
		return nil, err
	}
	m.providers[name] = prov
	return prov, nil
}

func (m *Manager) loadFromCache(ref Reference) (Secret, bool) {
	m.mu.Lock()
	entry, ok := m.cache[ref.CacheKey()]
	m.mu.Unlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Secret{}, false
	}
	return cloneSecret(entry.secret), true
}

func (m *Manager) saveToCache(ref Reference, secret Secret) {
	m.mu.Lock()
	m.cache[ref.CacheKey()] = cachedSecret{
		secret:    cloneSecret(secret),
		expiresAt: time.Now().Add(m.cacheTTL),
	}
	m.mu.Unlock()
}

func cloneSecret(src Secret) Secret {
	dst := Secret{
		Data:     make(map[string]string, len(src.Data)),
		Metadata: src.Metadata,
	}
	for k, v := range src.Data {
		dst.Data[k] = v
	}
	return dst
}
