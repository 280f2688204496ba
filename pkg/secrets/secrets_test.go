package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	name   ProviderType
	secret Secret
	err    error
	calls  int
}

func (p *countingProvider) Name() ProviderType { return p.name }

func (p *countingProvider) Fetch(_ context.Context, _ Reference) (Secret, error) {
	p.calls++
	if p.err != nil {
		return Secret{}, p.err
	}
	return cloneSecret(p.secret), nil
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Reference
		wantErr bool
	}{
		{
			name: "vault with key",
			raw:  "vault://trustx/db#password",
			want: Reference{Provider: ProviderVault, Path: "trustx/db", Key: "password"},
		},
		{
			name: "vault with version and key",
			raw:  "vault://trustx/openai@3#api_key",
			want: Reference{Provider: ProviderVault, Path: "trustx/openai", Version: "3", Key: "api_key"},
		},
		{
			name: "aws secret name",
			raw:  "aws://prod/trustx/redis#password",
			want: Reference{Provider: ProviderAWS, Path: "prod/trustx/redis", Key: "password"},
		},
		{
			name: "file keeps absolute path",
			raw:  "file:///run/secrets/db_password",
			want: Reference{Provider: ProviderFile, Path: "/run/secrets/db_password"},
		},
		{name: "missing scheme", raw: "trustx/db#password", wantErr: true},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "empty path", raw: "vault://#key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsReference(t *testing.T) {
	assert.True(t, IsReference("vault://a#b"))
	assert.True(t, IsReference("aws://a"))
	assert.True(t, IsReference("file:///a"))
	assert.False(t, IsReference("plain-password"))
	assert.False(t, IsReference("https://example.com"))
	assert.False(t, IsReference("p@ss://word"))
}

func TestManager_ResolvePlainValuePassesThrough(t *testing.T) {
	m := NewManager(Config{})

	got, err := m.Resolve(context.Background(), "s3cr3t")

	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got)
}

func TestManager_ResolveFileReference(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "db_password")
	require.NoError(t, os.WriteFile(plain, []byte("hunter2\n"), 0o600))
	structured := filepath.Join(dir, "openai.json")
	require.NoError(t, os.WriteFile(structured, []byte(`{"api_key":"sk-test","org":"trustx"}`), 0o600))

	m := NewManager(Config{})
	ctx := context.Background()

	got, err := m.Resolve(ctx, "file://"+plain)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	got, err = m.Resolve(ctx, "file://"+structured+"#api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)

	_, err = m.Resolve(ctx, "file://"+structured)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = m.Resolve(ctx, "file://"+structured+"#missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestManager_CachesSecrets(t *testing.T) {
	m := NewManager(Config{})
	fake := &countingProvider{name: ProviderVault, secret: Secret{Data: map[string]string{"password": "pw"}}}
	m.providers[ProviderVault] = fake

	for i := 0; i < 3; i++ {
		got, err := m.Resolve(context.Background(), "vault://trustx/db#password")
		require.NoError(t, err)
		assert.Equal(t, "pw", got)
	}
	assert.Equal(t, 1, fake.calls)
}

func TestManager_FetchErrorNotCached(t *testing.T) {
	m := NewManager(Config{})
	fake := &countingProvider{name: ProviderAWS, err: errors.New("throttled")}
	m.providers[ProviderAWS] = fake

	_, err := m.Resolve(context.Background(), "aws://trustx/db#password")
	require.Error(t, err)
	_, err = m.Resolve(context.Background(), "aws://trustx/db#password")
	require.Error(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestManager_UnconfiguredVault(t *testing.T) {
	m := NewManager(Config{})

	_, err := m.Resolve(context.Background(), "vault://trustx/db#password")

	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestDecodePayload(t *testing.T) {
	assert.Equal(t, map[string]string{"value": "plain"}, decodePayload("plain"))
	assert.Equal(t, map[string]string{"port": "5432", "user": "trustx"}, decodePayload(`{"port":5432,"user":"trustx"}`))
	assert.Empty(t, decodePayload(""))
}

func TestCloneSecret_IsIndependent(t *testing.T) {
	src := Secret{Data: map[string]string{"k": "v"}}
	dst := cloneSecret(src)
	dst.Data["k"] = "changed"
	assert.Equal(t, "v", src.Data["k"])
}
