package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig stores the configuration required for HashiCorp Vault.
type VaultConfig struct {
	Address   string
	Token     string
	MountPath string
}

type vaultProvider struct {
	client *vault.Client
	mount  string
}

func newVaultProvider(cfg VaultConfig) (provider, error) {
	if cfg.Address == "" || cfg.Token == "" {
		return nil, fmt.Errorf("%w: vault requires VAULT_ADDR and VAULT_TOKEN", ErrProviderNotConfigured)
	}
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}

	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.Address

	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &vaultProvider{client: client, mount: strings.Trim(cfg.MountPath, "/")}, nil
}

func (v *vaultProvider) Name() ProviderType {
	return ProviderVault
}

func (v *vaultProvider) Fetch(ctx context.Context, ref Reference) (Secret, error) {
	path := strings.TrimPrefix(strings.Trim(ref.Path, "/"), "data/")
	kv := v.client.KVv2(v.mount)

	var (
		secret *vault.KVSecret
		err    error
	)
	if ref.Version != "" {
		version, convErr := strconv.Atoi(ref.Version)
		if convErr != nil {
			return Secret{}, fmt.Errorf("secrets: invalid vault version %q: %w", ref.Version, convErr)
		}
		secret, err = kv.GetVersion(ctx, path, version)
	} else {
		secret, err = kv.Get(ctx, path)
	}
	if err != nil {
		var respErr *vault.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return Secret{}, fmt.Errorf("secrets: vault path %s not found", ref.Path)
		}
		return Secret{}, err
	}

	payload := make(map[string]string, len(secret.Data))
	for k, raw := range secret.Data {
		payload[k] = fmt.Sprint(raw)
	}

	var metadata Metadata
	if secret.VersionMetadata != nil {
		metadata.Version = strconv.Itoa(secret.VersionMetadata.Version)
		metadata.CreatedAt = secret.VersionMetadata.CreatedTime
	}

	return Secret{Data: payload, Metadata: metadata}, nil
}
