package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileProvider reads mounted secrets (Docker or Kubernetes secret volumes).
// A JSON object file exposes its keys; any other file is a single "value".
type fileProvider struct{}

func (fileProvider) Name() ProviderType {
	return ProviderFile
}

func (fileProvider) Fetch(_ context.Context, ref Reference) (Secret, error) {
	target := filepath.Clean(ref.Path)
	content, err := os.ReadFile(target)
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: read %s: %w", target, err)
	}
	return Secret{Data: decodePayload(strings.TrimSpace(string(content)))}, nil
}
