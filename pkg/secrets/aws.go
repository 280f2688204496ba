package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWSConfig configures the AWS Secrets Manager provider.
type AWSConfig struct {
	Region   string
	Endpoint string
}

type awsProvider struct {
	client *secretsmanager.Client
}

func newAWSProvider(ctx context.Context, cfg AWSConfig) (provider, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: aws requires AWS_REGION", ErrProviderNotConfigured)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("secrets: failed to load aws config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &awsProvider{client: client}, nil
}

func (a *awsProvider) Name() ProviderType {
	return ProviderAWS
}

func (a *awsProvider) Fetch(ctx context.Context, ref Reference) (Secret, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref.Path),
	}
	if ref.Version != "" {
		input.VersionId = aws.String(ref.Version)
	}

	result, err := a.client.GetSecretValue(ctx, input)
	if err != nil {
		return Secret{}, fmt.Errorf("secrets: aws fetch failed for %s: %w", ref.Path, err)
	}

	var metadata Metadata
	if result.VersionId != nil {
		metadata.Version = *result.VersionId
	}
	if result.CreatedDate != nil {
		metadata.CreatedAt = *result.CreatedDate
	}

	return Secret{Data: decodePayload(aws.ToString(result.SecretString)), Metadata: metadata}, nil
}

// decodePayload accepts either a flat JSON object or a plain string. Plain
// strings are stored under "value".
func decodePayload(raw string) map[string]string {
	payload := make(map[string]string)
	if raw == "" {
		return payload
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &asMap); err == nil {
		for k, v := range asMap {
			payload[k] = fmt.Sprint(v)
		}
		return payload
	}

	payload["value"] = raw
	return payload
}
