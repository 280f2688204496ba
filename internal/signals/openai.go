package signals

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/pkg/resilience"
	"github.com/richxcame/trustx/pkg/security"
	"github.com/sashabaranov/go-openai"
)

const (
	classifierInputLimit = 4000
	maxClassifierReasons = 3
	maxTokens            = 512
)

const classifierPrompt = `You screen messages for investment fraud aimed at retail investors in India.
Reply with a JSON object {"fraud_probability": number between 0 and 1, "reasons": [short strings]}.
Consider guaranteed returns, urgency, impersonation of SEBI-registered entities, unregistered advice and requests to move money off-platform.`

const ocrPrompt = `Transcribe all text visible in this image exactly as written. Reply with the text only. If there is no text, reply with an empty string.`

// OpenAIConfig configures the OpenAI-backed classifier and OCR.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
}

// NewOpenAIClient builds a client, honouring a custom base URL for
// compatible gateways.
func NewOpenAIClient(cfg OpenAIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func newOpenAIBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(
		resilience.DependencySettings(name, 30*time.Second, 3),
		resilience.GracefulDegradation(name),
	)
}

func complete(ctx context.Context, client *openai.Client, breaker *resilience.CircuitBreaker, req openai.ChatCompletionRequest) (string, error) {
	out, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", err
	}
	resp := out.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// Classifier asks a chat model for a fraud probability.
type Classifier struct {
	client  *openai.Client
	model   string
	breaker *resilience.CircuitBreaker
}

func NewClassifier(client *openai.Client, model string) *Classifier {
	return &Classifier{client: client, model: model, breaker: newOpenAIBreaker("openai-classifier")}
}

func (c *Classifier) Name() string { return SignalClassifier }

type classification struct {
	FraudProbability float64  `json:"fraud_probability"`
	Reasons          []string `json:"reasons"`
}

func (c *Classifier) Extract(ctx context.Context, req *Request) (risk.SignalResult, error) {
	text := strings.TrimSpace(req.Content)
	if text == "" {
		return risk.SignalResult{}, ErrNotApplicable
	}

	content, err := complete(ctx, c.client, c.breaker, openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
			{Role: openai.ChatMessageRoleUser, Content: security.TruncateString(text, classifierInputLimit)},
		},
	})
	if err != nil {
		return risk.SignalResult{}, fmt.Errorf("%w: classifier: %v", ErrExtractorUnavailable, err)
	}

	var out classification
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return risk.SignalResult{}, fmt.Errorf("%w: classifier returned malformed JSON: %v", ErrExtractorUnavailable, err)
	}

	var indicators []string
	for i, reason := range out.Reasons {
		if i == maxClassifierReasons {
			break
		}
		if reason = strings.TrimSpace(reason); reason != "" {
			indicators = append(indicators, "AI classifier: "+reason)
		}
	}
	return result(c.Name(), out.FraudProbability, indicators), nil
}

// VisionOCR transcribes images with a vision-capable chat model.
type VisionOCR struct {
	client  *openai.Client
	model   string
	breaker *resilience.CircuitBreaker
}

func NewVisionOCR(client *openai.Client, model string) *VisionOCR {
	return &VisionOCR{client: client, model: model, breaker: newOpenAIBreaker("openai-ocr")}
}

func (o *VisionOCR) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("ocr: empty image")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	return complete(ctx, o.client, o.breaker, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: 1024,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: ocrPrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		}},
	})
}
