package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/eventradar/eventradar/internal/models"
)

// OpenAIConfig holds configuration for the AI query provider.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// DefaultOpenAIConfig returns sensible defaults for event discovery.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:       openai.GPT4oMini,
		Temperature: 0.2, // low temperature keeps the output factual and parseable
		MaxTokens:   2000,
	}
}

// OpenAIConfigFromEnv creates config from environment variables.
func OpenAIConfigFromEnv() OpenAIConfig {
	cfg := DefaultOpenAIConfig()
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.Model = model
	}
	return cfg
}

// OpenAIAdapter queries a chat model for events in a city on a date and
// parses the structured JSON reply into candidate records.
type OpenAIAdapter struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIAdapter creates the AI query provider. A missing API key is a
// configuration error: the job cannot be attempted with this adapter.
func NewOpenAIAdapter(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{Provider: "openai", Reason: "OPENAI_API_KEY not set"}
	}

	return &OpenAIAdapter{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Name identifies the provider.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Fetch asks the model for events matching the request and parses the reply.
func (a *OpenAIAdapter) Fetch(ctx context.Context, req Request) (*Result, error) {
	prompt := buildEventQuery(req)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: eventSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), Err: err, Retryable: true}
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider:  a.Name(),
			Err:       fmt.Errorf("empty completion response"),
			Retryable: true,
		}
	}

	content := resp.Choices[0].Message.Content
	candidates, err := parseEventJSON(content)
	if err != nil {
		// Unparsable output counts as a provider failure worth one more try.
		return nil, &ProviderError{Provider: a.Name(), Err: err, Retryable: true}
	}

	valid, dropped := ValidCandidates(candidates, req, a.Name())
	if dropped > 0 {
		a.logger.Debug("dropped unusable candidates",
			"provider", a.Name(),
			"category", req.Category,
			"dropped", dropped,
		)
	}

	return &Result{
		QuerySummary: fmt.Sprintf("openai %s: %d candidates for %s/%s/%s",
			a.cfg.Model, len(valid), req.City, req.Date, req.Category),
		Candidates: valid,
	}, nil
}

const eventSystemPrompt = `You are an event listing assistant. Reply with a JSON object of the form
{"events": [{"title": "...", "category": "...", "date": "YYYY-MM-DD", "time": "HH:MM",
"end_time": "HH:MM", "venue": "...", "address": "...", "price": "...",
"description": "...", "booking_link": "...", "website_link": "..."}]}.
Only include events you are confident exist. Omit fields you do not know.`

func buildEventQuery(req Request) string {
	return fmt.Sprintf("List %s events happening in %s on %s.", req.Category, req.City, req.Date)
}

type eventEnvelope struct {
	Events []models.EventRecord `json:"events"`
}

// parseEventJSON decodes a model reply into candidate records. It tolerates
// markdown code fences and accepts either an {"events": []} envelope or a
// bare array.
func parseEventJSON(content string) ([]models.EventRecord, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, fmt.Errorf("empty completion content")
	}

	if strings.HasPrefix(cleaned, "[") {
		var events []models.EventRecord
		if err := json.Unmarshal([]byte(cleaned), &events); err != nil {
			return nil, fmt.Errorf("parse event array: %w", err)
		}
		return events, nil
	}

	var envelope eventEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("parse event envelope: %w", err)
	}
	return envelope.Events, nil
}

var _ Adapter = (*OpenAIAdapter)(nil)
