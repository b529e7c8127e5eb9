package provider

import (
	"context"
	"log/slog"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/roshantac/eva-memory/internal/apperr"
	"github.com/roshantac/eva-memory/internal/model"
)

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	EmbeddingDims  int
	ChatModel      string
	MaxRetries     int
	Temperature    float32
}

// DefaultOpenAIConfig returns the default configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		EmbeddingModel: "text-embedding-3-small",
		EmbeddingDims:  1536,
		ChatModel:      "gpt-4.1-mini",
		MaxRetries:     3,
		Temperature:    0.2,
	}
}

// OpenAIProvider serves both embeddings and JSON chat completions through
// any OpenAI-compatible API. It retries transient failures with exponential
// backoff.
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider from cfg. Zero-valued fields fall
// back to DefaultOpenAIConfig.
func NewOpenAIProvider(cfg OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	def := DefaultOpenAIConfig()
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = def.EmbeddingModel
	}
	if cfg.EmbeddingDims == 0 {
		cfg.EmbeddingDims = def.EmbeddingDims
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger,
	}
}

// Embed generates an embedding vector for text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string, _ Purpose) ([]float32, error) {
	var result []float32
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.config.EmbeddingModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errEmptyResponse
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, apperr.Provider(err, "openai embedding")
	}
	return result, nil
}

// Dims returns the configured embedding dimensionality.
func (p *OpenAIProvider) Dims() int { return p.config.EmbeddingDims }

// CompleteJSON runs a chat completion and parses the reply as a JSON object.
// Unparsable model output yields an empty map, per the provider contract.
func (p *OpenAIProvider) CompleteJSON(ctx context.Context, messages []model.Message) (map[string]any, error) {
	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		llmMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	var content string
	err := p.doWithRetry(ctx, func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.config.ChatModel,
			Messages:    llmMessages,
			Temperature: p.config.Temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errEmptyResponse
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, apperr.Provider(err, "openai chat completion")
	}
	return ParseJSONObject(content), nil
}

// doWithRetry executes fn with exponential backoff.
func (p *OpenAIProvider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				p.logger.Debug("openai request failed, retrying",
					"attempt", attempt+1,
					"wait", wait,
					"error", err)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

var errEmptyResponse = apperr.Provider(nil, "empty response from backend")
