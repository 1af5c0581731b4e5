package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultModel     = "gemini-2.5-flash"
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultTimeout   = 60 * time.Second
	defaultRateLimit = 2 // requests per second
	defaultBurst     = 4
)

// ErrInvalidConfig indicates invalid client configuration.
var ErrInvalidConfig = errors.New("invalid genai configuration")

// Completer generates a free-text completion for a prompt. It is the
// capability every model-backed collaborator is built on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the model client.
type Config struct {
	// Model is the completion model, e.g. gemini-2.5-flash.
	Model string

	// BaseURL is an OpenAI-compatible completion endpoint.
	BaseURL string

	// APIKey authenticates against the endpoint.
	APIKey string

	// Timeout bounds a single completion call.
	Timeout time.Duration

	// RateLimit is the sustained request rate per second; Burst the
	// short-term allowance.
	RateLimit float64
	Burst     int

	// Temperature for completions. Zero keeps outputs deterministic
	// enough for classification and JSON generation.
	Temperature float64
}

// DefaultConfig returns sensible defaults pointing at the Gemini
// OpenAI-compatibility endpoint.
func DefaultConfig() Config {
	return Config{
		Model:     defaultModel,
		BaseURL:   defaultBaseURL,
		Timeout:   defaultTimeout,
		RateLimit: defaultRateLimit,
		Burst:     defaultBurst,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// Client is a rate-limited Completer over an OpenAI-compatible endpoint.
type Client struct {
	config  Config
	llm     llms.Model
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a model client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for keyless local endpoints.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	return &Client{
		config:  cfg,
		llm:     llm,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  logger,
	}, nil
}

// Complete generates a completion for the prompt. The call is rate limited
// and bounded by the configured timeout; a single request, no retry.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(c.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}

	c.logger.Debug("model completion",
		zap.String("model", c.config.Model),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("response_len", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}
