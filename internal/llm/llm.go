// Package llm handles model provider communication: provider construction,
// invocation profiles and client-side rate limiting.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Provider is the interface for LLM backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// NewProvider is the factory for creating LLM providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call site.
// Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

// Profile is one model invocation profile. regalign uses a cheap profile for
// document classification and a capable one for framework analysis.
type Profile struct {
	Name        string  `toml:"-"`
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	// RequestsPerMinute throttles calls made through one Client; 0 disables it.
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// Client invokes a provider with the settings of one Profile.
type Client struct {
	profile  Profile
	provider Provider
	limiter  *rate.Limiter
	log      *zap.Logger
}

// New builds a Client for p. A nil logger is replaced with a no-op logger.
func New(p Profile, log *zap.Logger) (*Client, error) {
	provider, err := NewProvider(p.Provider, p.Model)
	if err != nil {
		return nil, fmt.Errorf("llm: create %s provider: %w", p.Name, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		profile:  p,
		provider: provider,
		log:      log.Named("llm").With(zap.String("profile", p.Name), zap.String("model", p.Model)),
	}
	if p.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.RequestsPerMinute)), 1)
	}
	return c, nil
}

// Profile returns the client's invocation profile.
func (c *Client) Profile() Profile { return c.profile }

// Invoke sends one prompt pair and returns the response text.
func (c *Client) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate limit wait: %w", err)
		}
	}
	start := time.Now()
	c.log.Debug("invoke", zap.Int("prompt_chars", len(userPrompt)))
	out, err := c.provider.Complete(ctx, systemPrompt, userPrompt, c.profile.MaxTokens, c.profile.Temperature)
	if err != nil {
		c.log.Warn("invoke failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", fmt.Errorf("llm: %s complete: %w", c.profile.Name, err)
	}
	c.log.Debug("invoke done", zap.Duration("elapsed", time.Since(start)), zap.Int("response_chars", len(out)))
	return out, nil
}

// ── Provider dispatch ─────────────────────────────────────────────────────────

// defaultNewProvider dispatches to the appropriate provider implementation.
func defaultNewProvider(providerName, model string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case "perplexity", "":
		return newPerplexityProvider(model)
	case "anthropic":
		return newAnthropicProvider(model)
	case "openai":
		return newOpenAIProvider(model)
	case "google":
		return newGoogleProvider(model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", providerName)
	}
}

// ── Anthropic provider ───────────────────────────────────────────────────────

// anthropicProvider implements Provider using the Anthropic SDK.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model string) (Provider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY environment variable not set")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicProvider{client: client, model: model}, nil
}

func (p *anthropicProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("anthropic: response contained no text content blocks")
	}
	return strings.Join(parts, ""), nil
}
