package llm

import (
	"context"
	"fmt"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// perplexityBaseURL is Perplexity's OpenAI-compatible endpoint.
const perplexityBaseURL = "https://api.perplexity.ai"

// openaiProvider implements Provider using the OpenAI SDK. It also serves
// OpenAI-compatible endpoints such as Perplexity.
type openaiProvider struct {
	client openai.Client
	model  string
	vendor string
}

func newOpenAIProvider(model string) (Provider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("llm: OPENAI_API_KEY environment variable not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiProvider{client: client, model: model, vendor: "openai"}, nil
}

func newPerplexityProvider(model string) (Provider, error) {
	apiKey := os.Getenv("PPLX_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("llm: PPLX_API_KEY environment variable not set")
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(perplexityBaseURL),
	)
	return &openaiProvider{client: client, model: model, vendor: "perplexity"}, nil
}

func (p *openaiProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: chat.completions.new: %w", p.vendor, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: response contained no choices", p.vendor)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("%s: response contained no content", p.vendor)
	}
	return content, nil
}
