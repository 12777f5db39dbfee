package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	openAITimeout      = 8 * time.Second
	maxBodyChars       = 5000
)

const systemPrompt = "You are a subscription audit assistant. Given the text of one email, " +
	"return ONLY valid JSON with keys: merchant (string, the service being paid for, empty if unclear), " +
	"amount (number, the recurring charge, 0 if none), currency (USD, GBP or EUR, empty if unclear), " +
	"frequency (monthly, annual, weekly, trial or unknown). Do not guess amounts that are not in the text."

// OpenAIProvider asks an OpenAI chat model for a structured guess.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(strings.TrimSpace(apiKey))),
		model:  model,
	}
}

func (p *OpenAIProvider) Extract(ctx context.Context, raw string) (Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, openAITimeout)
	defer cancel()

	if len(raw) > maxBodyChars {
		raw = raw[:maxBodyChars]
	}
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("Email text:\n" + raw),
		},
		MaxTokens: openai.Int(200),
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Extraction{}, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	var out Extraction
	if err := decodeJSON(resp.Choices[0].Message.Content, &out); err != nil {
		return Extraction{}, fmt.Errorf("%w: parse response: %v", ErrUnavailable, err)
	}
	return out, nil
}

// decodeJSON tolerates models that wrap their JSON in markdown fences.
func decodeJSON(s string, v any) error {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return json.Unmarshal([]byte(strings.TrimSpace(s)), v)
}
