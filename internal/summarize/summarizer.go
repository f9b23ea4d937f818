// Package summarize turns page markdown into short summaries with an LLM.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-summarizer/internal/metrics"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = openai.GPT4oMini
	// DefaultMaxInputChars bounds how much page text is sent per request.
	DefaultMaxInputChars = 4000
	// DefaultTemperature keeps summaries focused.
	DefaultTemperature = 0.3

	systemPrompt = "You are a professional summarizer for web crawled content."
	userPrompt   = "Summarize the following website page content in 3–5 concise sentences, " +
		"highlighting key features and purpose only:\n\n\"\"\"\n%s\n\"\"\""
)

// ErrEmptyResponse is returned when the model replies without choices.
var ErrEmptyResponse = errors.New("summarizer returned no choices")

// Config controls the OpenAI summarizer.
type Config struct {
	APIKey        string
	Model         string
	BaseURL       string
	MaxInputChars int
	Temperature   float32
}

// chatClient is the subset of the OpenAI client used here.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI implements crawler.Summarizer with the chat completions API.
type OpenAI struct {
	client   chatClient
	model    string
	maxChars int
	temp     float32
	logger   *zap.Logger
}

// NewOpenAI builds a summarizer from cfg. BaseURL points the client at a
// compatible endpoint, for example a local proxy.
func NewOpenAI(cfg Config, logger *zap.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("summarizer api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.Temperature < 0 {
		return nil, fmt.Errorf("summarizer temperature must be >= 0, got %v", cfg.Temperature)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		maxChars: cfg.MaxInputChars,
		temp:     cfg.Temperature,
		logger:   logger.Named("summarizer"),
	}, nil
}

// Summarize returns a 3 to 5 sentence summary of the leading part of text.
func (s *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	temp := s.temp
	if temp == 0 {
		// The request field is omitempty; the smallest non-zero value is how
		// the client sends an explicit zero.
		temp = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPrompt, truncate(text, s.maxChars))},
		},
	}
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.ObserveSummary("error")
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveSummary("empty")
		return "", ErrEmptyResponse
	}
	metrics.ObserveSummary("success")
	s.logger.Debug("Summary generated",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// truncate keeps the first n runes of text.
func truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}

// Unavailable is the summary used when summarization is switched off.
const Unavailable = "Summary unavailable: summarization is disabled."

// Disabled is a Summarizer that never calls out.
type Disabled struct{}

// Summarize returns Unavailable.
func (Disabled) Summarize(context.Context, string) (string, error) {
	metrics.ObserveSummary("disabled")
	return Unavailable, nil
}
