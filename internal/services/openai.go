package services

import (
	"context"
	"net/http"
	"time"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const maxLogLen = 2000

// SplitterOption customizes an LLM-backed splitter.
type SplitterOption func(*splitterOptions)

type splitterOptions struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL points the splitter at a different API endpoint.
func WithBaseURL(url string) SplitterOption {
	return func(o *splitterOptions) { o.baseURL = url }
}

// WithTimeout bounds each provider request.
func WithTimeout(d time.Duration) SplitterOption {
	return func(o *splitterOptions) { o.timeout = d }
}

func applySplitterOptions(opts []SplitterOption) splitterOptions {
	var o splitterOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type OpenAISplitter struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

func NewOpenAISplitter(apiKey, model string, log *zap.Logger, opts ...SplitterOption) *OpenAISplitter {
	o := applySplitterOptions(opts)
	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if o.timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: o.timeout}
	}
	return &OpenAISplitter{
		client: openai.NewClientWithConfig(config),
		model:  model,
		log:    log.Named("openai"),
	}
}

// ProcessScript splits the script with one JSON-mode chat completion.
func (s *OpenAISplitter) ProcessScript(ctx context.Context, script string, maxKeywords int) ([]ScriptBlock, error) {
	systemPrompt, userPrompt := buildSplitPrompts(script, maxKeywords)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, apperr.ScriptProcessing("openai request failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.ScriptProcessing("no response from openai", nil)
	}

	rawContent := resp.Choices[0].Message.Content
	blocks, err := decodeBlocks(rawContent)
	if err != nil {
		s.log.Warn("failed to parse split response",
			zap.Error(err),
			zap.String("raw", logger.Truncate(rawContent, maxLogLen)),
		)
		return nil, apperr.ScriptProcessing("failed to parse openai response", err)
	}

	blocks, err = normalizeBlocks(blocks, maxKeywords)
	if err != nil {
		s.log.Warn("split response has no usable blocks", zap.String("raw", logger.Truncate(rawContent, maxLogLen)))
		return nil, err
	}

	s.log.Info("script split",
		zap.String("model", s.model),
		zap.Int("script_len", len(script)),
		zap.Int("blocks", len(blocks)),
	)
	return blocks, nil
}
