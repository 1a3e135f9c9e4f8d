package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiSplitter struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGeminiSplitter builds a splitter on the Gemini API backend.
func NewGeminiSplitter(ctx context.Context, apiKey, model string, log *zap.Logger, opts ...SplitterOption) (*GeminiSplitter, error) {
	o := applySplitterOptions(opts)
	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.baseURL != "" {
		config.HTTPOptions.BaseURL = o.baseURL
	}
	if o.timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: o.timeout}
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiSplitter{
		client: client,
		model:  model,
		log:    log.Named("gemini"),
	}, nil
}

func (s *GeminiSplitter) ProcessScript(ctx context.Context, script string, maxKeywords int) ([]ScriptBlock, error) {
	systemPrompt, userPrompt := buildSplitPrompts(script, maxKeywords)

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, apperr.ScriptProcessing("gemini request failed", err)
	}

	rawContent := resp.Text()
	if rawContent == "" {
		return nil, apperr.ScriptProcessing("no response from gemini", nil)
	}

	blocks, err := decodeBlocks(rawContent)
	if err != nil {
		s.log.Warn("failed to parse split response",
			zap.Error(err),
			zap.String("raw", logger.Truncate(rawContent, maxLogLen)),
		)
		return nil, apperr.ScriptProcessing("failed to parse gemini response", err)
	}

	blocks, err = normalizeBlocks(blocks, maxKeywords)
	if err != nil {
		return nil, err
	}

	s.log.Info("script split",
		zap.String("model", s.model),
		zap.Int("script_len", len(script)),
		zap.Int("blocks", len(blocks)),
	)
	return blocks, nil
}
