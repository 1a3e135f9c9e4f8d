package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/models"
)

// ---------------------------------------------------------------------------
// ScriptSplitter is the common interface for script segmentation providers.
// OpenAI, Gemini and the local rule-based splitter implement it so the
// workflow can use whichever is configured.
// ---------------------------------------------------------------------------

// ScriptBlock is one semantic segment of a script with its search keywords.
type ScriptBlock struct {
	Text     string   `json:"text"`
	Keywords []string `json:"keywords"`
}

// ScriptSplitter splits a raw script into ordered blocks. Implementations
// return normalized output: no empty blocks, at most maxKeywords trimmed,
// unique keywords per block, and at least one block.
type ScriptSplitter interface {
	ProcessScript(ctx context.Context, script string, maxKeywords int) ([]ScriptBlock, error)
}

// splitResponse is the JSON object the LLM providers are asked for.
type splitResponse struct {
	Blocks []ScriptBlock `json:"blocks"`
}

// normalizeBlocks trims texts and keywords and drops empty blocks.
func normalizeBlocks(blocks []ScriptBlock, maxKeywords int) ([]ScriptBlock, error) {
	out := make([]ScriptBlock, 0, len(blocks))
	for _, b := range blocks {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		out = append(out, ScriptBlock{Text: text, Keywords: models.NormalizeKeywords(b.Keywords, maxKeywords)})
	}
	if len(out) == 0 {
		return nil, apperr.ScriptProcessing("script produced no blocks", nil)
	}
	return out, nil
}

// decodeBlocks parses an LLM reply. It accepts the requested
// {"blocks": [...]} object, a bare array, and either one wrapped in a
// markdown code fence.
func decodeBlocks(raw string) ([]ScriptBlock, error) {
	raw = stripCodeFence(raw)
	if strings.HasPrefix(raw, "[") {
		var blocks []ScriptBlock
		if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
			return nil, fmt.Errorf("failed to parse blocks: %w", err)
		}
		return blocks, nil
	}
	var resp splitResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse blocks: %w", err)
	}
	return resp.Blocks, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const splitSystemPrompt = `You segment video narration scripts into blocks for stock footage matching.

Rules:
1. Split where the meaning, context or scene changes. Keep the original wording and language of the script; do not rewrite, summarize or drop text.
2. Each block is one to four sentences, a natural unit of narration.
3. For each block, extract up to %d visual English keywords for stock photo and video search.
   - Prefer concrete, visual phrases (sunset beach, coffee shop, business meeting).
   - Avoid generic words (person, good, thing, idea).
4. Respond with JSON only, no commentary, in exactly this shape:
{"blocks": [{"text": "first block text", "keywords": ["keyword1", "keyword2"]}]}`

func buildSplitPrompts(script string, maxKeywords int) (system, user string) {
	return fmt.Sprintf(splitSystemPrompt, maxKeywords), "Script:\n" + script
}
