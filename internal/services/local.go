package services

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// fallbackKeywords is used when a block has no usable words.
var fallbackKeywords = []string{"scene", "background", "visual"}

// LocalSplitter splits scripts without an LLM: paragraphs on blank lines,
// long paragraphs packed by sentence, keywords from long ASCII words.
type LocalSplitter struct {
	maxLength int
	log       *zap.Logger
}

func NewLocalSplitter(maxLength int, log *zap.Logger) *LocalSplitter {
	if maxLength <= 0 {
		maxLength = 500
	}
	return &LocalSplitter{maxLength: maxLength, log: log.Named("local_splitter")}
}

func (s *LocalSplitter) ProcessScript(ctx context.Context, script string, maxKeywords int) ([]ScriptBlock, error) {
	texts := s.Split(script)
	blocks := make([]ScriptBlock, 0, len(texts))
	for _, text := range texts {
		blocks = append(blocks, ScriptBlock{Text: text, Keywords: ExtractKeywords(text, maxKeywords)})
	}

	blocks, err := normalizeBlocks(blocks, maxKeywords)
	if err != nil {
		return nil, err
	}
	s.log.Info("script split", zap.Int("script_len", len(script)), zap.Int("blocks", len(blocks)))
	return blocks, nil
}

// Split returns the block texts of script. Lengths are counted in characters.
func (s *LocalSplitter) Split(script string) []string {
	var blocks []string
	for _, para := range paragraphBreak.Split(strings.TrimSpace(script), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= s.maxLength {
			blocks = append(blocks, para)
			continue
		}
		blocks = append(blocks, packSentences(splitSentences(para), s.maxLength)...)
	}
	return blocks
}

// packSentences joins sentences with a space into chunks of at most
// maxLength characters. A single longer sentence becomes its own chunk.
func packSentences(sentences []string, maxLength int) []string {
	var chunks []string
	current := ""
	for _, sent := range sentences {
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(sent)+1 <= maxLength {
			if current == "" {
				current = sent
			} else {
				current += " " + sent
			}
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
		}
		current = sent
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '？', '！':
		return true
	}
	return false
}

// splitSentences cuts text at whitespace that follows sentence-ending
// punctuation.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || !isSentenceEnd(runes[i-1]) {
			continue
		}
		if sent := strings.TrimSpace(string(runes[start:i])); sent != "" {
			sentences = append(sentences, sent)
		}
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		start = i
	}
	if sent := strings.TrimSpace(string(runes[start:])); sent != "" {
		sentences = append(sentences, sent)
	}
	return sentences
}

// ExtractKeywords picks up to max unique lower-cased ASCII words of at least
// four letters, in order of appearance.
func ExtractKeywords(text string, max int) []string {
	var keywords []string
	seen := map[string]bool{}
	for _, word := range strings.Fields(text) {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) {
				return r
			}
			return -1
		}, word)
		if len(clean) < 4 || !isASCII(clean) {
			continue
		}
		clean = strings.ToLower(clean)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		keywords = append(keywords, clean)
		if max > 0 && len(keywords) == max {
			break
		}
	}
	if len(keywords) == 0 {
		keywords = append([]string{}, fallbackKeywords...)
		if max > 0 && len(keywords) > max {
			keywords = keywords[:max]
		}
	}
	return keywords
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
