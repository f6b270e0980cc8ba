package generate

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// PromptTruncator cuts prompts to the model's input token limit.
// A nil or tokenizer-less truncator returns prompts unchanged.
type PromptTruncator struct {
	tk        *tokenizer.Tokenizer
	maxTokens int
}

// LoadPromptTruncator loads tokenizer.json from the model directory.
// A missing tokenizer file or a non-positive limit disables truncation.
func LoadPromptTruncator(modelDir string, maxTokens int) (*PromptTruncator, error) {
	if maxTokens <= 0 {
		return &PromptTruncator{}, nil
	}
	path := filepath.Join(modelDir, "tokenizer.json")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no tokenizer in model directory, prompts are not truncated", "dir", modelDir)
			return &PromptTruncator{}, nil
		}
		return nil, err
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, err
	}
	return &PromptTruncator{tk: tk, maxTokens: maxTokens}, nil
}

// Truncate returns the longest prefix of prompt that fits in the token limit.
func (p *PromptTruncator) Truncate(prompt string) string {
	if p == nil || p.tk == nil {
		return prompt
	}
	enc, err := p.tk.EncodeSingle(prompt, false)
	if err != nil {
		slog.Warn("tokenize prompt failed, sending it untruncated", "error", err)
		return prompt
	}
	if len(enc.Offsets) <= p.maxTokens {
		return prompt
	}

	cut := 0
	for _, off := range enc.Offsets[:p.maxTokens] {
		if len(off) == 2 && off[1] > cut {
			cut = off[1]
		}
	}
	slog.Debug("prompt truncated", "tokens", len(enc.Offsets), "limit", p.maxTokens)
	return cutAtRune(prompt, cut)
}

// cutAtRune returns s cut to at most n bytes without splitting a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
