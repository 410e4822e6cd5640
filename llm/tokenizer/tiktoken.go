package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/agentrun/types"
	"github.com/pkoukk/tiktoken-go"
)

// modelEncodings maps model name prefixes to tiktoken encodings.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4.1":       "o200k_base",
	"o1":            "o200k_base",
	"o3":            "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

const defaultEncoding = "cl100k_base"

// Tiktoken counts tokens with an OpenAI BPE encoding. The encoding is loaded
// lazily; if it cannot be loaded the counter falls back to types.EstimateCounter.
type Tiktoken struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewTiktoken creates a counter for model, matching by longest known prefix.
func NewTiktoken(model string) *Tiktoken {
	return &Tiktoken{model: model, encoding: EncodingFor(model)}
}

// EncodingFor returns the encoding name used for model.
func EncodingFor(model string) string {
	if enc, ok := modelEncodings[model]; ok {
		return enc
	}
	best, bestLen := defaultEncoding, 0
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = enc, len(prefix)
		}
	}
	return best
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Err reports whether the encoding failed to load.
func (t *Tiktoken) Err() error {
	return t.init()
}

// CountTokens implements types.TokenCounter.
func (t *Tiktoken) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if err := t.init(); err != nil {
		return types.EstimateCounter{}.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessages counts a conversation including per-message overhead.
func (t *Tiktoken) CountMessages(msgs []types.Message) int {
	total := 3
	for _, m := range msgs {
		total += 4
		total += t.CountTokens(string(m.Role))
		total += t.CountTokens(m.Content)
		for _, call := range m.ToolCalls {
			total += t.CountTokens(call.Name) + t.CountTokens(string(call.Arguments))
		}
	}
	return total
}

// Name returns a descriptive name.
func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
