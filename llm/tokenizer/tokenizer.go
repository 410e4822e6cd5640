package tokenizer

import (
	"sync"

	"github.com/BaSui01/agentrun/types"
)

var (
	counters   = make(map[string]*Tiktoken)
	countersMu sync.Mutex
)

// ForModel returns a cached counter for model.
func ForModel(model string) types.TokenCounter {
	countersMu.Lock()
	defer countersMu.Unlock()
	if c, ok := counters[model]; ok {
		return c
	}
	c := NewTiktoken(model)
	counters[model] = c
	return c
}
