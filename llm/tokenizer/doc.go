// Package tokenizer counts tokens with tiktoken so conversation history can
// be trimmed to a budget.
package tokenizer
