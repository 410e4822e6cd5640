// Package retry adds exponential backoff retries and token-bucket rate
// limiting to an llm.Provider.
package retry
