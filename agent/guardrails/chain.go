package guardrails

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ChainMode selects how a Chain runs its validators.
type ChainMode string

const (
	// ChainFailFast stops at the first triggered result.
	ChainFailFast ChainMode = "fail_fast"
	// ChainCollectAll runs every validator in priority order.
	ChainCollectAll ChainMode = "collect_all"
	// ChainParallel runs every validator concurrently.
	ChainParallel ChainMode = "parallel"
)

// Chain runs validators in priority order and merges their results.
// A Chain is itself a Validator.
type Chain struct {
	mu         sync.RWMutex
	validators []Validator
	mode       ChainMode
}

// NewChain returns a chain in mode holding validators.
func NewChain(mode ChainMode, validators ...Validator) *Chain {
	if mode == "" {
		mode = ChainCollectAll
	}
	c := &Chain{mode: mode}
	c.Add(validators...)
	return c
}

func (c *Chain) Name() string  { return "chain" }
func (c *Chain) Priority() int { return 0 }

// Add appends validators.
func (c *Chain) Add(validators ...Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validators = append(c.validators, validators...)
}

// Validators returns a priority-sorted copy. Equal priorities keep insertion order.
func (c *Chain) Validators() []Validator {
	c.mu.RLock()
	sorted := slices.Clone(c.validators)
	c.mu.RUnlock()
	slices.SortStableFunc(sorted, func(a, b Validator) int { return a.Priority() - b.Priority() })
	return sorted
}

// Validate implements Validator. A validator that fails to run surfaces as a
// *ValidatorError.
func (c *Chain) Validate(ctx context.Context, content string) (*ValidationResult, error) {
	validators := c.Validators()
	if c.mode == ChainParallel {
		return c.parallel(ctx, validators, content)
	}

	result := NewValidationResult()
	for _, v := range validators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := v.Validate(ctx, content)
		if err != nil {
			return nil, &ValidatorError{Validator: v.Name(), Cause: err}
		}
		result.Merge(r)
		if c.mode == ChainFailFast && r != nil && r.Triggered() {
			break
		}
	}
	return result, nil
}

func (c *Chain) parallel(ctx context.Context, validators []Validator, content string) (*ValidationResult, error) {
	results := make([]*ValidationResult, len(validators))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range validators {
		g.Go(func() error {
			r, err := v.Validate(gctx, content)
			if err != nil {
				return &ValidatorError{Validator: v.Name(), Cause: err}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := NewValidationResult()
	for _, r := range results {
		merged.Merge(r)
	}
	return merged, nil
}
