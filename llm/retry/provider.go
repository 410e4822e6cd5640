package retry

import (
	"context"

	"github.com/BaSui01/agentrun/llm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option configures a wrapped provider.
type Option func(*Provider)

// WithPolicy sets the retry policy.
func WithPolicy(p *RetryPolicy) Option {
	return func(w *Provider) { w.policy = p }
}

// WithRateLimit caps outgoing requests with a token bucket.
func WithRateLimit(rps float64, burst int) Option {
	return func(w *Provider) {
		if rps > 0 {
			if burst <= 0 {
				burst = 1
			}
			w.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Provider) { w.logger = logger }
}

// Provider wraps an llm.Provider with rate limiting and retries. Streams are
// retried only while opening; once events flow, failures surface as-is.
type Provider struct {
	inner   llm.Provider
	policy  *RetryPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
	retryer *Retryer
}

// Wrap decorates p.
func Wrap(p llm.Provider, opts ...Option) *Provider {
	w := &Provider{inner: p}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	w.retryer = NewRetryer(w.policy, w.logger.With(zap.String("provider", p.Name())))
	return w
}

// Name implements llm.Provider.
func (w *Provider) Name() string { return w.inner.Name() }

// DefaultSettings forwards the inner provider's defaults, if any.
func (w *Provider) DefaultSettings() llm.ModelSettings {
	if d, ok := w.inner.(llm.SettingsDefaulter); ok {
		return d.DefaultSettings()
	}
	return llm.ModelSettings{}
}

// Completion implements llm.Provider.
func (w *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return Do(ctx, w.retryer, func() (*llm.ChatResponse, error) {
		if err := w.wait(ctx); err != nil {
			return nil, err
		}
		return w.inner.Completion(ctx, req)
	})
}

// Stream implements llm.Provider.
func (w *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	return Do(ctx, w.retryer, func() (<-chan llm.StreamEvent, error) {
		if err := w.wait(ctx); err != nil {
			return nil, err
		}
		return w.inner.Stream(ctx, req)
	})
}

func (w *Provider) wait(ctx context.Context) error {
	if w.limiter == nil {
		return nil
	}
	return w.limiter.Wait(ctx)
}
