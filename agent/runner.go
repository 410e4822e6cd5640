package agent

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/llm"
)

const instrumentationName = "github.com/BaSui01/agentrun/agent"

// Config configures a Runner. It is read-only once runs start.
type Config struct {
	// Resolver maps model ids to providers.
	Resolver llm.Resolver
	// DefaultModel is used when neither the run nor the agent names a model.
	DefaultModel    string
	DefaultMaxTurns int
	Logger          *zap.Logger
	// TracerProvider defaults to the global OpenTelemetry provider.
	TracerProvider  trace.TracerProvider
	TracingDisabled bool
}

// DefaultConfig returns a Config with default limits and no resolver.
func DefaultConfig() Config {
	return Config{DefaultMaxTurns: 10}
}

// Runner drives agents through the run loop. A Runner is safe for
// concurrent use by independent runs.
type Runner struct {
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewRunner creates a runner, filling unset fields with defaults.
func NewRunner(cfg Config) *Runner {
	if cfg.DefaultMaxTurns <= 0 {
		cfg.DefaultMaxTurns = DefaultConfig().DefaultMaxTurns
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	tp := cfg.TracerProvider
	if cfg.TracingDisabled {
		tp = noop.NewTracerProvider()
	} else if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Runner{
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("component", "runner")),
		tracer: tp.Tracer(instrumentationName),
	}
}

// Config returns the runner configuration.
func (r *Runner) Config() Config { return r.cfg }

var (
	defaultMu     sync.RWMutex
	defaultRunner *Runner
)

// SetDefaultRunner installs the process default runner used by Run and
// RunStreamed. Set it before runs start.
func SetDefaultRunner(r *Runner) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRunner = r
}

// DefaultRunner returns the process default runner, or nil.
func DefaultRunner() *Runner {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRunner
}

// Run executes start with the default runner.
func Run(ctx context.Context, start *Agent, input Input, opts ...RunOption) (*RunResult, error) {
	r := DefaultRunner()
	if r == nil {
		return nil, userErrorf("no default runner configured")
	}
	return r.Run(ctx, start, input, opts...)
}

// RunStreamed executes start with the default runner in streaming mode.
func RunStreamed(ctx context.Context, start *Agent, input Input, opts ...RunOption) (*RunResultStreaming, error) {
	r := DefaultRunner()
	if r == nil {
		return nil, userErrorf("no default runner configured")
	}
	return r.RunStreamed(ctx, start, input, opts...)
}

// Input is what a run starts from: Text, Items or a *RunState to resume.
type Input interface {
	isRunInput()
}

type textInput string

func (textInput) isRunInput() {}

type itemsInput []Item

func (itemsInput) isRunInput() {}

// Text is a single user utterance.
func Text(s string) Input { return textInput(s) }

// Items is a pre-built conversation history.
func Items(items ...Item) Input { return itemsInput(slices.Clone(items)) }

type runOptions struct {
	maxTurns  int
	value     any
	hasValue  bool
	runConfig *RunConfig
	hooks     []RunHooks
	runID     string
}

// RunOption configures a single run.
type RunOption func(*runOptions)

// WithMaxTurns sets the turn budget.
func WithMaxTurns(n int) RunOption {
	return func(o *runOptions) { o.maxTurns = n }
}

// WithContext sets the context value handed to tools, guardrails and hooks.
func WithContext(v any) RunOption {
	return func(o *runOptions) {
		o.value = v
		o.hasValue = true
	}
}

// WithRunConfig sets run-wide overrides.
func WithRunConfig(rc *RunConfig) RunOption {
	return func(o *runOptions) { o.runConfig = rc }
}

// WithHooks adds run-level observers.
func WithHooks(hooks ...RunHooks) RunOption {
	return func(o *runOptions) { o.hooks = append(o.hooks, hooks...) }
}

// WithRunID fixes the run id of a fresh run.
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// Run executes the loop until a final output, an interruption, an error or
// the turn limit. Errors raised after the loop started carry the RunState.
func (r *Runner) Run(ctx context.Context, start *Agent, input Input, opts ...RunOption) (*RunResult, error) {
	e, err := r.prepare(ctx, start, input, opts)
	if err != nil {
		return nil, err
	}
	return e.run(ctx)
}

// RunStreamed executes the loop in a goroutine and streams its events.
// Call Wait on the returned value before treating the output as final.
func (r *Runner) RunStreamed(ctx context.Context, start *Agent, input Input, opts ...RunOption) (*RunResultStreaming, error) {
	e, err := r.prepare(ctx, start, input, opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := newRunResultStreaming(cancel)
	e.stream = s
	go func() {
		defer cancel()
		res, err := e.run(ctx)
		s.finish(res, err)
	}()
	return s, nil
}

func (r *Runner) prepare(ctx context.Context, start *Agent, input Input, opts []RunOption) (*runExec, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.runConfig == nil {
		o.runConfig = RunConfigFromContext(ctx)
	}
	if o.maxTurns < 0 {
		return nil, userErrorf("max turns must be positive, got %d", o.maxTurns)
	}

	var st *RunState
	switch in := input.(type) {
	case *RunState:
		if in == nil || in.currentAgent == nil {
			return nil, userErrorf("run state has no current agent")
		}
		st = in
		if o.maxTurns > 0 {
			st.maxTurns = o.maxTurns
		}
	case textInput:
		if start == nil {
			return nil, userErrorf("start agent is required")
		}
		st = newRunState(r.newRunID(o), start, []Item{UserMessage(string(in))}, r.maxTurns(o))
	case itemsInput:
		if start == nil {
			return nil, userErrorf("start agent is required")
		}
		st = newRunState(r.newRunID(o), start, in, r.maxTurns(o))
	default:
		return nil, userErrorf("unsupported input %T", input)
	}

	value := st.contextValue
	if o.hasValue {
		value = o.value
		st.contextValue = value
	}
	rc := &RunContext{Value: value, runID: st.runID, runner: r}
	rc.usage = st.usage

	tracer := r.tracer
	if o.runConfig != nil && o.runConfig.TracingDisabled {
		tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}
	logger := r.logger.With(zap.String("run_id", st.runID))
	if o.runConfig != nil && o.runConfig.WorkflowName != "" {
		logger = logger.With(zap.String("workflow", o.runConfig.WorkflowName))
	}

	return &runExec{
		r:            r,
		st:           st,
		rc:           rc,
		cfg:          o.runConfig,
		hooks:        observers{run: o.hooks},
		logger:       logger,
		tracer:       tracer,
		agentStarted: st.currentTurn > 0,
	}, nil
}

func (r *Runner) newRunID(o runOptions) string {
	if o.runID != "" {
		return o.runID
	}
	return uuid.New().String()
}

func (r *Runner) maxTurns(o runOptions) int {
	if o.maxTurns > 0 {
		return o.maxTurns
	}
	return r.cfg.DefaultMaxTurns
}
