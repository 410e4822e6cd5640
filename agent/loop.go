package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/types"
)

// runExec is the per-call execution of the loop over one RunState.
type runExec struct {
	r      *Runner
	st     *RunState
	rc     *RunContext
	cfg    *RunConfig
	hooks  observers
	logger *zap.Logger
	tracer trace.Tracer
	stream *RunResultStreaming

	newItems     []RunItem
	rawResponses []*llm.ChatResponse
	agentStarted bool
}

type turnOutcome int

const (
	outcomeContinue turnOutcome = iota
	outcomeFinal
	outcomeInterrupted
)

// turnTools is the tool set offered to the model for one turn.
type turnTools struct {
	defs     []types.ToolSchema
	tools    map[string]Tool
	handoffs map[string]*Handoff
}

func (e *runExec) run(ctx context.Context) (res *RunResult, err error) {
	st := e.st
	ctx = types.WithRunID(ctx, st.runID)
	ctx, span := e.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.run_id", st.runID),
		attribute.String("agent.name", st.currentAgent.Name),
	))
	defer func() {
		if err != nil {
			err = e.fail(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.hooks.runEnd(ctx, e.rc, res, err)
	}()

	if st.status == StatusCompleted {
		return e.result(), nil
	}
	st.status = StatusRunning
	e.emit(ctx, StreamEvent{Type: StreamAgentUpdated, Agent: st.currentAgent, AgentName: st.currentAgent.Name})

	if output, ok := e.pendingFinal(); ok {
		e.logger.Debug("re-checking pending final output")
		if err := e.finish(ctx, st.currentAgent, output); err != nil {
			return nil, err
		}
		return e.result(), nil
	}

	if pending := st.pendingCalls(); len(pending) > 0 {
		e.logger.Debug("resuming pending calls", zap.Int("count", len(pending)))
		outcome, err := e.resume(ctx, pending)
		if err != nil {
			return nil, err
		}
		if outcome != outcomeContinue {
			return e.result(), nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, &CancelledError{Cause: err}
		}
		a := st.currentAgent
		if st.currentTurn == 0 {
			if err := e.inputGuardrails(ctx, a); err != nil {
				return nil, err
			}
		}
		if st.currentTurn >= st.maxTurns {
			return nil, &MaxTurnsExceededError{MaxTurns: st.maxTurns}
		}

		outcome, err := e.turn(ctx, a, st.currentTurn+1)
		if err != nil {
			return nil, err
		}
		if outcome != outcomeContinue {
			return e.result(), nil
		}
	}
}

// fail attaches the state to err and records the terminal status.
func (e *runExec) fail(err error) error {
	err = attachState(err, e.st)
	if KindOf(err) == KindCancelled {
		e.st.status = StatusCancelled
		e.logger.Info("run cancelled", zap.Int("turn", e.st.currentTurn))
	} else {
		e.st.status = StatusFailed
		e.logger.Warn("run failed",
			zap.Int("turn", e.st.currentTurn),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
	}
	return err
}

func (e *runExec) resume(ctx context.Context, pending []RunItem) (turnOutcome, error) {
	a := e.st.currentAgent
	tt, err := e.collectTools(ctx, a)
	if err != nil {
		return outcomeContinue, err
	}
	for _, ri := range pending {
		if err := tt.check(ri.Item); err != nil {
			return outcomeContinue, err
		}
	}
	return e.resolveCalls(ctx, a, tt, pending)
}

func (e *runExec) inputGuardrails(ctx context.Context, a *Agent) error {
	guards := e.cfg.inputGuardrails(a)
	if len(guards) == 0 {
		return nil
	}
	ctx, span := e.tracer.Start(ctx, "guardrail", trace.WithAttributes(
		attribute.String("guardrail.kind", "input"),
		attribute.String("agent.name", a.Name),
	))
	defer span.End()

	results, err := runInputGuardrails(ctx, e.rc, a, guards, e.st.originalInput)
	e.st.inputGuardrails = results
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// turn runs one model call. The state only advances to turn once the
// response is accepted, so a failed or cancelled call leaves it resumable.
func (e *runExec) turn(ctx context.Context, a *Agent, turn int) (turnOutcome, error) {
	ctx = types.WithAgentName(ctx, a.Name)
	ctx, span := e.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("agent.name", a.Name),
		attribute.Int("agent.turn", turn),
	))
	defer span.End()
	e.logger.Debug("turn started", zap.String("agent", a.Name), zap.Int("turn", turn))

	if !e.agentStarted {
		e.hooks.agentStart(ctx, e.rc, a)
		e.agentStarted = true
	}

	instructions, err := a.Instructions.Resolve(ctx, e.rc, a)
	if err != nil {
		return outcomeContinue, &UserError{Message: fmt.Sprintf("resolve instructions for agent %s", a.Name), Cause: err}
	}
	tt, err := e.collectTools(ctx, a)
	if err != nil {
		return outcomeContinue, err
	}

	resp, err := e.callModel(ctx, a, tt, instructions)
	if err != nil {
		return outcomeContinue, err
	}
	if err := ctx.Err(); err != nil {
		return outcomeContinue, &CancelledError{Cause: err}
	}

	calls, err := e.processResponse(ctx, a, tt, resp, turn)
	if err != nil {
		return outcomeContinue, err
	}
	if len(calls) == 0 {
		output, err := e.parseFinal(a, resp.Message.Content)
		if err != nil {
			return outcomeContinue, err
		}
		return outcomeFinal, e.finish(ctx, a, output)
	}
	return e.resolveCalls(ctx, a, tt, calls)
}

// collectTools gathers static tools, discovered tools and enabled handoffs,
// in that order. Names must be unique.
func (e *runExec) collectTools(ctx context.Context, a *Agent) (*turnTools, error) {
	tt := &turnTools{
		tools:    make(map[string]Tool),
		handoffs: make(map[string]*Handoff),
	}
	add := func(def types.ToolSchema) error {
		if _, dup := tt.tools[def.Name]; dup {
			return userErrorf("agent %s: duplicate tool name %q", a.Name, def.Name)
		}
		if _, dup := tt.handoffs[def.Name]; dup {
			return userErrorf("agent %s: duplicate tool name %q", a.Name, def.Name)
		}
		tt.defs = append(tt.defs, def)
		return nil
	}

	tools := slices.Clone(a.Tools)
	for _, src := range a.ToolSources {
		found, err := src.ListTools(ctx, e.rc, a)
		if err != nil {
			return nil, &UserError{Message: fmt.Sprintf("agent %s: list tools", a.Name), Cause: err}
		}
		tools = append(tools, found...)
	}
	for _, t := range tools {
		def := t.Definition()
		if err := add(def); err != nil {
			return nil, err
		}
		tt.tools[def.Name] = t
	}
	for _, h := range a.Handoffs {
		if h == nil || h.Agent == nil || !h.enabled(ctx, e.rc, a) {
			continue
		}
		def := h.Definition()
		if err := add(def); err != nil {
			return nil, err
		}
		tt.handoffs[def.Name] = h
	}
	return tt, nil
}

// check reports a call item naming nothing this turn offers.
func (tt *turnTools) check(it Item) error {
	switch it.Type {
	case ItemToolCall:
		if _, ok := tt.tools[it.Name]; ok {
			return nil
		}
	case ItemHandoffCall:
		if _, ok := tt.handoffs[it.Name]; ok {
			return nil
		}
	}
	return &ModelBehaviorError{Message: fmt.Sprintf("unknown tool or handoff %q", it.Name)}
}

func (e *runExec) callModel(ctx context.Context, a *Agent, tt *turnTools, instructions string) (*llm.ChatResponse, error) {
	st := e.st
	model := e.cfg.modelFor(a, e.r.cfg.DefaultModel)
	if e.r.cfg.Resolver == nil {
		return nil, userErrorf("runner has no model resolver")
	}
	provider, err := e.r.cfg.Resolver.Resolve(model)
	if err != nil {
		return nil, &UserError{Message: fmt.Sprintf("resolve model %q", model), Cause: err}
	}

	var defaults llm.ModelSettings
	if d, ok := provider.(llm.SettingsDefaulter); ok {
		defaults = d.DefaultSettings()
	}
	settings := e.cfg.settingsFor(a, defaults)
	if a.resetToolChoice() && st.toolsUsed[a.Name] && settings.ToolChoice != nil {
		settings.ToolChoice = llm.StringPtr(llm.ToolChoiceAuto)
	}

	req := &llm.ChatRequest{
		RunID:        st.runID,
		Model:        model,
		Instructions: instructions,
		Messages:     ToMessages(st.History()),
		Tools:        tt.defs,
		Settings:     settings,
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}
	if a.OutputType != nil {
		req.OutputSchema = &llm.OutputSchema{
			Name:   a.OutputType.Name(),
			Schema: a.OutputType.JSONSchema(),
			Strict: a.OutputType.Strict(),
		}
	}
	if e.cfg != nil && e.cfg.UsePreviousResponseID {
		req.PreviousResponseID = st.lastResponseID
	}

	ctx, span := e.tracer.Start(ctx, "llm.call", trace.WithAttributes(
		attribute.String("llm.provider", provider.Name()),
		attribute.String("llm.model", model),
		attribute.Int("llm.tools", len(req.Tools)),
	))
	defer span.End()

	e.hooks.llmStart(ctx, e.rc, a, req)
	var resp *llm.ChatResponse
	if e.stream != nil {
		var ch <-chan llm.StreamEvent
		ch, err = provider.Stream(ctx, req)
		if err == nil {
			resp, err = llm.CollectStream(ctx, ch, func(ev llm.StreamEvent) {
				e.emit(ctx, StreamEvent{Type: StreamRawModel, Raw: &ev})
			})
		}
	} else {
		resp, err = provider.Completion(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &CancelledError{Cause: ctxErr}
		}
		return nil, &ModelCallError{Model: model, Provider: provider.Name(), Cause: err}
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.prompt", resp.Usage.PromptTokens),
		attribute.Int("llm.tokens.completion", resp.Usage.CompletionTokens),
	)
	e.hooks.llmEnd(ctx, e.rc, a, resp)
	e.logger.Debug("model responded",
		zap.String("model", model),
		zap.Int("tool_calls", len(resp.Message.ToolCalls)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return resp, nil
}

// processResponse records the response as items and returns its call items.
// Every call is validated before anything is recorded.
func (e *runExec) processResponse(ctx context.Context, a *Agent, tt *turnTools, resp *llm.ChatResponse, turn int) ([]RunItem, error) {
	msg := resp.Message
	calls := make([]Item, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		args := tc.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		if !json.Valid(args) {
			return nil, &ModelBehaviorError{Message: fmt.Sprintf("invalid JSON arguments for %s", tc.Name)}
		}
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		it := Item{CallID: tc.ID, Name: tc.Name, Arguments: args}
		switch {
		case tt.tools[tc.Name] != nil:
			it.Type = ItemToolCall
		case tt.handoffs[tc.Name] != nil:
			it.Type = ItemHandoffCall
		default:
			return nil, &ModelBehaviorError{Message: fmt.Sprintf("model called unknown tool %q", tc.Name)}
		}
		calls = append(calls, it)
	}

	e.accept(resp, turn)
	e.st.turnStart = len(e.st.items)
	if msg.Reasoning != "" {
		e.appendItem(ctx, a, ReasoningItem(msg.Reasoning))
	}
	if msg.Content != "" {
		e.appendItem(ctx, a, AssistantMessage(msg.Content))
	}
	out := make([]RunItem, 0, len(calls))
	for _, it := range calls {
		out = append(out, e.appendItem(ctx, a, it))
	}
	return out, nil
}

// accept advances the state to turn and records the response's usage.
func (e *runExec) accept(resp *llm.ChatResponse, turn int) {
	st := e.st
	st.currentTurn = turn
	usage := resp.Usage
	if usage.Requests == 0 {
		usage.Requests = 1
	}
	st.usage.Add(usage)
	e.rc.addUsage(usage)
	if resp.ID != "" {
		st.lastResponseID = resp.ID
	}
	e.rawResponses = append(e.rawResponses, resp)
}

func (e *runExec) appendItem(ctx context.Context, a *Agent, it Item) RunItem {
	ri := RunItem{Agent: a.Name, Item: it}
	e.st.items = append(e.st.items, ri)
	e.newItems = append(e.newItems, ri)
	e.emit(ctx, StreamEvent{Type: StreamRunItem, Name: eventNameFor(it), Item: &ri})
	return ri
}

type callAction int

const (
	actionExecute callAction = iota
	actionReject
	actionPending
)

type plannedCall struct {
	item   Item
	tool   Tool
	action callAction
	output string
	done   bool
	err    error
}

// resolveCalls settles the call items of one model response. Approval is
// evaluated for every tool call before any executes.
func (e *runExec) resolveCalls(ctx context.Context, a *Agent, tt *turnTools, calls []RunItem) (turnOutcome, error) {
	st := e.st
	var planned []*plannedCall
	var handoffCalls []Item
	for _, ri := range calls {
		it := ri.Item
		if it.Type == ItemHandoffCall {
			handoffCalls = append(handoffCalls, it)
			continue
		}
		t := tt.tools[it.Name]
		pc := &plannedCall{item: it, tool: t}
		need, err := t.NeedsApproval(ctx, e.rc, it.Arguments)
		if err != nil {
			return outcomeContinue, &UserError{Message: fmt.Sprintf("approval check for tool %s", it.Name), Cause: err}
		}
		if need {
			switch d, _ := st.Decision(it.CallID); d {
			case DecisionApproved:
				pc.action = actionExecute
			case DecisionRejected:
				pc.action = actionReject
			default:
				pc.action = actionPending
			}
		}
		planned = append(planned, pc)
	}
	if len(planned) > 0 {
		st.toolsUsed[a.Name] = true
	}

	if err := e.executeTools(ctx, a, planned); err != nil {
		return outcomeContinue, err
	}

	var results []FunctionToolResult
	var interruptions []ToolApprovalItem
	for _, pc := range planned {
		switch pc.action {
		case actionExecute:
			results = append(results, FunctionToolResult{ToolName: pc.item.Name, CallID: pc.item.CallID, Output: pc.output})
		case actionPending:
			approval := ToolApprovalItem{CallID: pc.item.CallID, ToolName: pc.item.Name, Arguments: pc.item.Arguments, Agent: a.Name}
			interruptions = append(interruptions, approval)
			if !st.hasApprovalItem(pc.item.CallID) {
				e.appendItem(ctx, a, Item{Type: ItemToolApproval, CallID: pc.item.CallID, Name: pc.item.Name, Arguments: pc.item.Arguments})
			}
		}
	}
	if len(interruptions) > 0 {
		st.interruptions = interruptions
		st.status = StatusSuspended
		e.logger.Info("run suspended for approval", zap.Int("interruptions", len(interruptions)))
		return outcomeInterrupted, nil
	}
	st.interruptions = nil

	if len(handoffCalls) > 0 {
		for _, extra := range handoffCalls[1:] {
			e.appendItem(ctx, a, Item{Type: ItemHandoffOutput, CallID: extra.CallID, Name: extra.Name, Content: IgnoredHandoffMessage})
		}
		if err := e.handoff(ctx, a, tt.handoffs[handoffCalls[0].Name], handoffCalls[0]); err != nil {
			return outcomeContinue, err
		}
		return outcomeContinue, nil
	}

	verdict, err := a.ToolUseBehavior.decide(ctx, e.rc, results)
	if err != nil {
		return outcomeContinue, &UserError{Message: "tool use behavior", Cause: err}
	}
	if verdict.IsFinalOutput {
		return outcomeFinal, e.finish(ctx, a, verdict.FinalOutput)
	}
	return outcomeContinue, nil
}

// executeTools runs executable calls and records outputs in request order.
// Outputs of calls that completed are kept even when a later call aborts.
func (e *runExec) executeTools(ctx context.Context, a *Agent, planned []*plannedCall) error {
	var runnable []*plannedCall
	for _, pc := range planned {
		switch pc.action {
		case actionExecute:
			runnable = append(runnable, pc)
		case actionReject:
			pc.output = RejectedToolMessage
			pc.done = true
			runnable = append(runnable, pc)
		}
	}

	var firstErr error
	if e.cfg != nil && e.cfg.ParallelToolCalls {
		// The first aborting call cancels its siblings.
		g, gctx := errgroup.WithContext(ctx)
		for _, pc := range runnable {
			if pc.action != actionExecute {
				continue
			}
			g.Go(func() error {
				pc.output, pc.err = e.invokeTool(gctx, a, pc)
				pc.done = pc.err == nil
				return pc.err
			})
		}
		firstErr = g.Wait()
	} else {
		for _, pc := range runnable {
			if pc.action != actionExecute {
				continue
			}
			if err := ctx.Err(); err != nil {
				pc.err = &CancelledError{Cause: err}
				break
			}
			pc.output, pc.err = e.invokeTool(ctx, a, pc)
			if pc.err != nil {
				break
			}
			pc.done = true
		}
	}

	for _, pc := range runnable {
		if pc.err != nil {
			if firstErr == nil {
				firstErr = pc.err
			}
			continue
		}
		if !pc.done {
			continue
		}
		e.appendItem(ctx, a, ToolOutputItem(pc.item.CallID, pc.item.Name, pc.output))
	}
	return firstErr
}

// invokeTool runs one call. Tool failures become model-visible messages
// unless the tool is fail-fast; model behavior errors and cancellation abort.
func (e *runExec) invokeTool(ctx context.Context, a *Agent, pc *plannedCall) (string, error) {
	call := pc.item.ToolCall()
	ctx, span := e.tracer.Start(ctx, "tool.call", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	e.hooks.toolStart(ctx, e.rc, a, call)
	out, err := pc.tool.Invoke(ctx, e.rc, call)
	if err != nil {
		span.RecordError(err)
		var mbe *ModelBehaviorError
		if errors.As(err, &mbe) {
			return "", err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &CancelledError{Cause: ctxErr}
		}
		tce := &ToolCallError{ToolName: call.Name, CallID: call.ID, Cause: err}
		if ff, ok := pc.tool.(FailFastTool); ok && ff.FailFast() {
			span.SetStatus(codes.Error, err.Error())
			return "", tce
		}
		e.logger.Warn("tool failed", zap.String("tool", call.Name), zap.String("call_id", call.ID), zap.Error(err))
		out = e.cfg.formatToolError(ctx, e.rc, pc.tool, tce)
	}
	e.hooks.toolEnd(ctx, e.rc, a, call, out)
	return out, nil
}

// handoff switches the active agent. The filter sees the current turn's
// items, including the handoff output, as NewItems.
func (e *runExec) handoff(ctx context.Context, from *Agent, h *Handoff, call Item) error {
	st := e.st
	to := h.Agent
	ctx, span := e.tracer.Start(ctx, "agent.handoff", trace.WithAttributes(
		attribute.String("handoff.from", from.Name),
		attribute.String("handoff.to", to.Name),
	))
	defer span.End()

	if h.InputSchema != nil {
		if err := h.InputSchema.Validate(call.Arguments); err != nil {
			return &ModelBehaviorError{Message: fmt.Sprintf("invalid input for handoff %s", h.ToolName), Cause: err}
		}
	}
	if h.OnHandoff != nil {
		if err := h.OnHandoff(ctx, e.rc, call.Arguments); err != nil {
			var mbe *ModelBehaviorError
			if errors.As(err, &mbe) {
				return err
			}
			return &UserError{Message: fmt.Sprintf("handoff %s callback", h.ToolName), Cause: err}
		}
	}

	e.appendItem(ctx, from, Item{
		Type:        ItemHandoffOutput,
		CallID:      call.CallID,
		Name:        call.Name,
		Content:     handoffOutput(to.Name),
		SourceAgent: from.Name,
		TargetAgent: to.Name,
	})

	if filter := e.cfg.handoffFilter(h); filter != nil {
		start := min(st.turnStart, len(st.items))
		data := HandoffInputData{
			InputHistory:    slices.Clone(st.originalInput),
			PreHandoffItems: slices.Clone(st.items[:start]),
			NewItems:        slices.Clone(st.items[start:]),
		}
		filtered, err := filter(ctx, data)
		if err != nil {
			return &UserError{Message: fmt.Sprintf("handoff %s input filter", h.ToolName), Cause: err}
		}
		st.originalInput = filtered.InputHistory
		st.items = append(slices.Clone(filtered.PreHandoffItems), filtered.NewItems...)
	}

	e.hooks.handoff(ctx, e.rc, from, to)
	st.currentAgent = to
	e.agentStarted = false
	e.logger.Info("handoff", zap.String("from", from.Name), zap.String("to", to.Name))
	e.emit(ctx, StreamEvent{Type: StreamAgentUpdated, Agent: to, AgentName: to.Name})
	return nil
}

// parseFinal validates model text against the output contract.
func (e *runExec) parseFinal(a *Agent, text string) (any, error) {
	if a.OutputType == nil {
		return text, nil
	}
	v, err := a.OutputType.Parse(text)
	if err != nil {
		return nil, &ModelBehaviorError{Message: fmt.Sprintf("final output of agent %s does not match %s", a.Name, a.OutputType.Name()), Cause: err}
	}
	return v, nil
}

// pendingFinal returns the output a previous attempt produced but could not
// finish because its output guardrails failed to run.
func (e *runExec) pendingFinal() (any, bool) {
	st := e.st
	if len(st.pendingOutput) == 0 {
		return nil, false
	}
	if st.hasPendingValue {
		return st.pendingValue, true
	}
	if ot := st.currentAgent.OutputType; ot != nil {
		if v, err := ot.Parse(string(st.pendingOutput)); err == nil {
			return v, true
		}
	}
	var v any
	if err := json.Unmarshal(st.pendingOutput, &v); err != nil {
		return nil, false
	}
	return v, true
}

// finish runs output guardrails and completes the run with output. When a
// guardrail fails to run, the output stays pending on the state and the next
// Run re-checks it without another model call.
func (e *runExec) finish(ctx context.Context, a *Agent, output any) error {
	st := e.st
	data, err := json.Marshal(output)
	if err != nil {
		return &UserError{Message: "encode final output", Cause: err}
	}
	st.setPending(nil, nil)
	if guards := e.cfg.outputGuardrails(a); len(guards) > 0 {
		gctx, span := e.tracer.Start(ctx, "guardrail", trace.WithAttributes(
			attribute.String("guardrail.kind", "output"),
			attribute.String("agent.name", a.Name),
		))
		results, err := runOutputGuardrails(gctx, e.rc, a, guards, output)
		st.outputGuardrail = results
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if err != nil {
			var trip *OutputGuardrailTripwireError
			if !errors.As(err, &trip) {
				st.setPending(data, output)
			}
			return err
		}
	}

	st.finalOutput = data
	st.finalValue = output
	st.hasFinalValue = true
	st.interruptions = nil
	st.status = StatusCompleted
	e.hooks.agentEnd(ctx, e.rc, a, output)
	e.logger.Debug("run completed", zap.String("agent", a.Name), zap.Int("turns", st.currentTurn))
	return nil
}

func (e *runExec) emit(ctx context.Context, ev StreamEvent) {
	if e.stream != nil {
		e.stream.emit(ctx, ev)
	}
}

func (e *runExec) result() *RunResult {
	st := e.st
	return &RunResult{
		Input:                  slices.Clone(st.originalInput),
		NewItems:               slices.Clone(e.newItems),
		RawResponses:           slices.Clone(e.rawResponses),
		FinalOutput:            st.finalOutputValue(),
		LastAgent:              st.currentAgent,
		Interruptions:          slices.Clone(st.interruptions),
		InputGuardrailResults:  slices.Clone(st.inputGuardrails),
		OutputGuardrailResults: slices.Clone(st.outputGuardrail),
		Usage:                  st.usage,
		State:                  st,
	}
}
