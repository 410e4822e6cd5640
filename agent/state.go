package agent

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/BaSui01/agentrun/types"
)

// RunStatus is the lifecycle position of a RunState.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSuspended RunStatus = "suspended"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// ApprovalDecision is a human or programmatic verdict on a pending call.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// ToolApprovalItem is a pending call awaiting a decision, unique by CallID.
type ToolApprovalItem struct {
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Agent     string          `json:"agent"`
}

// RunState is the resumable snapshot of a run. The runner owns it while a
// run is in progress; afterwards it belongs to the caller, who may record
// approval decisions and feed it back into Run.
type RunState struct {
	runID           string
	status          RunStatus
	currentAgent    *Agent
	currentTurn     int
	maxTurns        int
	turnStart       int
	originalInput   []Item
	items           []RunItem
	approvals       map[string]ApprovalDecision
	interruptions   []ToolApprovalItem
	inputGuardrails []GuardrailResult
	outputGuardrail []GuardrailResult
	lastResponseID  string
	usage           types.TokenUsage
	toolsUsed       map[string]bool
	finalOutput     json.RawMessage
	pendingOutput   json.RawMessage // final output whose output guardrails failed to run

	// in-memory only
	finalValue      any
	hasFinalValue   bool
	pendingValue    any
	hasPendingValue bool
	contextValue    any
}

func (*RunState) isRunInput() {}

func newRunState(runID string, start *Agent, input []Item, maxTurns int) *RunState {
	return &RunState{
		runID:         runID,
		status:        StatusRunning,
		currentAgent:  start,
		maxTurns:      maxTurns,
		originalInput: slices.Clone(input),
		approvals:     make(map[string]ApprovalDecision),
		toolsUsed:     make(map[string]bool),
	}
}

// RunID returns the run identifier.
func (s *RunState) RunID() string { return s.runID }

// Status returns the lifecycle status.
func (s *RunState) Status() RunStatus { return s.status }

// CurrentAgent returns the active agent.
func (s *RunState) CurrentAgent() *Agent { return s.currentAgent }

// CurrentTurn returns the number of turns taken so far.
func (s *RunState) CurrentTurn() int { return s.currentTurn }

// MaxTurns returns the turn budget.
func (s *RunState) MaxTurns() int { return s.maxTurns }

// OriginalInput returns the input the history started from.
func (s *RunState) OriginalInput() []Item { return slices.Clone(s.originalInput) }

// Items returns the generated items.
func (s *RunState) Items() []RunItem { return slices.Clone(s.items) }

// History returns the original input followed by every generated item.
func (s *RunState) History() []Item {
	out := make([]Item, 0, len(s.originalInput)+len(s.items))
	out = append(out, s.originalInput...)
	return append(out, ItemsOf(s.items)...)
}

// Interruptions returns the calls awaiting a decision.
func (s *RunState) Interruptions() []ToolApprovalItem { return slices.Clone(s.interruptions) }

// InputGuardrailResults returns recorded input guardrail outcomes.
func (s *RunState) InputGuardrailResults() []GuardrailResult { return slices.Clone(s.inputGuardrails) }

// OutputGuardrailResults returns recorded output guardrail outcomes.
func (s *RunState) OutputGuardrailResults() []GuardrailResult { return slices.Clone(s.outputGuardrail) }

// LastResponseID returns the id of the last model response.
func (s *RunState) LastResponseID() string { return s.lastResponseID }

// Usage returns aggregated token usage.
func (s *RunState) Usage() types.TokenUsage { return s.usage }

// FinalOutputJSON returns the JSON-encoded final output of a completed run.
func (s *RunState) FinalOutputJSON() json.RawMessage { return s.finalOutput }

// SetContext sets the context value used when the state is resumed.
// Context values are not serialized.
func (s *RunState) SetContext(v any) { s.contextValue = v }

// Decision returns the recorded decision for a call.
func (s *RunState) Decision(callID string) (ApprovalDecision, bool) {
	d, ok := s.approvals[callID]
	return d, ok
}

// Approve grants a pending interruption.
func (s *RunState) Approve(item ToolApprovalItem) error {
	return s.decide(item.CallID, DecisionApproved)
}

// Reject denies a pending interruption; the model is told the call was not approved.
func (s *RunState) Reject(item ToolApprovalItem) error {
	return s.decide(item.CallID, DecisionRejected)
}

// ApproveCall grants a pending interruption by call id.
func (s *RunState) ApproveCall(callID string) error {
	return s.decide(callID, DecisionApproved)
}

// RejectCall denies a pending interruption by call id.
func (s *RunState) RejectCall(callID string) error {
	return s.decide(callID, DecisionRejected)
}

func (s *RunState) decide(callID string, d ApprovalDecision) error {
	if !slices.ContainsFunc(s.interruptions, func(it ToolApprovalItem) bool { return it.CallID == callID }) {
		return userErrorf("call %q is not a pending interruption", callID)
	}
	s.approvals[callID] = d
	return nil
}

// pendingCalls returns call items that have no output yet, in order.
func (s *RunState) pendingCalls() []RunItem {
	answered := make(map[string]bool)
	for _, ri := range s.items {
		if ri.Item.IsOutput() {
			answered[ri.Item.CallID] = true
		}
	}
	var pending []RunItem
	for _, ri := range s.items {
		if ri.Item.IsCall() && !answered[ri.Item.CallID] {
			pending = append(pending, ri)
		}
	}
	return pending
}

// hasApprovalItem reports whether an approval request was already recorded.
func (s *RunState) hasApprovalItem(callID string) bool {
	return slices.ContainsFunc(s.items, func(ri RunItem) bool {
		return ri.Item.Type == ItemToolApproval && ri.Item.CallID == callID
	})
}

func (s *RunState) indexOfCall(callID string) int {
	return slices.IndexFunc(s.items, func(ri RunItem) bool {
		return ri.Item.IsCall() && ri.Item.CallID == callID
	})
}

// PendingFinalOutputJSON returns the encoded final output that is still
// awaiting its output guardrails, or nil.
func (s *RunState) PendingFinalOutputJSON() json.RawMessage { return s.pendingOutput }

func (s *RunState) setPending(data json.RawMessage, output any) {
	s.pendingOutput = data
	s.pendingValue = output
	s.hasPendingValue = data != nil
}

// finalOutputValue returns the in-memory final output, or its decoded JSON
// form for a state restored from storage.
func (s *RunState) finalOutputValue() any {
	if s.hasFinalValue {
		return s.finalValue
	}
	if len(s.finalOutput) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(s.finalOutput, &v); err != nil {
		return nil
	}
	return v
}

func (s *RunState) String() string {
	agent := ""
	if s.currentAgent != nil {
		agent = s.currentAgent.Name
	}
	return fmt.Sprintf("RunState(%s, agent=%s, turn=%d/%d, status=%s, items=%d, interruptions=%d)",
		s.runID, agent, s.currentTurn, s.maxTurns, s.status, len(s.items), len(s.interruptions))
}
