package agent

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/types"
)

// RunResult is the outcome of a run that completed or suspended.
type RunResult struct {
	// Input is the original input, as rewritten by any handoff filter.
	Input []Item
	// NewItems are the items produced by this call, in order.
	NewItems     []RunItem
	RawResponses []*llm.ChatResponse
	// FinalOutput is the typed output, raw text, or nil when suspended.
	FinalOutput   any
	LastAgent     *Agent
	Interruptions []ToolApprovalItem

	InputGuardrailResults  []GuardrailResult
	OutputGuardrailResults []GuardrailResult
	Usage                  types.TokenUsage

	// State is the run's terminal artifact; resume it after recording decisions.
	State *RunState
}

// History returns the full updated conversation history.
func (r *RunResult) History() []Item {
	if r.State == nil {
		return nil
	}
	return r.State.History()
}

// Interrupted reports whether the run suspended on pending approvals.
func (r *RunResult) Interrupted() bool {
	return len(r.Interruptions) > 0
}

// LastResponseID returns the id of the last model response.
func (r *RunResult) LastResponseID() string {
	if r.State == nil {
		return ""
	}
	return r.State.lastResponseID
}

// FinalOutputText returns the final output as text: strings as-is,
// anything else JSON-encoded, "" when there is none.
func (r *RunResult) FinalOutputText() string {
	switch v := r.FinalOutput.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	if r.State != nil && len(r.State.finalOutput) > 0 {
		return string(r.State.finalOutput)
	}
	data, err := json.Marshal(r.FinalOutput)
	if err != nil {
		return fmt.Sprint(r.FinalOutput)
	}
	return string(data)
}

// FinalOutputAs returns the final output as T. Outputs of restored states
// are decoded from their JSON form.
func FinalOutputAs[T any](r *RunResult) (T, error) {
	var zero T
	if r == nil || r.FinalOutput == nil {
		return zero, fmt.Errorf("run has no final output")
	}
	if v, ok := r.FinalOutput.(T); ok {
		return v, nil
	}
	if r.State == nil || len(r.State.finalOutput) == 0 {
		return zero, fmt.Errorf("final output is %T, not %T", r.FinalOutput, zero)
	}
	var v T
	if err := json.Unmarshal(r.State.finalOutput, &v); err != nil {
		return zero, fmt.Errorf("decode final output as %T: %w", zero, err)
	}
	return v, nil
}
