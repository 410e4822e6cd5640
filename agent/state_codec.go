package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/BaSui01/agentrun/types"
)

// StateSchemaVersion is the version written into serialized states.
const StateSchemaVersion = "1"

// ErrStateVersion is returned for serialized states of an unknown version.
var ErrStateVersion = errors.New("unsupported run state version")

// AgentMismatchError reports a serialized state that does not fit the agent
// graph it is being bound to.
type AgentMismatchError struct {
	Agent string
	// Tool is set when the agent exists but lacks a tool a pending call names.
	Tool string
}

func (e *AgentMismatchError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("agent %q not found in agent graph", e.Agent)
	}
	return fmt.Sprintf("agent %q has no tool or handoff %q", e.Agent, e.Tool)
}

// stateDoc is the wire form of a RunState. Field order is the output order.
type stateDoc struct {
	SchemaVersion   string                      `json:"$schemaVersion"`
	RunID           string                      `json:"run_id"`
	Status          RunStatus                   `json:"status"`
	CurrentAgent    string                      `json:"current_agent"`
	CurrentTurn     int                         `json:"current_turn"`
	MaxTurns        int                         `json:"max_turns"`
	TurnStart       int                         `json:"turn_start,omitempty"`
	OriginalInput   []Item                      `json:"original_input"`
	Items           []RunItem                   `json:"items,omitempty"`
	Approvals       map[string]ApprovalDecision `json:"approvals,omitempty"`
	Interruptions   []ToolApprovalItem          `json:"interruptions,omitempty"`
	InputGuardrail  []GuardrailResult           `json:"input_guardrail_results,omitempty"`
	OutputGuardrail []GuardrailResult           `json:"output_guardrail_results,omitempty"`
	LastResponseID  string                      `json:"last_response_id,omitempty"`
	Usage           types.TokenUsage            `json:"usage"`
	ToolsUsed       []string                    `json:"tools_used,omitempty"`
	FinalOutput     json.RawMessage             `json:"final_output,omitempty"`
	PendingOutput   json.RawMessage             `json:"pending_final_output,omitempty"`
}

// MarshalJSON encodes the state as a versioned document. The context value
// is not part of it. Encoding a decoded state reproduces the same bytes.
func (s *RunState) MarshalJSON() ([]byte, error) {
	doc := stateDoc{
		SchemaVersion:   StateSchemaVersion,
		RunID:           s.runID,
		Status:          s.status,
		CurrentTurn:     s.currentTurn,
		MaxTurns:        s.maxTurns,
		TurnStart:       s.turnStart,
		OriginalInput:   s.originalInput,
		Items:           s.items,
		Approvals:       s.approvals,
		Interruptions:   s.interruptions,
		InputGuardrail:  s.inputGuardrails,
		OutputGuardrail: s.outputGuardrail,
		LastResponseID:  s.lastResponseID,
		Usage:           s.usage,
		FinalOutput:     s.finalOutput,
		PendingOutput:   s.pendingOutput,
	}
	if s.currentAgent != nil {
		doc.CurrentAgent = s.currentAgent.Name
	}
	if doc.OriginalInput == nil {
		doc.OriginalInput = []Item{}
	}
	for name, used := range s.toolsUsed {
		if used {
			doc.ToolsUsed = append(doc.ToolsUsed, name)
		}
	}
	slices.Sort(doc.ToolsUsed)
	return json.Marshal(doc)
}

func decodeStateDoc(data []byte) (*stateDoc, error) {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	if doc.SchemaVersion != StateSchemaVersion {
		return nil, fmt.Errorf("%w: %q", ErrStateVersion, doc.SchemaVersion)
	}
	return &doc, nil
}

// UnmarshalRunState decodes a serialized state and binds agent names to the
// graph reachable from root through handoffs and agent tools.
func UnmarshalRunState(data []byte, root *Agent) (*RunState, error) {
	doc, err := decodeStateDoc(data)
	if err != nil {
		return nil, err
	}
	graph := agentGraph(root)
	current, ok := graph[doc.CurrentAgent]
	if !ok {
		return nil, &AgentMismatchError{Agent: doc.CurrentAgent}
	}

	st := &RunState{
		runID:           doc.RunID,
		status:          doc.Status,
		currentAgent:    current,
		currentTurn:     doc.CurrentTurn,
		maxTurns:        doc.MaxTurns,
		turnStart:       doc.TurnStart,
		originalInput:   doc.OriginalInput,
		items:           doc.Items,
		approvals:       doc.Approvals,
		interruptions:   doc.Interruptions,
		inputGuardrails: doc.InputGuardrail,
		outputGuardrail: doc.OutputGuardrail,
		lastResponseID:  doc.LastResponseID,
		usage:           doc.Usage,
		toolsUsed:       make(map[string]bool, len(doc.ToolsUsed)),
		finalOutput:     doc.FinalOutput,
		pendingOutput:   doc.PendingOutput,
	}
	if st.approvals == nil {
		st.approvals = make(map[string]ApprovalDecision)
	}
	for _, name := range doc.ToolsUsed {
		st.toolsUsed[name] = true
	}

	for _, it := range st.interruptions {
		a, ok := graph[it.Agent]
		if !ok {
			return nil, &AgentMismatchError{Agent: it.Agent}
		}
		if !offersTool(a, it.ToolName) {
			return nil, &AgentMismatchError{Agent: it.Agent, Tool: it.ToolName}
		}
	}
	for _, ri := range st.pendingCalls() {
		if !offersTool(current, ri.Item.Name) {
			return nil, &AgentMismatchError{Agent: current.Name, Tool: ri.Item.Name}
		}
	}
	return st, nil
}

// agentGraph indexes every agent reachable from root by name. The first
// agent found under a name wins.
func agentGraph(root *Agent) map[string]*Agent {
	graph := make(map[string]*Agent)
	if root == nil {
		return graph
	}
	queue := []*Agent{root}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if _, seen := graph[a.Name]; seen {
			continue
		}
		graph[a.Name] = a
		for _, h := range a.Handoffs {
			if h != nil && h.Agent != nil {
				queue = append(queue, h.Agent)
			}
		}
		for _, t := range a.Tools {
			if at, ok := t.(*agentTool); ok {
				queue = append(queue, at.agent)
			}
		}
	}
	return graph
}

// offersTool reports whether a can still serve a call named name. Agents
// with tool sources are trusted, since their tools are discovered at run time.
func offersTool(a *Agent, name string) bool {
	if len(a.ToolSources) > 0 {
		return true
	}
	for _, t := range a.Tools {
		if t.Definition().Name == name {
			return true
		}
	}
	for _, h := range a.Handoffs {
		if h != nil && h.ToolName == name {
			return true
		}
	}
	return false
}

// ApplyDecisions records approval decisions in a serialized state without
// binding it to an agent graph. Every call id must be a pending interruption.
func ApplyDecisions(data []byte, decisions map[string]ApprovalDecision) ([]byte, error) {
	doc, err := decodeStateDoc(data)
	if err != nil {
		return nil, err
	}
	pending := make(map[string]bool, len(doc.Interruptions))
	for _, it := range doc.Interruptions {
		pending[it.CallID] = true
	}
	for _, callID := range slices.Sorted(maps.Keys(decisions)) {
		d := decisions[callID]
		if d != DecisionApproved && d != DecisionRejected {
			return nil, userErrorf("invalid decision %q for call %q", d, callID)
		}
		if !pending[callID] {
			return nil, userErrorf("call %q is not a pending interruption", callID)
		}
		if doc.Approvals == nil {
			doc.Approvals = make(map[string]ApprovalDecision)
		}
		doc.Approvals[callID] = d
	}
	return json.Marshal(doc)
}

// StateSummary is a read-only digest of a serialized state.
type StateSummary struct {
	RunID              string                      `json:"run_id"`
	Status             RunStatus                   `json:"status"`
	CurrentAgent       string                      `json:"current_agent"`
	CurrentTurn        int                         `json:"current_turn"`
	MaxTurns           int                         `json:"max_turns"`
	Items              int                         `json:"items"`
	Interruptions      []ToolApprovalItem          `json:"interruptions,omitempty"`
	Approvals          map[string]ApprovalDecision `json:"approvals,omitempty"`
	LastResponseID     string                      `json:"last_response_id,omitempty"`
	Usage              types.TokenUsage            `json:"usage"`
	FinalOutput        json.RawMessage             `json:"final_output,omitempty"`
	PendingFinalOutput json.RawMessage             `json:"pending_final_output,omitempty"`
}

// InspectState summarizes a serialized state without an agent graph.
func InspectState(data []byte) (*StateSummary, error) {
	doc, err := decodeStateDoc(data)
	if err != nil {
		return nil, err
	}
	return &StateSummary{
		RunID:              doc.RunID,
		Status:             doc.Status,
		CurrentAgent:       doc.CurrentAgent,
		CurrentTurn:        doc.CurrentTurn,
		MaxTurns:           doc.MaxTurns,
		Items:              len(doc.Items),
		Interruptions:      doc.Interruptions,
		Approvals:          doc.Approvals,
		LastResponseID:     doc.LastResponseID,
		Usage:              doc.Usage,
		FinalOutput:        doc.FinalOutput,
		PendingFinalOutput: doc.PendingOutput,
	}, nil
}
