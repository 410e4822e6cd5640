package agent

import (
	"context"
	"sync"

	"github.com/BaSui01/agentrun/llm"
)

// StreamEventType discriminates stream events.
type StreamEventType string

const (
	// StreamRawModel carries a provider delta as it arrives.
	StreamRawModel StreamEventType = "raw_model_event"
	// StreamRunItem announces an item appended to the history.
	StreamRunItem StreamEventType = "run_item"
	// StreamAgentUpdated announces the active agent.
	StreamAgentUpdated StreamEventType = "agent_updated"
)

// Run item event names.
const (
	EventMessageOutputCreated  = "message_output_created"
	EventToolCalled            = "tool_called"
	EventToolOutput            = "tool_output"
	EventHandoffRequested      = "handoff_requested"
	EventHandoffOccurred       = "handoff_occurred"
	EventToolApprovalRequested = "tool_approval_requested"
	EventReasoningItemCreated  = "reasoning_item_created"
)

// StreamEvent is one event of a streamed run.
type StreamEvent struct {
	Type StreamEventType `json:"type"`
	// Name is the run item event name.
	Name      string           `json:"name,omitempty"`
	Item      *RunItem         `json:"item,omitempty"`
	Raw       *llm.StreamEvent `json:"raw,omitempty"`
	Agent     *Agent           `json:"-"`
	AgentName string           `json:"agent,omitempty"`
}

func eventNameFor(it Item) string {
	switch it.Type {
	case ItemAssistantMessage:
		return EventMessageOutputCreated
	case ItemToolCall:
		return EventToolCalled
	case ItemToolCallOutput:
		return EventToolOutput
	case ItemHandoffCall:
		return EventHandoffRequested
	case ItemHandoffOutput:
		return EventHandoffOccurred
	case ItemToolApproval:
		return EventToolApprovalRequested
	case ItemReasoning:
		return EventReasoningItemCreated
	}
	return string(it.Type)
}

const streamBuffer = 64

// RunResultStreaming is a run in progress. Events are delivered in order;
// the channel closes when the loop reaches a terminal or suspended state.
type RunResultStreaming struct {
	events chan StreamEvent
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	result *RunResult
	err    error
}

func newRunResultStreaming(cancel context.CancelFunc) *RunResultStreaming {
	return &RunResultStreaming{
		events: make(chan StreamEvent, streamBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Events returns the event channel.
func (s *RunResultStreaming) Events() <-chan StreamEvent { return s.events }

// Done is closed once the result is available.
func (s *RunResultStreaming) Done() <-chan struct{} { return s.done }

// Cancel stops the run at its next cancellation point.
func (s *RunResultStreaming) Cancel() { s.cancel() }

// Wait discards unread events and returns the outcome of the run.
func (s *RunResultStreaming) Wait() (*RunResult, error) {
	for range s.events {
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *RunResultStreaming) emit(ctx context.Context, ev StreamEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *RunResultStreaming) finish(res *RunResult, err error) {
	s.mu.Lock()
	s.result, s.err = res, err
	s.mu.Unlock()
	close(s.events)
	close(s.done)
}
