// Package mocks provides scripted test doubles for the llm contracts.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/agentrun/llm"
	"github.com/BaSui01/agentrun/types"
)

// Step is one scripted model turn: a response or an error.
type Step struct {
	Response *llm.ChatResponse
	Err      error
}

// Provider is a scripted llm.Provider. Each call consumes the next Step;
// once the script runs out the last step repeats.
type Provider struct {
	mu sync.Mutex

	name           string
	steps          []Step
	next           int
	defaults       llm.ModelSettings
	chunkSize      int
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	requests []*llm.ChatRequest
	seq      atomic.Int64
}

// NewProvider creates an empty scripted provider.
func NewProvider() *Provider {
	return &Provider{name: "mock", chunkSize: 4}
}

// WithName sets the provider name.
func (p *Provider) WithName(name string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
	return p
}

// Reply appends a plain-text response.
func (p *Provider) Reply(text string) *Provider {
	return p.Then(Step{Response: Text(text)})
}

// CallTools appends a response requesting the given calls.
func (p *Provider) CallTools(calls ...types.ToolCall) *Provider {
	return p.Then(Step{Response: Calls(calls...)})
}

// Fail appends an error step.
func (p *Provider) Fail(err error) *Provider {
	return p.Then(Step{Err: err})
}

// Then appends an arbitrary step.
func (p *Provider) Then(s Step) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, s)
	return p
}

// WithDefaults sets the provider default settings.
func (p *Provider) WithDefaults(s llm.ModelSettings) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults = s
	return p
}

// WithChunkSize sets how many bytes each streamed text delta carries.
func (p *Provider) WithChunkSize(n int) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > 0 {
		p.chunkSize = n
	}
	return p
}

// WithCompletionFunc replaces the script with fn.
func (p *Provider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completionFunc = fn
	return p
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// DefaultSettings implements llm.SettingsDefaulter.
func (p *Provider) DefaultSettings() llm.ModelSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaults
}

// Completion implements llm.Provider.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.requests = append(p.requests, cloneRequest(req))
	fn := p.completionFunc
	var step Step
	if fn == nil {
		if len(p.steps) == 0 {
			p.mu.Unlock()
			return nil, fmt.Errorf("mock provider: no scripted response")
		}
		idx := p.next
		if idx >= len(p.steps) {
			idx = len(p.steps) - 1
		} else {
			p.next++
		}
		step = p.steps[idx]
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	resp.Message.ToolCalls = append([]types.ToolCall(nil), step.Response.Message.ToolCalls...)
	if resp.ID == "" {
		resp.ID = fmt.Sprintf("resp_%d", p.seq.Add(1))
	}
	if resp.Provider == "" {
		resp.Provider = p.Name()
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return &resp, nil
}

// Stream implements llm.Provider by chunking the scripted response.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	resp, err := p.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	size := p.chunkSize
	p.mu.Unlock()

	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		send := func(ev llm.StreamEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if r := resp.Message.Reasoning; r != "" {
			if !send(llm.StreamEvent{Type: llm.StreamEventReasoningDelta, Delta: r}) {
				return
			}
		}
		content := resp.Message.Content
		for i := 0; i < len(content); i += size {
			end := min(i+size, len(content))
			if !send(llm.StreamEvent{Type: llm.StreamEventTextDelta, Delta: content[i:end]}) {
				return
			}
		}
		for i := range resp.Message.ToolCalls {
			call := resp.Message.ToolCalls[i]
			if !send(llm.StreamEvent{Type: llm.StreamEventToolCall, ToolCall: &call}) {
				return
			}
		}
		send(llm.StreamEvent{Type: llm.StreamEventCompleted, Response: resp})
	}()
	return ch, nil
}

// Calls returns the number of model invocations so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns copies of every request received.
func (p *Provider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// LastRequest returns the most recent request, or nil.
func (p *Provider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

func cloneRequest(req *llm.ChatRequest) *llm.ChatRequest {
	c := *req
	c.Messages = append([]types.Message(nil), req.Messages...)
	c.Tools = append([]types.ToolSchema(nil), req.Tools...)
	return &c
}

// Text builds a plain assistant response.
func Text(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message: types.Message{Role: types.RoleAssistant, Content: content},
		Usage:   types.TokenUsage{Requests: 1, PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// Calls builds an assistant response requesting the given tool calls.
func Calls(calls ...types.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message: types.Message{Role: types.RoleAssistant, ToolCalls: calls},
		Usage:   types.TokenUsage{Requests: 1, PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// ToolCall builds a tool call with JSON arguments.
func ToolCall(id, name, args string) types.ToolCall {
	if args == "" {
		args = "{}"
	}
	return types.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}
