package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/types"
)

// Frame types.
const (
	FrameEvent  = "event"
	FrameResult = "result"
	FrameError  = "error"
)

// StartRequest is the first frame a client sends.
type StartRequest struct {
	Input   string          `json:"input"`
	RunID   string          `json:"run_id,omitempty"`
	Agent   string          `json:"agent,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Frame is one server message.
type Frame struct {
	Type   string             `json:"type"`
	Seq    int                `json:"seq"`
	Event  *agent.StreamEvent `json:"event,omitempty"`
	Result *ResultFrame       `json:"result,omitempty"`
	Error  *ErrorFrame        `json:"error,omitempty"`
}

// ResultFrame summarizes a completed or suspended run.
type ResultFrame struct {
	RunID         string                   `json:"run_id"`
	Status        agent.RunStatus          `json:"status"`
	LastAgent     string                   `json:"last_agent,omitempty"`
	FinalOutput   any                      `json:"final_output,omitempty"`
	Interruptions []agent.ToolApprovalItem `json:"interruptions,omitempty"`
	Usage         types.TokenUsage         `json:"usage"`
	State         json.RawMessage          `json:"state,omitempty"`
}

// ErrorFrame reports a failed run.
type ErrorFrame struct {
	Kind    agent.ErrorKind `json:"kind,omitempty"`
	Message string          `json:"message"`
	State   json.RawMessage `json:"state,omitempty"`
}

// StartFunc starts a streamed run for a client request.
type StartFunc func(ctx context.Context, req StartRequest) (*agent.RunResultStreaming, error)

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAcceptOptions sets the websocket accept options, e.g. allowed origins.
func WithAcceptOptions(opts *websocket.AcceptOptions) HandlerOption {
	return func(h *Handler) { h.accept = opts }
}

// WithStartTimeout bounds the wait for the client's StartRequest.
func WithStartTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.startTimeout = d }
}

// WithStateInResult controls whether result and error frames carry the
// serialized RunState. Defaults to true.
func WithStateInResult(include bool) HandlerOption {
	return func(h *Handler) { h.includeState = include }
}

// Handler is an http.Handler relaying streamed runs.
type Handler struct {
	start        StartFunc
	accept       *websocket.AcceptOptions
	startTimeout time.Duration
	includeState bool
	logger       *zap.Logger
}

// NewHandler creates a relay handler.
func NewHandler(start StartFunc, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		start:        start,
		startTimeout: 10 * time.Second,
		includeState: true,
		logger:       logger.With(zap.String("component", "stream_relay")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	req, err := h.readStart(ctx, conn)
	if err != nil {
		h.logger.Debug("invalid start request", zap.Error(err))
		conn.Close(websocket.StatusPolicyViolation, "invalid start request")
		return
	}

	s := &session{conn: conn}
	stream, err := h.start(ctx, req)
	if err != nil {
		_ = s.write(ctx, Frame{Type: FrameError, Error: h.errorFrame(err)})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	// The client sends nothing after the start frame; a read error means it
	// went away, which cancels the run.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	if err := h.relay(ctx, s, stream); err != nil {
		h.logger.Debug("stream relay stopped", zap.Error(err))
		stream.Cancel()
		_, _ = stream.Wait()
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) readStart(ctx context.Context, conn *websocket.Conn) (StartRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, h.startTimeout)
	defer cancel()
	var req StartRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		return req, err
	}
	if req.Input == "" {
		return req, errors.New("input is required")
	}
	return req, nil
}

func (h *Handler) relay(ctx context.Context, s *session, stream *agent.RunResultStreaming) error {
	for ev := range stream.Events() {
		if err := s.write(ctx, Frame{Type: FrameEvent, Event: &ev}); err != nil {
			return err
		}
	}
	res, err := stream.Wait()
	if err != nil {
		return s.write(ctx, Frame{Type: FrameError, Error: h.errorFrame(err)})
	}
	return s.write(ctx, Frame{Type: FrameResult, Result: h.resultFrame(res)})
}

func (h *Handler) resultFrame(res *agent.RunResult) *ResultFrame {
	out := &ResultFrame{
		FinalOutput:   res.FinalOutput,
		Interruptions: res.Interruptions,
		Usage:         res.Usage,
	}
	if res.LastAgent != nil {
		out.LastAgent = res.LastAgent.Name
	}
	if res.State != nil {
		out.RunID = res.State.RunID()
		out.Status = res.State.Status()
		out.State = h.encodeState(res.State)
	}
	return out
}

func (h *Handler) errorFrame(err error) *ErrorFrame {
	out := &ErrorFrame{Kind: agent.KindOf(err), Message: err.Error()}
	if st := agent.StateOf(err); st != nil {
		out.State = h.encodeState(st)
	}
	return out
}

func (h *Handler) encodeState(st *agent.RunState) json.RawMessage {
	if !h.includeState {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		h.logger.Warn("failed to encode run state", zap.Error(err))
		return nil
	}
	return data
}

// session serializes writes and numbers frames.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
	seq  int
}

func (s *session) write(ctx context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	f.Seq = s.seq
	if err := wsjson.Write(ctx, s.conn, f); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Client consumes a relayed run.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a relay and sends the start request.
func Dial(ctx context.Context, url string, req StartRequest) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("send start request: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Next returns the next frame. After a result or error frame the server
// closes the connection and Next returns an error.
func (c *Client) Next(ctx context.Context) (*Frame, error) {
	var f Frame
	if err := wsjson.Read(ctx, c.conn, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Collect reads frames until the terminal frame and returns all of them.
func (c *Client) Collect(ctx context.Context) ([]Frame, error) {
	var frames []Frame
	for {
		f, err := c.Next(ctx)
		if err != nil {
			return frames, err
		}
		frames = append(frames, *f)
		if f.Type != FrameEvent {
			return frames, nil
		}
	}
}

// Close closes the connection, cancelling the run if it is still going.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
