// Package streaming relays streamed runs over WebSocket.
//
// A client opens a connection and sends one StartRequest frame. The Handler
// starts the run through its StartFunc and writes every agent.StreamEvent as
// an "event" frame, followed by exactly one "result" or "error" frame. Closing
// the connection cancels the run.
//
//	h := streaming.NewHandler(func(ctx context.Context, req streaming.StartRequest) (*agent.RunResultStreaming, error) {
//		return runner.RunStreamed(ctx, triage, agent.Text(req.Input))
//	}, logger)
//	mux.Handle("/v1/stream", h)
package streaming
