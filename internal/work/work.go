// Package work defines the data-transfer types that flow through the pool's
// queues, along with the boundary contract for the opaque protocol client
// that execution workers drive.
package work

import "context"

// Token is a correlation identifier linking a submitted request to its
// eventual response. Tokens are issued by a monotonic per-pool counter and
// are never reused within one pool instance.
type Token uint64

// Client is the opaque protocol client owned by a single execution worker.
// The pool calls Execute exactly once per dequeued request and relays any
// error verbatim; it performs no protocol-specific interpretation.
type Client interface {
	Execute(ctx context.Context, req any) (any, error)
}

// Factory constructs a ready-to-use client. It is invoked once per worker,
// inside the worker's own execution context, so that client resources such
// as open connections belong to the worker that uses them.
type Factory func() (Client, error)

// Request is a unit of work travelling from the façade to a worker.
// Tracked=false marks a fire-and-forget submission: no future is registered
// and no delivery is expected.
type Request struct {
	WorkID  Token
	Tracked bool
	Payload any
}

// Response is a completed unit of work travelling from a worker to the
// delivery manager. Err is non-nil exactly when IsFailure is set. Sentinel
// responses carry no result; they exist only to wake the delivery manager
// during shutdown.
type Response struct {
	WorkID    Token
	Tracked   bool
	IsFailure bool
	Payload   any
	Err       error
	Sentinel  bool
}

// NewRequest builds a tracked request under the given correlation token.
func NewRequest(token Token, payload any) Request {
	return Request{WorkID: token, Tracked: true, Payload: payload}
}

// NewSilentRequest builds a fire-and-forget request with no correlation token.
func NewSilentRequest(payload any) Request {
	return Request{Payload: payload}
}

// Success builds the response for a request whose client call returned a value.
func Success(req Request, payload any) Response {
	return Response{WorkID: req.WorkID, Tracked: req.Tracked, Payload: payload}
}

// Failure builds the response for a request whose client call failed.
func Failure(req Request, err error) Response {
	return Response{WorkID: req.WorkID, Tracked: req.Tracked, IsFailure: true, Err: err}
}

// SentinelResponse builds the shutdown wake-up injected into the output
// queue so the delivery manager's unbounded wait can observe the signal.
func SentinelResponse() Response {
	return Response{Sentinel: true}
}

// RemoteError is a request-execution failure that crossed a process
// isolation boundary. Only the message survives serialization; the original
// error value stays in the worker process.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
