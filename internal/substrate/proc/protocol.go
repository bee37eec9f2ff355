package proc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kpeterse/crew/internal/work"
)

// MaxFrameSize is the maximum allowed frame payload (16 MiB).
const MaxFrameSize = 16 << 20

// Frame types exchanged between the host and a worker subprocess.
const (
	// FrameTypeHello is sent child→host once the client has been constructed.
	FrameTypeHello = "hello"
	// FrameTypeRequest carries one work request host→child.
	FrameTypeRequest = "request"
	// FrameTypeResponse carries one work response child→host.
	FrameTypeResponse = "response"
	// FrameTypeShutdown tells the child to drain and exit.
	FrameTypeShutdown = "shutdown"
)

// Frame is the envelope for all host↔child messages.
type Frame struct {
	Type     string         `json:"type"`
	Request  *RequestFrame  `json:"request,omitempty"`
	Response *ResponseFrame `json:"response,omitempty"`
}

// RequestFrame is the wire form of work.Request. Payloads round-trip through
// JSON at the isolation boundary.
type RequestFrame struct {
	WorkID  uint64          `json:"work_id"`
	Tracked bool            `json:"tracked"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ResponseFrame is the wire form of work.Response. A failure cause crosses
// the boundary as its message only.
type ResponseFrame struct {
	WorkID    uint64          `json:"work_id"`
	Tracked   bool            `json:"tracked"`
	IsFailure bool            `json:"is_failure"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Failure   string          `json:"failure,omitempty"`
}

// WriteFrame writes a length-prefixed JSON frame to w.
// The format is a 4-byte big-endian length followed by the JSON payload.
func WriteFrame(w io.Writer, f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	length := uint32(len(data))
	if err := binary.Write(w, binary.BigEndian, length); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// ReadFrame reads one length-prefixed JSON frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d", length, MaxFrameSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	f := &Frame{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}

	return f, nil
}

// EncodeRequest converts an in-memory request into its wire frame.
func EncodeRequest(req work.Request) (*Frame, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode request payload: %w", err)
	}
	return &Frame{
		Type: FrameTypeRequest,
		Request: &RequestFrame{
			WorkID:  uint64(req.WorkID),
			Tracked: req.Tracked,
			Payload: payload,
		},
	}, nil
}

// DecodeRequest converts a wire frame back into an in-memory request.
func DecodeRequest(rf *RequestFrame) (work.Request, error) {
	req := work.Request{
		WorkID:  work.Token(rf.WorkID),
		Tracked: rf.Tracked,
	}
	if len(rf.Payload) > 0 {
		if err := json.Unmarshal(rf.Payload, &req.Payload); err != nil {
			return work.Request{}, fmt.Errorf("decode request payload: %w", err)
		}
	}
	return req, nil
}

// EncodeResponse converts an in-memory response into its wire frame.
func EncodeResponse(resp work.Response) (*Frame, error) {
	rf := &ResponseFrame{
		WorkID:    uint64(resp.WorkID),
		Tracked:   resp.Tracked,
		IsFailure: resp.IsFailure,
	}
	if resp.Err != nil {
		rf.Failure = resp.Err.Error()
	}
	if !resp.IsFailure {
		payload, err := json.Marshal(resp.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode response payload: %w", err)
		}
		rf.Payload = payload
	}
	return &Frame{Type: FrameTypeResponse, Response: rf}, nil
}

// DecodeResponse converts a wire frame back into an in-memory response,
// rehydrating a failure cause as a work.RemoteError.
func DecodeResponse(rf *ResponseFrame) (work.Response, error) {
	resp := work.Response{
		WorkID:    work.Token(rf.WorkID),
		Tracked:   rf.Tracked,
		IsFailure: rf.IsFailure,
	}
	if rf.IsFailure {
		msg := rf.Failure
		if msg == "" {
			msg = "unknown remote failure"
		}
		resp.Err = &work.RemoteError{Message: msg}
		return resp, nil
	}
	if len(rf.Payload) > 0 {
		if err := json.Unmarshal(rf.Payload, &resp.Payload); err != nil {
			return work.Response{}, fmt.Errorf("decode response payload: %w", err)
		}
	}
	return resp, nil
}
