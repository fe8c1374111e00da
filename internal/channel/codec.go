package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Error codes understood by every transport.
const (
	CodeBadEnvelope  = "Bad Envelope"  // request could not be decoded
	CodeBadArguments = "Bad Arguments" // handler rejected the arguments
)

// Request is the wire form of a MethodCall.
type Request struct {
	ID      string `json:"id,omitempty"`
	Channel string `json:"channel,omitempty"`
	Method  string `json:"method"`
	Args    any    `json:"args,omitempty"`
}

// Call returns the MethodCall carried by r.
func (r Request) Call() MethodCall {
	return MethodCall{Method: r.Method, Arguments: r.Args}
}

// Response is the wire form of a MethodResult answer. Exactly one of Result,
// Error or NotImplemented describes the outcome.
type Response struct {
	ID             string     `json:"id,omitempty"`
	Result         any        `json:"result,omitempty"`
	Error          *ErrorBody `json:"error,omitempty"`
	NotImplemented bool       `json:"not_implemented,omitempty"`
}

// Status classifies the response.
func (r Response) Status() Status {
	switch {
	case r.Error != nil:
		return StatusError
	case r.NotImplemented:
		return StatusNotImplemented
	default:
		return StatusSuccess
	}
}

// MarshalJSON always emits the "result" key for successful responses, even
// when the value is null.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Status() != StatusSuccess {
		type plain Response
		return json.Marshal(plain(r))
	}

	return json.Marshal(struct {
		ID     string `json:"id,omitempty"`
		Result any    `json:"result"`
	}{ID: r.ID, Result: r.Result})
}

// DecodeRequest parses one request envelope. Numbers inside args are kept as
// json.Number so that integers survive the round trip.
func DecodeRequest(data []byte) (Request, error) {
	var req Request

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if req.Method == "" {
		return Request{}, fmt.Errorf("decode request: missing method")
	}

	return req, nil
}

// DecodeArgs parses a bare JSON argument document. Empty input means no
// arguments.
func DecodeArgs(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var args any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return args, nil
}

// EncodeResponse renders resp as a single line of JSON.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return append(data, '\n'), nil
}

// BadEnvelope builds the response sent for an undecodable request.
func BadEnvelope(id string, err error) Response {
	return Response{
		ID: id,
		Error: &ErrorBody{
			Code:    CodeBadEnvelope,
			Message: err.Error(),
		},
	}
}
