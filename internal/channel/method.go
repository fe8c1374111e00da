// Package channel carries named method calls between a host application and
// the handlers registered on a Messenger.
package channel

import "sync"

// MethodCall is a single inbound call: a method name and optional arguments.
type MethodCall struct {
	Method    string
	Arguments any
}

// MethodResult receives the answer to a MethodCall. Only the first answer
// counts.
type MethodResult interface {
	Success(result any)
	Error(code, message string, details any)
	NotImplemented()
}

// Handler answers calls arriving on one channel.
type Handler func(call MethodCall, result MethodResult)

// ErrorBody is the error half of a Response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Status classifies a Response.
type Status int

const (
	StatusNotImplemented Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "not_implemented"
	}
}

// recorder is the MethodResult handed to handlers by the Messenger. It
// captures the first answer and ignores the rest.
type recorder struct {
	once     sync.Once
	answered bool
	status   Status
	result   any
	err      *ErrorBody
}

func (r *recorder) Success(result any) {
	r.once.Do(func() {
		r.answered = true
		r.status = StatusSuccess
		r.result = result
	})
}

func (r *recorder) Error(code, message string, details any) {
	r.once.Do(func() {
		r.answered = true
		r.status = StatusError
		r.err = &ErrorBody{Code: code, Message: message, Details: details}
	})
}

func (r *recorder) NotImplemented() {
	r.once.Do(func() {
		r.answered = true
		r.status = StatusNotImplemented
	})
}
