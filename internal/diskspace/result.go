package diskspace

import (
	"fmt"

	"github.com/timfallmk/disk-space-bridge/internal/channel"
)

// Error codes reported to the host alongside an error message.
const (
	CodeBadArguments = channel.CodeBadArguments
	CodePlatform     = "Error"
)

// Argument validation messages.
const (
	MsgExpectedMap    = "Expected string"
	MsgExpectedPath   = "Expected 'path' argument"
	MsgExpectedString = "Expected string in Map entry"
)

// MsgDesktopFolder is reported when the default volume cannot be located.
const MsgDesktopFolder = "Failed to get Desktop folder location"

// ArgumentError reports malformed or missing caller arguments. It is always
// detected before any OS call is made.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("bad arguments: %s", e.Message)
}

// PlatformError reports a failed OS call. Code is the native error code when
// one is known.
type PlatformError struct {
	Code    uint32
	Message string
	Err     error
}

func (e *PlatformError) Error() string {
	return e.Message
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// ResultKind tags the variant held by a Result.
type ResultKind int

const (
	KindNotImplemented ResultKind = iota
	KindMegabytes
	KindVersion
	KindError
)

func (k ResultKind) String() string {
	switch k {
	case KindMegabytes:
		return "megabytes"
	case KindVersion:
		return "version"
	case KindError:
		return "error"
	default:
		return "not_implemented"
	}
}

// Result is the outcome of a single adapter call. The zero value is the
// NotImplemented outcome.
type Result struct {
	Kind      ResultKind
	Megabytes float64
	Version   string
	Err       error
}

// Megabytes wraps a numeric megabyte value.
func Megabytes(v float64) Result {
	return Result{Kind: KindMegabytes, Megabytes: v}
}

// VersionString wraps a platform version string.
func VersionString(v string) Result {
	return Result{Kind: KindVersion, Version: v}
}

// Failure wraps an *ArgumentError or *PlatformError.
func Failure(err error) Result {
	return Result{Kind: KindError, Err: err}
}

// NotImplemented signals an operation the adapter does not know.
func NotImplemented() Result {
	return Result{Kind: KindNotImplemented}
}

// Value returns the success payload, or nil for error and not-implemented results.
func (r Result) Value() any {
	switch r.Kind {
	case KindMegabytes:
		return r.Megabytes
	case KindVersion:
		return r.Version
	default:
		return nil
	}
}

// ErrorCode returns the host-facing error code and message of an error result.
func (r Result) ErrorCode() (code, message string) {
	switch e := r.Err.(type) {
	case *ArgumentError:
		return CodeBadArguments, e.Message
	case *PlatformError:
		return CodePlatform, e.Message
	case nil:
		return "", ""
	default:
		return CodePlatform, e.Error()
	}
}

// Outcome is a short label used for logs and metrics.
func (r Result) Outcome() string {
	if r.Kind != KindError {
		return r.Kind.String()
	}
	if _, ok := r.Err.(*ArgumentError); ok {
		return "bad_arguments"
	}
	return "platform_error"
}
