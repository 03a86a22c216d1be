package probe

import "fmt"

// Kind classifies why a step failed.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindHTTPStatus Kind = "http_status"
	KindMalformed  Kind = "malformed_response"
	KindLocalIO    Kind = "local_io"
)

// Error is returned by every failing probe operation. Body holds the raw
// response text when the failure came from an HTTP exchange that produced one.
type Error struct {
	Kind       Kind
	Step       string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Err: err}
}
