package snapshot

import (
	"errors"
	"fmt"
)

// ErrorKind is a machine-readable failure code.
type ErrorKind string

const (
	KindConfigMissing       ErrorKind = "CONFIG_MISSING"
	KindConfigInvalid       ErrorKind = "CONFIG_INVALID"
	KindDocumentUnavailable ErrorKind = "DOCUMENT_UNAVAILABLE"
	KindPageOutOfRange      ErrorKind = "PAGE_OUT_OF_RANGE"
	KindRenderFailed        ErrorKind = "RENDER_FAILED"
	KindEncodeFailed        ErrorKind = "ENCODE_FAILED"
	KindWriteFailed         ErrorKind = "WRITE_FAILED"
	KindCropFailed          ErrorKind = "CROP_FAILED"
)

// Error is a snapshot failure with its kind and a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
