package remote

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/zhouzirui/chatbox/internal/model/chat"
)

var (
	ErrMissingReply      = errors.New("response has no reply field")
	ErrUnsupportedFile   = errors.New("only pdf and txt files can be uploaded")
	ErrTransportDisabled = errors.New("transport is not configured")
)

// Error is a failed exchange with the conversational service.
type Error struct {
	Kind       chat.ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case chat.ErrorStatus:
		if e.Message != "" {
			return fmt.Sprintf("service responded %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("service responded %d", e.StatusCode)
	case chat.ErrorMalformed:
		return fmt.Sprintf("malformed service response: %v", e.Err)
	default:
		return fmt.Sprintf("service unreachable: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Errors that did not come from a transport are treated
// as transport failures.
func KindOf(err error) chat.ErrorKind {
	var remoteErr *Error
	if errors.As(err, &remoteErr) && remoteErr.Kind != "" {
		return remoteErr.Kind
	}
	return chat.ErrorTransport
}

func transportError(err error) *Error {
	return &Error{Kind: chat.ErrorTransport, Err: err}
}

func malformedError(err error) *Error {
	return &Error{Kind: chat.ErrorMalformed, Err: err}
}
