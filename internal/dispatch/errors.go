package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"

	"github.com/nerrad567/rpihome-core/internal/guard"
	"github.com/nerrad567/rpihome-core/internal/hardware"
)

// LogicError is a domain failure with a stable numeric code.
// The codes are part of the wire contract and never change meaning.
type LogicError int32

// Logic error codes.
const (
	InvalidProtectedKey           LogicError = 1
	CameraNotFound                LogicError = 2
	CommandMethodIDNotSet         LogicError = 3
	CommandInputNotSet            LogicError = 4
	CommandUnsupportedContentType LogicError = 5
	CommandSocketAddressNotFound  LogicError = 6
)

// Code returns the wire code.
func (e LogicError) Code() int32 {
	return int32(e)
}

func (e LogicError) Error() string {
	switch e {
	case InvalidProtectedKey:
		return "invalid protected key"
	case CameraNotFound:
		return "camera was not found"
	case CommandMethodIDNotSet:
		return "command method is not set"
	case CommandInputNotSet:
		return "command input is not set"
	case CommandUnsupportedContentType:
		return "command has unsupported content type"
	case CommandSocketAddressNotFound:
		return "command socket address not found"
	default:
		return fmt.Sprintf("logic error %d", int32(e))
	}
}

// Kind classifies a request failure.
type Kind uint8

// Error kinds.
const (
	KindInternal Kind = iota
	KindJSON
	KindIO
	KindLogic
	KindTransport
	KindCamera
	KindGPIO
	KindPWM
	KindHeaderParse
	KindPoisoned
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindIO:
		return "io"
	case KindLogic:
		return "logic"
	case KindTransport:
		return "transport"
	case KindCamera:
		return "camera"
	case KindGPIO:
		return "gpio"
	case KindPWM:
		return "pwm"
	case KindHeaderParse:
		return "header_parse"
	case KindPoisoned:
		return "poisoned"
	default:
		return "internal"
	}
}

// Error is a classified request failure.
type Error struct {
	Kind Kind

	// Logic is set when Kind is KindLogic.
	Logic LogicError

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "dispatch: " + e.Kind.String()
	}
	return fmt.Sprintf("dispatch: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MissingFieldError reports a required input field absent from the payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// JSONError marks err as a payload decoding failure.
func JSONError(err error) *Error {
	return &Error{Kind: KindJSON, Err: err}
}

// HeaderError marks err as an unreadable header value.
func HeaderError(err error) *Error {
	return &Error{Kind: KindHeaderParse, Err: err}
}

// IOError marks err as an I/O failure.
func IOError(err error) *Error {
	return &Error{Kind: KindIO, Err: err}
}

// Classify folds any error into the taxonomy. It returns nil for nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return de
	}

	var logic LogicError
	if errors.As(err, &logic) {
		return &Error{Kind: KindLogic, Logic: logic, Err: err}
	}
	if errors.Is(err, hardware.ErrCameraNotFound) {
		return &Error{Kind: KindLogic, Logic: CameraNotFound, Err: err}
	}

	var (
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		missingErr *MissingFieldError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &missingErr) {
		return &Error{Kind: KindJSON, Err: err}
	}

	switch {
	case errors.Is(err, guard.ErrPoisoned):
		return &Error{Kind: KindPoisoned, Err: err}
	case errors.Is(err, hardware.ErrCamera):
		return &Error{Kind: KindCamera, Err: err}
	case errors.Is(err, hardware.ErrGPIO):
		return &Error{Kind: KindGPIO, Err: err}
	case errors.Is(err, hardware.ErrPWM):
		return &Error{Kind: KindPWM, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: KindTransport, Err: err}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindIO, Err: err}
	}

	return &Error{Kind: KindInternal, Err: err}
}

// errorStatus returns the HTTP status and plain-text body for a non-logic kind.
func errorStatus(k Kind) (int, string) {
	switch k {
	case KindJSON:
		return 400, "Invalid JSON"
	case KindHeaderParse:
		return 400, "Invalid header"
	case KindIO, KindTransport:
		return 500, "I/O error"
	case KindCamera, KindGPIO, KindPWM:
		return 500, "Hardware error"
	default:
		return 500, "Internal server error"
	}
}
