// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-net.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrResolution         = errors.New("address resolution failed")
	ErrConnect            = errors.New("connect failed")
	ErrRead               = errors.New("read failed")
	ErrSend               = errors.New("send failed")
	ErrSocketClosed       = errors.New("socket is closed")
	ErrTransferSubmission = errors.New("transfer submission failed")
	ErrHTTPStatus         = errors.New("unexpected http status")
	ErrResponseTooLarge   = errors.New("response exceeds size limit")
	ErrBackendInit        = errors.New("transfer backend init failed")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("resource not found")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeResolution
	ErrCodeConnect
	ErrCodeRead
	ErrCodeSend
	ErrCodeTransferSubmission
	ErrCodeHTTPStatus
	ErrCodeResponseTooLarge
	ErrCodeBackendInit
	ErrCodeInvalidArgument
	ErrCodeNotFound
	ErrCodeInternal
)

var codeNames = map[ErrorCode]string{
	ErrCodeOK:                 "ok",
	ErrCodeResolution:         "resolution",
	ErrCodeConnect:            "connect",
	ErrCodeRead:               "read",
	ErrCodeSend:               "send",
	ErrCodeTransferSubmission: "transfer_submission",
	ErrCodeHTTPStatus:         "http_status",
	ErrCodeResponseTooLarge:   "response_too_large",
	ErrCodeBackendInit:        "backend_init",
	ErrCodeInvalidArgument:    "invalid_argument",
	ErrCodeNotFound:           "not_found",
	ErrCodeInternal:           "internal",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

var codeSentinels = map[ErrorCode]error{
	ErrCodeResolution:         ErrResolution,
	ErrCodeConnect:            ErrConnect,
	ErrCodeRead:               ErrRead,
	ErrCodeSend:               ErrSend,
	ErrCodeTransferSubmission: ErrTransferSubmission,
	ErrCodeHTTPStatus:         ErrHTTPStatus,
	ErrCodeResponseTooLarge:   ErrResponseTooLarge,
	ErrCodeBackendInit:        ErrBackendInit,
	ErrCodeInvalidArgument:    ErrInvalidArgument,
	ErrCodeNotFound:           ErrNotFound,
}

// Error represents a structured error with code and context.
// Unwrap yields the sentinel for Code and, when set, the Cause, so both
// errors.Is(err, api.ErrRead) and errors.Is(err, ErrSocketClosed) work.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the code sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := codeSentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithOp records the operation that failed.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode of err, or ErrCodeInternal if err does not
// carry one.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	for code, sentinel := range codeSentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrCodeInternal
}
