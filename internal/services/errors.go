package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind classifies a wrapped service error for logging and job records.
type ErrorKind string

const (
	ErrorKindExternalTool  ErrorKind = "external_tool"
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindTransient     ErrorKind = "transient"
)

// ServiceError carries stage context alongside a sentinel marker and the
// underlying cause.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		marker = ErrTimeout
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a stage error used by job records and
// structured logs.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts classification and user-facing text from err. Errors that
// were not produced by Wrap are reported as transient with their raw text.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: kindFor(err), Cause: err}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		details.Stage = svcErr.Stage
		details.Operation = svcErr.Operation
		details.Cause = svcErr.Cause
		msg := buildDetail(svcErr.Stage, svcErr.Operation, svcErr.Message)
		if svcErr.Cause != nil {
			msg = msg + ": " + strings.TrimSpace(svcErr.Cause.Error())
		}
		details.Message = msg
	} else {
		details.Message = strings.TrimSpace(err.Error())
	}
	details.Hint = hintFor(details.Kind)
	return details
}

func kindFor(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrConfiguration):
		return ErrorKindConfiguration
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrExternalTool):
		return ErrorKindExternalTool
	default:
		return ErrorKindTransient
	}
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case ErrorKindTimeout:
		return "raise pipeline.process_timeout_seconds or check the tool is not hung"
	case ErrorKindValidation:
		return "check the submitted audio and parameters"
	case ErrorKindConfiguration:
		return "check the songdub config file"
	case ErrorKindNotFound:
		return "verify the referenced file or binary exists"
	case ErrorKindExternalTool:
		return "inspect the tool output in the job log"
	default:
		return "submit a new job to retry"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
