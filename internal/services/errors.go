package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Kind classifies pipeline failures. Every kind is terminal for the job that
// raised it; none is retried.
type Kind string

const (
	KindToolFailure          Kind = "tool_failure"
	KindDetectionFailure     Kind = "detection_failure"
	KindEmptySegmentsFailure Kind = "empty_segments_failure"
	KindIOFailure            Kind = "io_failure"
	KindInterrupted          Kind = "interrupted"
)

// Error is the tagged error returned by pipeline stages.
type Error struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Err       error
}

// NewError builds a tagged stage error.
func NewError(kind Kind, stage, operation, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Operation: operation, Message: strings.TrimSpace(message), Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, detail)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets callers match tagged errors against the generic markers.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrExternalTool:
		return e.Kind == KindToolFailure || e.Kind == KindDetectionFailure
	case ErrTransient:
		return e.Kind == KindIOFailure || e.Kind == KindInterrupted
	}
	return false
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is the flattened view of a stage error used for logging and
// persisted diagnostics.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts the tagged fields from err. Untagged errors report
// KindIOFailure with the error text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return ErrorDetails{
			Kind:      tagged.Kind,
			Stage:     tagged.Stage,
			Operation: tagged.Operation,
			Message:   tagged.Message,
			Cause:     tagged.Err,
		}
	}
	return ErrorDetails{Kind: KindIOFailure, Message: strings.TrimSpace(err.Error()), Cause: err}
}

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return "", false
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
