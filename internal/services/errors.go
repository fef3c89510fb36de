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
	ErrCancelled     = errors.New("cancelled")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is the user-facing summary of a classified error.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details classifies err by its marker and returns a short description suitable
// for flash messages and CLI diagnostics.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind := "error"
	switch {
	case errors.Is(err, ErrExternalTool):
		kind = "external_tool"
	case errors.Is(err, ErrValidation):
		kind = "validation"
	case errors.Is(err, ErrConfiguration):
		kind = "configuration"
	case errors.Is(err, ErrNotFound):
		kind = "not_found"
	case errors.Is(err, ErrCancelled):
		kind = "cancelled"
	}
	return ErrorDetails{Kind: kind, Message: strings.TrimSpace(err.Error())}
}

// IsCancellation reports whether err represents a deliberate stop by the user
// rather than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled)
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
