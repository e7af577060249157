package procerr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"syscall"
)

// Kind partitions failures into the recovery taxonomy.
type Kind string

const (
	KindNetwork       Kind = "NETWORK"
	KindAPI           Kind = "API"
	KindFileIO        Kind = "FILE_IO"
	KindOCR           Kind = "OCR"
	KindParsing       Kind = "PARSING"
	KindValidation    Kind = "VALIDATION"
	KindConfiguration Kind = "CONFIGURATION"
	KindSystem        Kind = "SYSTEM"
)

// Severity ranks an error for reporting; user-facing messages are derived
// from severity, never from raw error text.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// ProcError is the structured error propagated across component boundaries.
type ProcError struct {
	Kind     Kind
	Severity Severity
	Message  string
	Context  map[string]string
	Cause    error
}

func (e *ProcError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProcError) Unwrap() error {
	return e.Cause
}

// New builds a ProcError with the kind's default severity.
func New(kind Kind, message string, cause error) *ProcError {
	return &ProcError{
		Kind:     kind,
		Severity: defaultSeverity[kind],
		Message:  message,
		Cause:    cause,
	}
}

// WithContext attaches a key-value pair for diagnostics.
func (e *ProcError) WithContext(key, value string) *ProcError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

var defaultSeverity = map[Kind]Severity{
	KindNetwork:       SeverityMedium,
	KindAPI:           SeverityHigh,
	KindFileIO:        SeverityMedium,
	KindOCR:           SeverityLow,
	KindParsing:       SeverityLow,
	KindValidation:    SeverityLow,
	KindConfiguration: SeverityCritical,
	KindSystem:        SeverityHigh,
}

// UserMessage derives the operator-facing message from severity.
func (e *ProcError) UserMessage() string {
	switch e.Severity {
	case SeverityCritical:
		return "a critical failure stopped processing; check configuration and logs"
	case SeverityHigh:
		return "processing failed and may need operator attention"
	case SeverityMedium:
		return "a recoverable problem occurred; the file will be retried"
	default:
		return "a minor problem occurred; processing continued"
	}
}

// Classify maps an arbitrary error into the taxonomy. Errors that already
// carry a ProcError pass through unchanged.
func Classify(err error) *ProcError {
	if err == nil {
		return nil
	}

	var pe *ProcError
	if errors.As(err, &pe) {
		return pe
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return New(KindNetwork, "network operation failed", err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return New(KindNetwork, "connection failed", err)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return New(KindFileIO, "file operation failed", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindAPI, "call timed out", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tesseract") || strings.Contains(msg, "ocr"):
		return New(KindOCR, "text recognition failed", err)
	case strings.Contains(msg, "parse") || strings.Contains(msg, "unmarshal") || strings.Contains(msg, "decode"):
		return New(KindParsing, "parsing failed", err)
	case strings.Contains(msg, "schema") || strings.Contains(msg, "valid"):
		return New(KindValidation, "validation failed", err)
	case strings.Contains(msg, "config"):
		return New(KindConfiguration, "configuration problem", err)
	case strings.Contains(msg, "status 4") || strings.Contains(msg, "status 5") || strings.Contains(msg, "api"):
		return New(KindAPI, "upstream API call failed", err)
	}

	return New(KindSystem, "unexpected failure", err)
}
