package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Unrecoverable markers. Jobs failing with these are never retried.
	ErrDuplicateFile         = errors.New("duplicate file")
	ErrConversion            = errors.New("conversion failed")
	ErrInsufficientTrackData = errors.New("insufficient track data")

	// Transient markers. Jobs failing with these are retried until attempts run out.
	ErrToolExecution = errors.New("tool execution failed")
	ErrPersistence   = errors.New("persistence failure")
	ErrIO            = errors.New("io failure")

	ErrFileNotFound  = errors.New("file not found")
	ErrTimeout       = errors.New("timeout")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Human readable failure reasons surfaced in failure signals.
const (
	MessageDuplicateFile    = "File has already been processed"
	MessageInsufficientData = "Cleaned GPX yielded insignificant data"
	PrefixConversion        = "Could not convert to GPX: "
	PrefixGPXProcessing     = "Failed to process GPX data: "
)

var unrecoverable = []error{ErrDuplicateFile, ErrConversion, ErrInsufficientTrackData}

// ServiceError carries a classification marker plus the stage context the
// failure happened in.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *ServiceError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = buildDetail(e.Stage, e.Operation, "")
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
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

// ErrorKind satisfies queue.ErrorClassifier.
func (e *ServiceError) ErrorKind() string {
	return kindOf(e.Marker)
}

// Wrap tags err with marker and stage context. A nil marker defaults to ErrIO.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrIO
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator hint to a ServiceError. Other errors are returned unchanged.
func WithHint(err error, hint string) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		svcErr.Hint = strings.TrimSpace(hint)
	}
	return err
}

// ErrorDetails is the flattened view of a classified error used by logging.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts classification data from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return ErrorDetails{
			Kind:      svcErr.ErrorKind(),
			Stage:     svcErr.Stage,
			Operation: svcErr.Operation,
			Message:   svcErr.Message,
			Hint:      svcErr.Hint,
			Cause:     svcErr.Cause,
		}
	}
	return ErrorDetails{Kind: kindFromChain(err), Message: err.Error()}
}

// IsUnrecoverable reports whether err must fail its job without retries.
func IsUnrecoverable(err error) bool {
	if err == nil {
		return false
	}
	for _, marker := range unrecoverable {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

// FailureMessage returns the reason reported to users for a failed job.
// Classified errors report their message; anything else reports err.Error().
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && strings.TrimSpace(svcErr.Message) != "" {
		if IsUnrecoverable(svcErr) {
			return svcErr.Message
		}
		return svcErr.Error()
	}
	return err.Error()
}

func kindFromChain(err error) string {
	for _, marker := range []error{
		ErrDuplicateFile, ErrConversion, ErrInsufficientTrackData,
		ErrToolExecution, ErrPersistence, ErrIO, ErrFileNotFound,
		ErrTimeout, ErrNotFound, ErrValidation, ErrConfiguration,
	} {
		if errors.Is(err, marker) {
			return kindOf(marker)
		}
	}
	return "unknown"
}

func kindOf(marker error) string {
	switch marker {
	case ErrDuplicateFile:
		return "duplicate_file"
	case ErrConversion:
		return "conversion"
	case ErrInsufficientTrackData:
		return "insufficient_track_data"
	case ErrToolExecution:
		return "tool_execution"
	case ErrPersistence:
		return "persistence"
	case ErrIO:
		return "io"
	case ErrFileNotFound:
		return "file_not_found"
	case ErrTimeout:
		return "timeout"
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	case ErrConfiguration:
		return "configuration"
	default:
		return "unknown"
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

// DuplicateFile reports a content hash that was already imported.
func DuplicateFile(hash string) error {
	return &ServiceError{
		Marker:    ErrDuplicateFile,
		Stage:     "CheckingDuplicate",
		Operation: "hash lookup",
		Message:   MessageDuplicateFile,
		Hint:      "re-submit with force to overwrite the existing track",
		Cause:     fmt.Errorf("hash %s", hash),
	}
}

// Conversion reports a converter run whose output signalled failure.
func Conversion(line string) error {
	return &ServiceError{
		Marker:    ErrConversion,
		Stage:     "ConvertingToGPX",
		Operation: "gopro2gpx",
		Message:   PrefixGPXProcessing + PrefixConversion + strings.TrimSpace(line),
		Hint:      "the source file carries no usable GPS telemetry",
	}
}

// GPXProcessing reports a parse or cleaning failure of converter output.
func GPXProcessing(marker error, operation string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if errors.Is(err, ErrInsufficientTrackData) || marker == ErrInsufficientTrackData {
		marker = ErrInsufficientTrackData
		msg = MessageInsufficientData
	}
	if marker == nil {
		marker = ErrConversion
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     "ParsingAndCleaningGPX",
		Operation: operation,
		Message:   PrefixGPXProcessing + msg,
	}
}

// ToolExecution reports a non-zero exit or launch failure of an external program.
func ToolExecution(program string, exitCode int, stderr string, err error) error {
	msg := fmt.Sprintf("%s exited with code %d", program, exitCode)
	if exitCode < 0 {
		msg = fmt.Sprintf("%s failed to run", program)
	}
	if tail := lastLine(stderr); tail != "" {
		msg += ": " + tail
	}
	return &ServiceError{
		Marker:    ErrToolExecution,
		Operation: program,
		Message:   msg,
		Cause:     err,
	}
}

// Persistence wraps a store failure.
func Persistence(operation string, err error) error {
	return Wrap(ErrPersistence, "", operation, "store operation failed", err)
}

// IO wraps a filesystem failure.
func IO(operation string, err error) error {
	return Wrap(ErrIO, "", operation, "filesystem operation failed", err)
}

// FileNotFound is raised when an import is requested for a missing path.
func FileNotFound(path string) error {
	return &ServiceError{
		Marker:  ErrFileNotFound,
		Message: fmt.Sprintf("file %s does not exist", path),
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
