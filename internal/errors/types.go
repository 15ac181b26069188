package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a failure surfaced by the auto-fill pipeline
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeExtractionFailed
	ErrorTypeNoExtractableText
	ErrorTypeCreditExhausted
	ErrorTypeAnalysisFailed
	ErrorTypeInvalidContext
	ErrorTypeMissingCredential
	ErrorTypeExportFailed
	ErrorTypeFieldApply
)

// ErrorSeverity indicates how the caller should treat an error
type ErrorSeverity int

const (
	SeverityWarning ErrorSeverity = iota
	SeverityError
	SeverityFatal
)

// String returns the wire code of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeExtractionFailed:
		return "EXTRACTION_FAILED"
	case ErrorTypeNoExtractableText:
		return "NO_EXTRACTABLE_TEXT"
	case ErrorTypeCreditExhausted:
		return "CREDIT_EXHAUSTED"
	case ErrorTypeAnalysisFailed:
		return "ANALYSIS_FAILED"
	case ErrorTypeInvalidContext:
		return "INVALID_CONTEXT"
	case ErrorTypeMissingCredential:
		return "MISSING_CREDENTIAL"
	case ErrorTypeExportFailed:
		return "EXPORT_FAILED"
	case ErrorTypeFieldApply:
		return "FIELD_APPLY_WARNING"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeFieldApply, ErrorTypeNoExtractableText:
		return SeverityWarning
	case ErrorTypeExtractionFailed, ErrorTypeExportFailed, ErrorTypeMissingCredential:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRetryable reports whether the caller may reasonably retry the same request.
// The core never retries on its own.
func (et ErrorType) IsRetryable() bool {
	return et == ErrorTypeAnalysisFailed
}

// AppError is a typed pipeline error carrying a user-facing reason and the cause
type AppError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Reason    string    `json:"reason,omitempty"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any *AppError of the same type, so sentinels work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Code returns the wire code for this error
func (e *AppError) Code() string {
	return e.Type.String()
}

// Sentinels for errors.Is matching
var (
	ErrExtractionFailed  = &AppError{Type: ErrorTypeExtractionFailed, Message: "document could not be parsed"}
	ErrNoExtractableText = &AppError{Type: ErrorTypeNoExtractableText, Message: "no extractable text"}
	ErrCreditExhausted   = &AppError{Type: ErrorTypeCreditExhausted, Message: "completion credit exhausted"}
	ErrAnalysisFailed    = &AppError{Type: ErrorTypeAnalysisFailed, Message: "analysis failed"}
	ErrInvalidContext    = &AppError{Type: ErrorTypeInvalidContext, Message: "invalid context"}
	ErrMissingCredential = &AppError{Type: ErrorTypeMissingCredential, Message: "completion credential is not configured"}
	ErrExportFailed      = &AppError{Type: ErrorTypeExportFailed, Message: "export failed"}
	ErrFieldApplyWarning = &AppError{Type: ErrorTypeFieldApply, Message: "field could not be applied"}
)

// New creates a new AppError of the given type
func New(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps err as an AppError of the given type
func Wrap(errorType ErrorType, message string, err error) *AppError {
	return &AppError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// WithReason attaches a human-readable reason
func (e *AppError) WithReason(reason string) *AppError {
	e.Reason = reason
	return e
}

// WithField attaches the form field the error relates to
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// TypeOf returns the ErrorType of the first AppError in err's chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// ReasonOf returns the reason of the first AppError in err's chain
func ReasonOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}
