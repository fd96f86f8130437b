package model

import (
	"errors"
	"fmt"
)

// Stage errors. Callers match them with errors.Is; the wrapped cause is kept
// in the chain.
var (
	// ErrUnsupportedFormat is returned when a file's extension or file_type
	// is not one of the supported formats.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnreadableDocument is returned when the container cannot be parsed.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrTranslationUnavailable marks a provider failure. It never leaves the
	// translation stage: the unit degrades to its original text.
	ErrTranslationUnavailable = errors.New("translation unavailable")
	// ErrReassembly is returned when an output document cannot be built.
	ErrReassembly = errors.New("reassembly failed")
)

// Unsupported wraps ErrUnsupportedFormat with the offending value.
func Unsupported(what string) error {
	if what == "" {
		what = "(none)"
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, what)
}

// Unreadable wraps ErrUnreadableDocument and the parser's cause.
func Unreadable(format Format, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnreadableDocument, format, cause)
}

// TranslationFailed wraps ErrTranslationUnavailable and the provider's cause.
func TranslationFailed(cause error) error {
	return fmt.Errorf("%w: %w", ErrTranslationUnavailable, cause)
}

// ReassemblyFailed wraps ErrReassembly and the cause.
func ReassemblyFailed(format Format, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrReassembly, format, cause)
}
