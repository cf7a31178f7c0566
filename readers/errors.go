package readers

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for extensions that have no registered reader.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrConversion marks format-specific failures: corrupt files or unsupported features.
	ErrConversion = errors.New("conversion failure")

	// ErrIO marks files that could not be opened or read.
	ErrIO = errors.New("io failure")
)

// UnsupportedFormatError carries the extension that could not be dispatched.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported format: file has no extension"
	}
	return fmt.Sprintf("unsupported format: %s", e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Kind classifies err for reporting.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrConversion):
		return "conversion_failure"
	case errors.Is(err, ErrIO):
		return "io_failure"
	default:
		return "unknown"
	}
}

func ioError(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIO, err)
}

func conversionError(format Format, path string, err error) error {
	return fmt.Errorf("failed to read %s document %s: %w: %w", format, path, ErrConversion, err)
}
