package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHexLine is returned for capture lines that are not an even
	// number of hex digits. Use errors.As with *LineError for the line number.
	ErrInvalidHexLine = errors.New("capture: invalid hex line")

	// ErrRecorderNotStarted is returned by FrameRecorder.RecordFrame before
	// Start or after Stop.
	ErrRecorderNotStarted = errors.New("capture: recorder not started")
)

// LineError reports which capture line could not be parsed.
type LineError struct {
	Line   int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", ErrInvalidHexLine, e.Line, e.Reason)
}

// Unwrap returns ErrInvalidHexLine.
func (e *LineError) Unwrap() error {
	return ErrInvalidHexLine
}
