package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSupportedFormat means the device supports none of Formats.
	ErrNoSupportedFormat = errors.New("no supported audio format")

	// ErrMicrophoneUnavailable matches every *MicrophoneError.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")

	// ErrCaptureEnded is returned when stopping a capture that was already
	// stopped or aborted.
	ErrCaptureEnded = errors.New("capture already ended")

	// ErrEmptyRecording means a recording carried no audio.
	ErrEmptyRecording = errors.New("empty recording")
)

// Stage sentinels. A *StageError matches exactly one of them.
var (
	ErrTranscription = errors.New("transcription failed")
	ErrSummarization = errors.New("summarization failed")
	ErrSummaryParse  = errors.New("could not parse the summary reply")
	ErrPersist       = errors.New("could not persist note")
)

// Reason classifies why a capture device could not be acquired.
type Reason int

const (
	ReasonOther Reason = iota
	ReasonPermissionDenied
	ReasonNotFound
	ReasonBusy
)

func (r Reason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonNotFound:
		return "device not found"
	case ReasonBusy:
		return "device busy"
	default:
		return "other"
	}
}

// MicrophoneError reports a failed device acquisition.
type MicrophoneError struct {
	Reason Reason
	Err    error
}

func (e *MicrophoneError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrMicrophoneUnavailable, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", ErrMicrophoneUnavailable, e.Reason, e.Err)
}

func (e *MicrophoneError) Is(target error) bool { return target == ErrMicrophoneUnavailable }

func (e *MicrophoneError) Unwrap() error { return e.Err }

// Notice is the short message shown to the user.
func (e *MicrophoneError) Notice() string {
	switch e.Reason {
	case ReasonPermissionDenied:
		return "Microphone access was denied. Please allow access to the microphone."
	case ReasonNotFound:
		return "No microphone was found. Please connect a microphone and try again."
	case ReasonBusy:
		return "Microphone is already in use by another application."
	default:
		return "An error occurred while accessing the microphone."
	}
}

// StageError is a pipeline failure after recording stopped. Kind is one of
// the stage sentinels; Raw holds the model reply for summary failures.
type StageError struct {
	Stage State
	Kind  error
	RunID string
	Raw   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (run %s): %v: %v", e.Stage, e.RunID, e.Kind, e.Err)
}

func (e *StageError) Is(target error) bool { return target == e.Kind }

func (e *StageError) Unwrap() error { return e.Err }
