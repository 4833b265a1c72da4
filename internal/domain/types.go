package domain

import (
	"errors"
	"time"
)

// DictationState models the hotkey toggle lifecycle.
type DictationState string

const (
	StateIdle         DictationState = "idle"
	StateRecording    DictationState = "recording"
	StateTranscribing DictationState = "transcribing"
)

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonReady                  StateReason = "ready"
	ReasonRecordingStarted       StateReason = "recording_started"
	ReasonCaptureStartFailed     StateReason = "capture_start_failed"
	ReasonTranscribing           StateReason = "transcribing"
	ReasonNoRecording            StateReason = "no_recording"
	ReasonTranscriptPasted       StateReason = "transcript_pasted"
	ReasonNothingRecognized      StateReason = "nothing_recognized"
	ReasonTranscriptionFailed    StateReason = "transcription_failed"
	ReasonPasteFailed            StateReason = "paste_failed"
	ReasonRecordingDiscarded     StateReason = "recording_discarded"
	ReasonTranscriptionAbandoned StateReason = "transcription_abandoned"
	ReasonPermissionChanged      StateReason = "permission_changed"
)

// ErrorCode identifies non-fatal backend errors for observers.
type ErrorCode string

const (
	ErrorCodeStartup               ErrorCode = "startup"
	ErrorCodePermissionDenied      ErrorCode = "permission_denied"
	ErrorCodeEngineUnavailable     ErrorCode = "engine_unavailable"
	ErrorCodeCaptureStartFailed    ErrorCode = "capture_start_failed"
	ErrorCodeCaptureProducedNoFile ErrorCode = "capture_produced_no_file"
	ErrorCodeTranscriptionFailed   ErrorCode = "transcription_failed"
	ErrorCodeRules                 ErrorCode = "rules"
	ErrorCodePaste                 ErrorCode = "paste"
)

var (
	ErrPermissionDenied      = errors.New("accessibility permission not granted")
	ErrEngineUnavailable     = errors.New("speech recognition engine unavailable")
	ErrCaptureStartFailed    = errors.New("audio capture failed to start")
	ErrCaptureProducedNoFile = errors.New("audio capture produced no recording")
	ErrTranscriptionFailed   = errors.New("transcription failed")
)

// Code maps a taxonomy error onto its observer-facing code.
func Code(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermissionDenied
	case errors.Is(err, ErrEngineUnavailable):
		return ErrorCodeEngineUnavailable
	case errors.Is(err, ErrCaptureStartFailed):
		return ErrorCodeCaptureStartFailed
	case errors.Is(err, ErrCaptureProducedNoFile):
		return ErrorCodeCaptureProducedNoFile
	case errors.Is(err, ErrTranscriptionFailed):
		return ErrorCodeTranscriptionFailed
	default:
		return ""
	}
}

// Snapshot is a read-only view of the dictation state.
type Snapshot struct {
	State      DictationState
	EpisodeID  string
	Transcript string
	Permission bool
}

// StateChange is published to subscribers on every transition or reported error.
type StateChange struct {
	Snapshot
	Reason    StateReason
	ErrorCode ErrorCode
	Detail    string
	At        time.Time
}
