package assistant

import (
	"context"
	"errors"
)

// State identifies where the active session is in the
// capture → inference → playback cycle.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateCaptureFailed
	StateThinking
	StateInferenceFailed
	StateSpeaking
	StatePlaybackFailed
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateCaptureFailed:
		return "capture_failed"
	case StateThinking:
		return "thinking"
	case StateInferenceFailed:
		return "inference_failed"
	case StateSpeaking:
		return "speaking"
	case StatePlaybackFailed:
		return "playback_failed"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Resting reports whether s is a display-only rest state: the session has
// finished and the overlay stays up until auto-hide or the next activation.
func (s State) Resting() bool {
	switch s {
	case StateCaptureFailed, StateInferenceFailed, StatePlaybackFailed, StateDone:
		return true
	}
	return false
}

// InFlight reports whether a collaborator call is pending for s.
func (s State) InFlight() bool {
	switch s {
	case StateCapturing, StateThinking, StateSpeaking:
		return true
	}
	return false
}

// Stage tags which collaborator produced a result or error.
type Stage int

const (
	StageCapture Stage = iota
	StageInference
	StagePlayback
)

func (s Stage) String() string {
	switch s {
	case StageCapture:
		return "capture"
	case StageInference:
		return "inference"
	case StagePlayback:
		return "playback"
	}
	return "unknown"
}

// ErrNoSpeech marks a capture that completed without intelligible speech.
var ErrNoSpeech = errors.New("no speech detected")

// StageError wraps a collaborator failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Stage.String() + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Session is one activation-to-completion cycle. Mutated only by the
// orchestrator's control goroutine.
type Session struct {
	ID         uint64
	State      State
	Transcript string
	Reply      string
	Err        error
}

// View is what the orchestrator pushes to the surface on every transition.
type View struct {
	State  State
	Status string
	Text   string
	Err    error
}

// Capturer listens on the microphone and returns a transcript. Silence
// detection and listen timeouts are the implementation's own business.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// Inferencer turns a transcript into a reply.
type Inferencer interface {
	Query(ctx context.Context, transcript string) (string, error)
}

// Speaker synthesizes the reply and plays it to completion.
type Speaker interface {
	Speak(ctx context.Context, reply string) error
}

// Surface is the visible overlay. It is purely reactive: it renders the
// views it is given and hides on request, holding no session logic itself.
type Surface interface {
	Update(v View)
	Hide()
}
