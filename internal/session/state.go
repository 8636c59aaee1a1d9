package session

import (
	"errors"
	"fmt"
)

// State is the stage of one scan session.
type State int

const (
	Idle State = iota
	Capturing
	FaceRejected
	Analyzing
	Result
	Error
)

var stateNames = [...]string{"idle", "capturing", "face_rejected", "analyzing", "result", "error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidTransition is returned when a gesture does not apply to
	// the current state.
	ErrInvalidTransition = errors.New("session: invalid transition")
	// ErrCanceled is returned by an analysis that was abandoned.
	ErrCanceled = errors.New("session: analysis canceled")
	// ErrFaceRejected is returned when the capture showed a face.
	ErrFaceRejected = errors.New("session: capture rejected, face detected")
)

func invalid(op string, s State) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, s)
}
