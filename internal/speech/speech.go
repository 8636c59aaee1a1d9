// Package speech announces text to the user. A new announcement always
// supersedes the one in flight.
package speech

import (
	"context"
	"fmt"
	"strings"
)

// Voice is the fixed locale and rate of the process-wide speaker.
type Voice struct {
	Locale string
	// Rate is a multiplier of the engine's normal speed.
	Rate float64
}

// Language returns the lowercase language subtag, e.g. "fr" for "fr-FR".
func (v Voice) Language() string {
	lang, _, _ := strings.Cut(v.Locale, "-")
	lang, _, _ = strings.Cut(lang, "_")
	if lang == "" {
		return "fr"
	}
	return strings.ToLower(lang)
}

// Listener receives utterance lifecycle events keyed by utterance id.
type Listener interface {
	OnStart(id string)
	OnDone(id string)
	OnError(id string, err error)
}

// Engine is a text-to-speech backend. Speak flushes whatever is playing
// and returns without waiting for the utterance to finish; completion is
// reported through the Listener given to Init.
type Engine interface {
	Init(ctx context.Context, voice Voice, listener Listener) error
	Speak(id, text string) error
	Stop() error
}

// Outcome is how an awaited utterance ended.
type Outcome int

const (
	// Completed means the utterance played to the end.
	Completed Outcome = iota
	// Canceled means a newer utterance, Stop or the caller's context
	// ended the wait.
	Canceled
	// Failed means the engine reported an error.
	Failed
	// Skipped means the controller was not ready.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// SpeechError reports an engine failure for one utterance.
type SpeechError struct {
	UtteranceID string
	Err         error
}

func (e *SpeechError) Error() string {
	return fmt.Sprintf("speech failed (utterance %s): %v", e.UtteranceID, e.Err)
}

func (e *SpeechError) Unwrap() error { return e.Err }
