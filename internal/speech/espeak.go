package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// espeak-ng's default speed in words per minute.
const espeakDefaultWPM = 175

// Espeak speaks through one espeak-ng process per utterance.
type Espeak struct {
	Binary string

	logger *zap.Logger

	mu       sync.Mutex
	voice    Voice
	listener Listener
	running  *espeakRun
}

type espeakRun struct {
	id      string
	cmd     *exec.Cmd
	stopped bool
}

// NewEspeak returns an engine that runs binary, "espeak-ng" when empty.
func NewEspeak(binary string, logger *zap.Logger) *Espeak {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &Espeak{Binary: binary, logger: logger.Named("espeak")}
}

func (e *Espeak) Init(ctx context.Context, voice Voice, listener Listener) error {
	path, err := exec.LookPath(e.Binary)
	if err != nil {
		return fmt.Errorf("espeak binary %q not found: %w", e.Binary, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Binary = path
	e.voice = voice
	e.listener = listener
	return nil
}

// args builds the espeak-ng command line for text.
func (e *Espeak) args(text string) []string {
	wpm := espeakDefaultWPM
	if e.voice.Rate > 0 {
		wpm = int(float64(espeakDefaultWPM) * e.voice.Rate)
	}
	return []string{"-v", e.voice.Language(), "-s", strconv.Itoa(wpm), "--", text}
}

func (e *Espeak) Speak(id, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()

	cmd := exec.Command(e.Binary, e.args(text)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start espeak: %w", err)
	}
	run := &espeakRun{id: id, cmd: cmd}
	e.running = run
	listener := e.listener
	listener.OnStart(id)

	go func() {
		err := cmd.Wait()

		e.mu.Lock()
		stopped := run.stopped
		if e.running == run {
			e.running = nil
		}
		e.mu.Unlock()

		switch {
		case stopped:
			e.logger.Debug("utterance interrupted", zap.String("utterance_id", id))
		case err != nil:
			listener.OnError(id, err)
		default:
			listener.OnDone(id)
		}
	}()
	return nil
}

func (e *Espeak) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked()
}

func (e *Espeak) stopLocked() error {
	if e.running == nil {
		return nil
	}
	run := e.running
	e.running = nil
	run.stopped = true
	if run.cmd.Process != nil {
		if err := run.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill espeak: %w", err)
		}
	}
	return nil
}
