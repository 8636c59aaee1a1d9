package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

const (
	appName = "Ni nghapi"
	// Normal reading speed used to estimate how long a notification
	// stands in for speech.
	readingWPM = 180
)

// Notifier shows each utterance as a desktop notification. The utterance
// completes after the time a reader needs for the text at the voice rate.
type Notifier struct {
	notify func(title, message, icon string) error

	mu       sync.Mutex
	voice    Voice
	listener Listener
	timer    *time.Timer
}

// NewNotifier returns a notification engine backed by beeep.
func NewNotifier() *Notifier {
	return &Notifier{notify: beeep.Notify}
}

func (n *Notifier) Init(ctx context.Context, voice Voice, listener Listener) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.voice = voice
	n.listener = listener
	return nil
}

func (n *Notifier) Speak(id, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked()
	if err := n.notify(appName, text, ""); err != nil {
		return err
	}
	listener := n.listener
	listener.OnStart(id)
	n.timer = time.AfterFunc(readingTime(text, n.voice.Rate), func() {
		listener.OnDone(id)
	})
	return nil
}

func (n *Notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	return nil
}

func (n *Notifier) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// readingTime estimates how long text takes to read at rate times the
// normal speed.
func readingTime(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return time.Duration(float64(words) * float64(time.Minute) / (readingWPM * rate))
}
