package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNotReady = errors.New("speech: controller not ready")

type utterance struct {
	id   string
	text string
	once sync.Once
	done chan Outcome
}

func (u *utterance) resolve(o Outcome) {
	u.once.Do(func() {
		u.done <- o
		close(u.done)
	})
}

// Controller serializes announcements. At most one utterance is in flight;
// starting a new one cancels the previous waiter.
type Controller struct {
	engine Engine
	voice  Voice
	logger *zap.Logger

	ready   chan struct{}
	initErr error

	// engineMu orders slot swaps with the engine calls they imply.
	engineMu sync.Mutex

	mu      sync.Mutex
	current *utterance
}

// NewController starts initializing engine in the background. Speak and
// SpeakAsync are no-ops until it is ready.
func NewController(engine Engine, voice Voice, logger *zap.Logger) *Controller {
	c := &Controller{
		engine: engine,
		voice:  voice,
		logger: logger.Named("speech"),
		ready:  make(chan struct{}),
	}
	go c.init()
	return c
}

func (c *Controller) init() {
	defer close(c.ready)
	if err := c.engine.Init(context.Background(), c.voice, listener{c}); err != nil {
		c.initErr = err
		c.logger.Error("speech engine unavailable", zap.Error(err))
		return
	}
	c.logger.Info("speech engine ready",
		zap.String("locale", c.voice.Locale),
		zap.Float64("rate", c.voice.Rate))
}

// Ready reports whether initialization finished successfully.
func (c *Controller) Ready() bool {
	select {
	case <-c.ready:
		return c.initErr == nil
	default:
		return false
	}
}

// WaitReady blocks until initialization finishes and returns its error.
func (c *Controller) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Speak cancels any utterance in flight, speaks text and waits for it to
// end. Engine failures are logged and reported as Failed.
func (c *Controller) Speak(ctx context.Context, text string) Outcome {
	u, err := c.start(text)
	if err != nil {
		return Skipped
	}
	select {
	case o := <-u.done:
		return o
	case <-ctx.Done():
		return Canceled
	}
}

// SpeakAsync is Speak without the wait.
func (c *Controller) SpeakAsync(text string) {
	_, _ = c.start(text)
}

// Stop cancels the utterance in flight, if any.
func (c *Controller) Stop() {
	if !c.Ready() {
		return
	}
	c.engineMu.Lock()
	defer c.engineMu.Unlock()

	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if prev == nil {
		return
	}
	prev.resolve(Canceled)
	if err := c.engine.Stop(); err != nil {
		c.logger.Warn("failed to stop speech", zap.Error(err))
	}
}

func (c *Controller) start(text string) (*utterance, error) {
	if !c.Ready() {
		c.logger.Debug("speech not ready, skipping", zap.String("text", text))
		return nil, errNotReady
	}
	u := &utterance{
		id:   uuid.NewString(),
		text: text,
		done: make(chan Outcome, 1),
	}

	c.engineMu.Lock()
	defer c.engineMu.Unlock()

	c.mu.Lock()
	prev := c.current
	c.current = u
	c.mu.Unlock()

	if prev != nil {
		prev.resolve(Canceled)
		if err := c.engine.Stop(); err != nil {
			c.logger.Warn("failed to stop speech", zap.Error(err))
		}
	}

	c.logger.Debug("speaking", zap.String("utterance_id", u.id), zap.String("text", text))
	if err := c.engine.Speak(u.id, text); err != nil {
		c.finish(u.id, Failed, err)
	}
	return u, nil
}

// finish resolves the slot if id is still current. Events for superseded
// utterances are dropped.
func (c *Controller) finish(id string, o Outcome, err error) {
	c.mu.Lock()
	u := c.current
	if u == nil || u.id != id {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("utterance failed", zap.Error(&SpeechError{UtteranceID: id, Err: err}))
	}
	u.resolve(o)
}

type listener struct {
	c *Controller
}

func (l listener) OnStart(id string) {
	l.c.logger.Debug("utterance started", zap.String("utterance_id", id))
}

func (l listener) OnDone(id string) {
	l.c.finish(id, Completed, nil)
}

func (l listener) OnError(id string, err error) {
	if err == nil {
		err = errors.New("engine error")
	}
	l.c.finish(id, Failed, err)
}
