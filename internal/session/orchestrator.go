// Package session drives scan sessions: gate, classify, announce and park
// on a terminal state.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/ningapi/internal/i18n"
	"github.com/Brownie44l1/ningapi/internal/logging"
	"github.com/Brownie44l1/ningapi/internal/model"
	"github.com/Brownie44l1/ningapi/internal/speech"
)

// Classifier labels a captured image.
type Classifier interface {
	Classify(ctx context.Context, img *model.CapturedImage) (*model.ClassificationResult, error)
}

// FaceGate reports captures that show a face.
type FaceGate interface {
	HasFace(ctx context.Context, img *model.CapturedImage) bool
}

// Speaker announces text with last-writer-wins semantics.
type Speaker interface {
	Speak(ctx context.Context, text string) speech.Outcome
	SpeakAsync(text string)
	Stop()
}

// Recorder keeps a history of results.
type Recorder interface {
	Record(ctx context.Context, sessionID string, result *model.ClassificationResult) error
}

// Observer is called on every transition, including the Result to Result
// repeat. It runs with the session locked and must not call back into it.
type Observer func(id string, from, to State)

// Timings are the pauses around announcements.
type Timings struct {
	// PreAnnounce separates the gate or classifier verdict from the
	// rejection message or the switch to Result.
	PreAnnounce time.Duration
	// ResultLead separates stopping speech from the result announcement.
	ResultLead time.Duration
	// HintDelay separates the result from the repeat/rescan hint.
	HintDelay time.Duration
	// Pause follows a rejection or error message before returning to Idle.
	Pause time.Duration
}

// DefaultTimings match the mobile application.
func DefaultTimings() Timings {
	return Timings{
		PreAnnounce: 500 * time.Millisecond,
		ResultLead:  300 * time.Millisecond,
		HintDelay:   2 * time.Second,
		Pause:       2 * time.Second,
	}
}

// Deps are the process-wide services a session uses.
type Deps struct {
	Classifier Classifier
	Gate       FaceGate
	Speaker    Speaker
	Recorder   Recorder
	Catalog    *i18n.Catalog
	Timings    Timings
	Logger     *zap.Logger
	Observer   Observer
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID        string                      `json:"id"`
	State     State                       `json:"state"`
	Result    *model.ClassificationResult `json:"result,omitempty"`
	Error     string                      `json:"error,omitempty"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// Orchestrator is the state machine of one scan session.
type Orchestrator struct {
	id   string
	deps Deps

	mu       sync.Mutex
	state    State
	returnTo State
	result   *model.ClassificationResult
	// previous is the result a rescan left, restored if the capture is
	// aborted.
	previous *model.ClassificationResult
	lastErr  error
	updated  time.Time
	gen      uint64
	cancel   context.CancelFunc
}

// New returns an Idle session.
func New(id string, deps Deps) *Orchestrator {
	if deps.Catalog == nil {
		deps.Catalog = i18n.New(string(i18n.FR))
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{
		id:      id,
		deps:    deps,
		state:   Idle,
		updated: time.Now(),
	}
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string { return o.id }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns the current state, the last result and the error of
// the last failed analysis.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{ID: o.id, State: o.state, Result: o.result, UpdatedAt: o.updated}
	if o.lastErr != nil {
		s.Error = o.lastErr.Error()
	}
	return s
}

func (o *Orchestrator) setLocked(to State) {
	from := o.state
	o.state = to
	o.updated = time.Now()
	o.deps.Logger.Debug("transition",
		zap.String("session_id", o.id),
		zap.Stringer("from", from),
		zap.Stringer("to", to))
	if o.deps.Observer != nil {
		o.deps.Observer(o.id, from, to)
	}
}

// abandonLocked invalidates the running analysis, if any.
func (o *Orchestrator) abandonLocked() {
	o.gen++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) say(key string) {
	o.deps.Speaker.SpeakAsync(o.deps.Catalog.T(key))
}

// Welcome greets the user while Idle.
func (o *Orchestrator) Welcome() {
	if o.State() == Idle {
		o.say(i18n.Welcome)
	}
}

// RequestCapture moves Idle to Capturing.
func (o *Orchestrator) RequestCapture() error {
	o.mu.Lock()
	if o.state != Idle {
		defer o.mu.Unlock()
		return invalid("capture", o.state)
	}
	o.returnTo = Idle
	o.result = nil
	o.previous = nil
	o.lastErr = nil
	o.setLocked(Capturing)
	o.mu.Unlock()

	o.say(i18n.CameraOpening)
	return nil
}

// CaptureAborted returns a Capturing session to the state that requested
// the capture.
func (o *Orchestrator) CaptureAborted() error {
	o.mu.Lock()
	if o.state != Capturing {
		defer o.mu.Unlock()
		return invalid("capture abort", o.state)
	}
	to := o.returnTo
	if to == Result {
		if o.previous == nil {
			to = Idle
		}
		o.result = o.previous
		o.previous = nil
	}
	o.setLocked(to)
	o.mu.Unlock()

	if to == Result {
		o.say(i18n.ScanCancelled)
	} else {
		o.say(i18n.NoPhotoTaken)
	}
	return nil
}

// Rescan moves Result to Capturing. It is ignored while a capture or an
// analysis is in flight.
func (o *Orchestrator) Rescan() error {
	o.mu.Lock()
	switch o.state {
	case Capturing, Analyzing:
		o.mu.Unlock()
		o.deps.Logger.Debug("rescan ignored", zap.String("session_id", o.id))
		return nil
	case Result:
	default:
		defer o.mu.Unlock()
		return invalid("rescan", o.state)
	}
	o.abandonLocked()
	o.returnTo = Result
	o.previous = o.result
	o.result = nil
	o.setLocked(Capturing)
	o.mu.Unlock()

	o.say(i18n.CameraOpening)
	return nil
}

// Repeat re-announces the result.
func (o *Orchestrator) Repeat() error {
	o.mu.Lock()
	if o.state != Result || o.result == nil {
		defer o.mu.Unlock()
		return invalid("repeat", o.state)
	}
	result := o.result
	o.setLocked(Result)
	o.mu.Unlock()

	o.deps.Speaker.SpeakAsync(result.Speakable(o.deps.Catalog))
	return nil
}

// Cancel stops speech, abandons any analysis and returns to Idle.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	o.abandonLocked()
	o.result = nil
	o.previous = nil
	if o.state != Idle {
		o.setLocked(Idle)
	}
	o.mu.Unlock()

	o.deps.Speaker.Stop()
}

// Analyze runs one analysis on the image from src. The session must be
// Capturing. It returns the announced result, ErrFaceRejected, ErrCanceled
// or the decode or classification error that sent the session to Error.
func (o *Orchestrator) Analyze(ctx context.Context, src model.ImageSource) (*model.ClassificationResult, error) {
	ctx, gen, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, gen, src)
}

// Start moves a Capturing session to Analyzing and runs the analysis in
// the background. done, if not nil, receives what Analyze would return.
func (o *Orchestrator) Start(ctx context.Context, src model.ImageSource, done func(*model.ClassificationResult, error)) error {
	ctx, gen, err := o.begin(ctx)
	if err != nil {
		return err
	}
	go func() {
		result, err := o.run(ctx, gen, src)
		if done != nil {
			done(result, err)
		}
	}()
	return nil
}

func (o *Orchestrator) begin(ctx context.Context) (context.Context, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Capturing {
		return nil, 0, invalid("analyze", o.state)
	}
	o.abandonLocked()
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.result = nil
	o.previous = nil
	o.lastErr = nil
	o.setLocked(Analyzing)
	return ctx, o.gen, nil
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, src model.ImageSource) (*model.ClassificationResult, error) {
	defer o.release(gen)

	logger := logging.WithOperation(o.deps.Logger, "analyze", o.id)
	t := o.deps.Timings

	o.say(i18n.AnalysisInProgress)

	img, err := src.Open(ctx)
	if ctx.Err() != nil {
		return nil, o.abandoned(gen)
	}
	if err != nil {
		return nil, o.fail(ctx, gen, logger, err)
	}

	if o.deps.Gate != nil && o.deps.Gate.HasFace(ctx, img) {
		if sleep(ctx, t.PreAnnounce) != nil {
			return nil, o.abandoned(gen)
		}
		return nil, o.reject(ctx, gen, logger)
	}
	if ctx.Err() != nil {
		return nil, o.abandoned(gen)
	}

	result, err := o.deps.Classifier.Classify(ctx, img)
	if ctx.Err() != nil {
		return nil, o.abandoned(gen)
	}
	if err != nil {
		return nil, o.fail(ctx, gen, logger, err)
	}
	if sleep(ctx, t.PreAnnounce) != nil {
		return nil, o.abandoned(gen)
	}

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return nil, ErrCanceled
	}
	o.deps.Speaker.Stop()
	o.result = result
	o.setLocked(Result)
	o.mu.Unlock()

	logger.Info("result",
		zap.String("denomination", result.Denomination),
		zap.String("confidence", result.ConfidencePercentage()))
	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.Record(ctx, o.id, result); err != nil {
			logger.Warn("failed to record result", zap.Error(err))
		}
	}

	if sleep(ctx, t.ResultLead) != nil {
		return result, nil
	}
	outcome := o.deps.Speaker.Speak(ctx, result.Speakable(o.deps.Catalog))
	if outcome != speech.Completed {
		logger.Debug("result announcement not completed, skipping hint", zap.Stringer("outcome", outcome))
		return result, nil
	}
	if sleep(ctx, t.HintDelay) != nil || !o.current(gen, Result) {
		return result, nil
	}
	o.deps.Speaker.Speak(ctx, o.deps.Catalog.T(i18n.ResultHint))
	return result, nil
}

// release cancels the run context once the run is over.
func (o *Orchestrator) release(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen == gen && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) current(gen uint64, state State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen == gen && o.state == state
}

// abandoned returns a run whose context ended to Idle unless a gesture
// already moved the session on.
func (o *Orchestrator) abandoned(gen uint64) error {
	o.mu.Lock()
	stale := o.gen != gen
	if !stale {
		o.abandonLocked()
		o.setLocked(Idle)
	}
	o.mu.Unlock()
	if !stale {
		o.deps.Speaker.Stop()
	}
	return ErrCanceled
}

func (o *Orchestrator) reject(ctx context.Context, gen uint64, logger *zap.Logger) error {
	if !o.enter(gen, FaceRejected, nil) {
		return ErrCanceled
	}
	logger.Info("capture rejected, face detected")

	if ctx.Err() == nil {
		o.deps.Speaker.Speak(ctx, o.deps.Catalog.T(i18n.FaceRejected))
	}
	_ = sleep(ctx, o.deps.Timings.Pause)
	o.settle(gen, FaceRejected)
	return ErrFaceRejected
}

func (o *Orchestrator) fail(ctx context.Context, gen uint64, logger *zap.Logger, err error) error {
	err = logging.NewOperationError("analyze", o.id, err)
	if !o.enter(gen, Error, err) {
		return ErrCanceled
	}
	var decodeErr *model.DecodeError
	logger.Error("analysis failed",
		zap.Error(err),
		zap.Bool("decode", errors.As(err, &decodeErr)))

	if ctx.Err() == nil {
		o.deps.Speaker.Speak(ctx, o.deps.Catalog.T(i18n.AnalysisError))
	}
	_ = sleep(ctx, o.deps.Timings.Pause)
	o.settle(gen, Error)
	return err
}

// enter moves a current run to a terminal state.
func (o *Orchestrator) enter(gen uint64, to State, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return false
	}
	o.lastErr = err
	o.setLocked(to)
	return true
}

// settle returns a run parked in from to Idle.
func (o *Orchestrator) settle(gen uint64, from State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen == gen && o.state == from {
		o.setLocked(Idle)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
