package speech

import (
	"context"

	"go.uber.org/zap"
)

// Silent logs utterances and completes them immediately.
type Silent struct {
	logger   *zap.Logger
	listener Listener
}

// NewSilent returns an engine for headless runs.
func NewSilent(logger *zap.Logger) *Silent {
	return &Silent{logger: logger.Named("silent")}
}

func (s *Silent) Init(ctx context.Context, voice Voice, listener Listener) error {
	s.listener = listener
	return nil
}

func (s *Silent) Speak(id, text string) error {
	s.logger.Info("announce", zap.String("utterance_id", id), zap.String("text", text))
	s.listener.OnStart(id)
	s.listener.OnDone(id)
	return nil
}

func (s *Silent) Stop() error { return nil }
