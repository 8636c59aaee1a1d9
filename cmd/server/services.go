package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Brownie44l1/ningapi/internal/config"
	"github.com/Brownie44l1/ningapi/internal/facegate"
	"github.com/Brownie44l1/ningapi/internal/facegate/dlibface"
	"github.com/Brownie44l1/ningapi/internal/i18n"
	"github.com/Brownie44l1/ningapi/internal/journal"
	"github.com/Brownie44l1/ningapi/internal/model"
	"github.com/Brownie44l1/ningapi/internal/session"
	"github.com/Brownie44l1/ningapi/internal/speech"
)

// services are the process-wide instances shared by every session.
type services struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *model.Engine
	gate    *facegate.Gate
	speaker *speech.Controller
	journal *journal.Journal
	catalog *i18n.Catalog

	detector *dlibface.Detector
}

func newServices(cfg *config.Config, logger *zap.Logger) (*services, error) {
	s := &services{
		cfg:     cfg,
		logger:  logger,
		catalog: i18n.New(cfg.Speech.Locale),
	}

	s.engine = model.NewEngine(model.ONNXLoader{
		ModelPath:   cfg.Model.Path,
		LibraryPath: cfg.Model.LibraryPath,
	}, logger)

	var detector facegate.Detector
	if cfg.Face.ModelDir != "" {
		d, err := dlibface.New(cfg.Face.ModelDir)
		if err != nil {
			logger.Warn("face detector unavailable, every capture will be classified", zap.Error(err))
		} else {
			s.detector = d
			detector = d
		}
	}
	s.gate = facegate.New(detector, logger)

	voice := speech.Voice{Locale: cfg.Speech.Locale, Rate: cfg.Speech.Rate}
	s.speaker = speech.NewController(newSpeechEngine(cfg.Speech, logger), voice, logger)

	if cfg.Journal.Dir != "" {
		j, err := journal.Open(journal.Options{Dir: cfg.Journal.Dir, Logger: logger})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.journal = j
	}
	return s, nil
}

func newSpeechEngine(cfg config.SpeechConfig, logger *zap.Logger) speech.Engine {
	switch cfg.Engine {
	case "notify":
		return speech.NewNotifier()
	case "silent":
		return speech.NewSilent(logger)
	default:
		return speech.NewEspeak(cfg.Binary, logger)
	}
}

func (s *services) timings() session.Timings {
	t := s.cfg.Timings
	return session.Timings{
		PreAnnounce: t.PreAnnounce,
		ResultLead:  t.ResultLead,
		HintDelay:   t.HintDelay,
		Pause:       t.Pause,
	}
}

func (s *services) deps(observer session.Observer) session.Deps {
	deps := session.Deps{
		Classifier: s.engine,
		Gate:       s.gate,
		Speaker:    s.speaker,
		Catalog:    s.catalog,
		Timings:    s.timings(),
		Logger:     s.logger,
		Observer:   observer,
	}
	if s.journal != nil {
		deps.Recorder = s.journal
	}
	return deps
}

// warmUp loads the model ahead of the first request. A failure is retried
// by the next classification.
func (s *services) warmUp(ctx context.Context) {
	if err := s.engine.Initialize(ctx); err != nil {
		s.logger.Warn("model not loaded at startup", zap.Error(err))
	}
}

func (s *services) Close() {
	s.speaker.Stop()
	if err := s.engine.Dispose(); err != nil {
		s.logger.Warn("failed to release model", zap.Error(err))
	}
	if s.detector != nil {
		s.detector.Close()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("failed to close journal", zap.Error(err))
		}
	}
}
