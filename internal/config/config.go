// Package config loads the service configuration from a YAML file, fills
// defaults and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Model   ModelConfig   `yaml:"model"`
	Face    FaceConfig    `yaml:"face"`
	Speech  SpeechConfig  `yaml:"speech"`
	Journal JournalConfig `yaml:"journal"`
	Timings TimingsConfig `yaml:"timings"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// MaxUploadMB bounds multipart image uploads.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ModelConfig struct {
	// Path is the ONNX artifact.
	Path string `yaml:"path"`
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath string `yaml:"library_path"`
}

type FaceConfig struct {
	// ModelDir holds the dlib models used by go-face. Empty disables the
	// face gate detector (every capture passes).
	ModelDir string `yaml:"model_dir"`
}

type SpeechConfig struct {
	// Engine is one of "espeak", "notify" or "silent".
	Engine string  `yaml:"engine"`
	Binary string  `yaml:"binary"`
	Locale string  `yaml:"locale"`
	Rate   float64 `yaml:"rate"`
}

type JournalConfig struct {
	// Dir is the BadgerDB directory. Empty disables the scan journal.
	Dir string `yaml:"dir"`
}

type TimingsConfig struct {
	PreAnnounce time.Duration `yaml:"pre_announce"`
	ResultLead  time.Duration `yaml:"result_lead"`
	HintDelay   time.Duration `yaml:"hint_delay"`
	Pause       time.Duration `yaml:"pause"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", MaxUploadMB: 10},
		Log:    LogConfig{Level: "info"},
		Model:  ModelConfig{Path: "models/model.onnx"},
		Speech: SpeechConfig{
			Engine: "espeak",
			Binary: "espeak-ng",
			Locale: "fr-FR",
			Rate:   0.8,
		},
		Timings: TimingsConfig{
			PreAnnounce: 500 * time.Millisecond,
			ResultLead:  300 * time.Millisecond,
			HintDelay:   2 * time.Second,
			Pause:       2 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("NINGAPI_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("NINGAPI_ORT_LIBRARY"); v != "" {
		c.Model.LibraryPath = v
	}
	if v := os.Getenv("NINGAPI_FACE_MODELS"); v != "" {
		c.Face.ModelDir = v
	}
	if v := os.Getenv("NINGAPI_SPEECH_ENGINE"); v != "" {
		c.Speech.Engine = v
	}
	if v := os.Getenv("NINGAPI_LOCALE"); v != "" {
		c.Speech.Locale = v
	}
	if v := os.Getenv("NINGAPI_SPEECH_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid NINGAPI_SPEECH_RATE %q: %w", v, err)
		}
		c.Speech.Rate = rate
	}
	if v := os.Getenv("NINGAPI_JOURNAL_DIR"); v != "" {
		c.Journal.Dir = v
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port is required")
	}
	if c.Model.Path == "" {
		return fmt.Errorf("config: model.path is required")
	}
	switch c.Speech.Engine {
	case "espeak", "notify", "silent":
	default:
		return fmt.Errorf("config: unknown speech engine %q", c.Speech.Engine)
	}
	if c.Speech.Rate <= 0 {
		return fmt.Errorf("config: speech.rate must be positive, got %v", c.Speech.Rate)
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 10
	}
	return nil
}
