// Package config reads lectern settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	WordsPerPage   int           `env:"LECTERN_WORDS_PER_PAGE" envDefault:"250"`
	ReadingWPM     int           `env:"LECTERN_READING_WPM" envDefault:"200"`
	ExtractTimeout time.Duration `env:"LECTERN_EXTRACT_TIMEOUT" envDefault:"5s"`

	SpeechCommand string  `env:"LECTERN_SPEECH_COMMAND"`
	SpeechRate    float64 `env:"LECTERN_SPEECH_RATE" envDefault:"1.0"`
	SpeechPitch   float64 `env:"LECTERN_SPEECH_PITCH" envDefault:"1.0"`
	SpeechVolume  float64 `env:"LECTERN_SPEECH_VOLUME" envDefault:"1.0"`

	StateDir string `env:"LECTERN_STATE_DIR"`
	LogLevel string `env:"LECTERN_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LECTERN_LOG_FILE"`
}

// Load reads envFiles (".env" when none are given; missing files are
// ignored) and then parses the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := Init(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Init(cfg interface{}) error {
	return env.Parse(cfg)
}

// Validate rejects values no reader or player can use.
func (c Config) Validate() error {
	var errs []error
	if c.WordsPerPage <= 0 {
		errs = append(errs, fmt.Errorf("LECTERN_WORDS_PER_PAGE must be positive, got %d", c.WordsPerPage))
	}
	if c.ReadingWPM <= 0 {
		errs = append(errs, fmt.Errorf("LECTERN_READING_WPM must be positive, got %d", c.ReadingWPM))
	}
	if c.ExtractTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LECTERN_EXTRACT_TIMEOUT must be positive, got %s", c.ExtractTimeout))
	}
	for name, v := range map[string]float64{
		"LECTERN_SPEECH_RATE":   c.SpeechRate,
		"LECTERN_SPEECH_PITCH":  c.SpeechPitch,
		"LECTERN_SPEECH_VOLUME": c.SpeechVolume,
	} {
		if v <= 0 || v > 4 {
			errs = append(errs, fmt.Errorf("%s must be in (0,4], got %v", name, v))
		}
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("LECTERN_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
