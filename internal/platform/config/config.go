package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/fusion"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	RedisURL  string `env:"REDIS_URL"`

	EmotionServiceURL     string        `env:"EMOTION_SERVICE_URL"`
	EmotionServiceTimeout time.Duration `env:"EMOTION_SERVICE_TIMEOUT" default:"5s"`

	TickInterval       time.Duration `env:"TICK_INTERVAL" default:"2s"`
	WindowCapacity     int           `env:"WINDOW_CAPACITY" default:"50"`
	FusionWindowSize   int           `env:"FUSION_WINDOW_SIZE" default:"5"`
	TrendWindows       string        `env:"TREND_WINDOWS" default:"5,10,30"`
	WeightFace         float64       `env:"WEIGHT_FACE" default:"0.4"`
	WeightVoice        float64       `env:"WEIGHT_VOICE" default:"0.3"`
	WeightText         float64       `env:"WEIGHT_TEXT" default:"0.3"`
	DeviationThreshold float64       `env:"DEVIATION_THRESHOLD" default:"0.05"`
	InputMaxAge        time.Duration `env:"INPUT_MAX_AGE" default:"5s"`
	TextMaxAge         time.Duration `env:"TEXT_MAX_AGE" default:"30s"`
	FusionProfile      string        `env:"FUSION_PROFILE"`

	MaxSessions         int     `env:"MAX_SESSIONS" default:"100"`
	MaxWebSocketClients int     `env:"MAX_WEBSOCKET_CLIENTS" default:"50"`
	IngestRatePerSecond float64 `env:"INGEST_RATE_PER_SECOND" default:"20"`
	IngestBurst         int     `env:"INGEST_BURST" default:"40"`

	MaxStreamConnections      int `env:"MAX_STREAM_CONNECTIONS" default:"1000"`
	MaxStreamConnectionsPerIP int `env:"MAX_STREAM_CONNECTIONS_PER_IP" default:"10"`
}

// FusionSettings is the validated engine configuration: environment values with the
// optional YAML profile applied on top.
type FusionSettings struct {
	Weights            domain.WeightConfig
	WindowSize         int
	TrendWindows       []int
	DeviationThreshold float64
	Alerts             fusion.AlertConfig
	Coefficients       fusion.Coefficients
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.TickInterval <= 0 {
		return errors.New("TICK_INTERVAL must be positive")
	}
	if cfg.WindowCapacity < 1 {
		return errors.New("WINDOW_CAPACITY must be at least 1")
	}
	if cfg.MaxSessions < 1 {
		return errors.New("MAX_SESSIONS must be at least 1")
	}
	if cfg.MaxWebSocketClients < 1 {
		return errors.New("MAX_WEBSOCKET_CLIENTS must be at least 1")
	}
	if cfg.MaxStreamConnections < 1 || cfg.MaxStreamConnectionsPerIP < 1 {
		return errors.New("MAX_STREAM_CONNECTIONS and MAX_STREAM_CONNECTIONS_PER_IP must be at least 1")
	}
	if cfg.IngestRatePerSecond <= 0 || cfg.IngestBurst < 1 {
		return errors.New("INGEST_RATE_PER_SECOND and INGEST_BURST must be positive")
	}
	if cfg.EmotionServiceURL != "" && cfg.EmotionServiceTimeout <= 0 {
		return errors.New("EMOTION_SERVICE_TIMEOUT must be positive")
	}

	if _, err := cfg.Fusion(); err != nil {
		return err
	}
	return nil
}

// Fusion resolves and validates the engine settings.
func (c *Config) Fusion() (FusionSettings, error) {
	windows, err := ParseWindows(c.TrendWindows)
	if err != nil {
		return FusionSettings{}, fmt.Errorf("TREND_WINDOWS: %w", err)
	}

	fs := FusionSettings{
		Weights:            domain.WeightConfig{Face: c.WeightFace, Voice: c.WeightVoice, Text: c.WeightText},
		WindowSize:         c.FusionWindowSize,
		TrendWindows:       windows,
		DeviationThreshold: c.DeviationThreshold,
		Alerts:             fusion.DefaultAlertConfig(),
		Coefficients:       fusion.DefaultCoefficients(),
	}

	if c.FusionProfile != "" {
		data, err := os.ReadFile(c.FusionProfile)
		if err != nil {
			return FusionSettings{}, fmt.Errorf("read FUSION_PROFILE: %w", err)
		}
		if err := applyProfile(&fs, data); err != nil {
			return FusionSettings{}, fmt.Errorf("FUSION_PROFILE %s: %w", c.FusionProfile, err)
		}
	}

	if err := fs.validate(c.WindowCapacity); err != nil {
		return FusionSettings{}, err
	}
	return fs, nil
}

type profile struct {
	Weights            map[string]float64  `yaml:"weights"`
	WindowSize         *int                `yaml:"windowSize"`
	TrendWindows       []int               `yaml:"trendWindows"`
	DeviationThreshold *float64            `yaml:"deviationThreshold"`
	Alerts             fusion.AlertConfig  `yaml:"alerts"`
	Blendshape         fusion.Coefficients `yaml:"blendshape"`
}

// applyProfile overlays a YAML profile. A weights block must name face, voice and text
// explicitly: a missing modality is a configuration error, not an implicit zero.
func applyProfile(fs *FusionSettings, data []byte) error {
	p := profile{Alerts: fs.Alerts, Blendshape: fs.Coefficients}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse profile: %w", err)
	}

	if p.Weights != nil {
		w, err := weightsFromMap(p.Weights)
		if err != nil {
			return err
		}
		fs.Weights = w
	}
	if p.WindowSize != nil {
		fs.WindowSize = *p.WindowSize
	}
	if p.TrendWindows != nil {
		fs.TrendWindows = p.TrendWindows
	}
	if p.DeviationThreshold != nil {
		fs.DeviationThreshold = *p.DeviationThreshold
	}
	fs.Alerts = p.Alerts
	fs.Coefficients = p.Blendshape
	return nil
}

func weightsFromMap(m map[string]float64) (domain.WeightConfig, error) {
	for key := range m {
		if _, ok := domain.ParseModality(key); !ok {
			return domain.WeightConfig{}, fmt.Errorf("%w: unknown modality %q", domain.ErrInvalidWeights, key)
		}
	}
	for _, mod := range domain.Modalities {
		if _, ok := m[mod.String()]; !ok {
			return domain.WeightConfig{}, fmt.Errorf("%w: missing %s weight", domain.ErrInvalidWeights, mod)
		}
	}
	return domain.WeightConfig{Face: m["face"], Voice: m["voice"], Text: m["text"]}, nil
}

func (fs FusionSettings) validate(capacity int) error {
	if err := fs.Weights.Validate(); err != nil {
		return err
	}
	if fs.WindowSize < 1 || fs.WindowSize > capacity {
		return fmt.Errorf("fusion window size %d must be within [1, %d]", fs.WindowSize, capacity)
	}
	if len(fs.TrendWindows) == 0 {
		return errors.New("at least one trend window is required")
	}
	for _, w := range fs.TrendWindows {
		if w < 1 || w > capacity {
			return fmt.Errorf("trend window %d must be within [1, %d]", w, capacity)
		}
	}
	if fs.DeviationThreshold < 0 {
		return fmt.Errorf("deviation threshold %v must not be negative", fs.DeviationThreshold)
	}
	if err := fs.Alerts.Validate(); err != nil {
		return err
	}
	return fs.Coefficients.Validate()
}

// ParseWindows parses a comma-separated list of positive window sizes.
func ParseWindows(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid window size %q", part)
		}
		if n < 1 {
			return nil, fmt.Errorf("window size %d must be at least 1", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("no window sizes given")
	}
	return out, nil
}
