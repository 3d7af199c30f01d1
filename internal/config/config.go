package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/pulsewire/pulsewire/internal/transport"
)

// BrokerConfig is the [broker] section shared by both nodes. Either
// set url, or set the individual fields; url wins for the connection
// endpoint while exchange and queue names always come from here.
type BrokerConfig struct {
	URL      string `toml:"url"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Pass     string `toml:"pass"`
	VHost    string `toml:"vhost"`
	Exchange string `toml:"exchange"`

	SignalsQueue  string `toml:"signals_queue"`
	DetectedQueue string `toml:"detected_queue"`
}

type CaptureConfig struct {
	NodeID string       `toml:"node_id"`
	Broker BrokerConfig `toml:"broker"`

	// Input is a path to an rtl_433 pulse JSON stream, or "-" for stdin.
	Input  string `toml:"input"`
	Format string `toml:"format"` // "binary" or "json"

	FrequencyHz  float64 `toml:"frequency_hz"`
	SampleRateHz uint32  `toml:"sample_rate_hz"`
	StartID      uint64  `toml:"start_id"`
}

type DecodeConfig struct {
	NodeID string       `toml:"node_id"`
	Broker BrokerConfig `toml:"broker"`

	DBPath           string `toml:"db_path"`
	StatsIntervalRaw string `toml:"stats_interval"`
	PollTimeoutRaw   string `toml:"poll_timeout"`

	StatsInterval time.Duration `toml:"-"`
	PollTimeout   time.Duration `toml:"-"`
}

func LoadCaptureConfig(path string) (CaptureConfig, error) {
	var cfg CaptureConfig
	if err := loadToml(path, &cfg); err != nil {
		return CaptureConfig{}, err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = "capture"
	}
	if cfg.Input == "" {
		cfg.Input = "-"
	}
	if cfg.Format == "" {
		cfg.Format = "binary"
	}
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = 250000
	}
	if err := ValidateCaptureConfig(cfg); err != nil {
		return CaptureConfig{}, err
	}
	return cfg, nil
}

func LoadDecodeConfig(path string) (DecodeConfig, error) {
	var cfg DecodeConfig
	if err := loadToml(path, &cfg); err != nil {
		return DecodeConfig{}, err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = "decode"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "unknown_signals.db"
	}
	cfg.StatsInterval = time.Minute
	if cfg.StatsIntervalRaw != "" {
		d, err := time.ParseDuration(strings.TrimSpace(cfg.StatsIntervalRaw))
		if err != nil {
			return DecodeConfig{}, fmt.Errorf("parse stats_interval: %w", err)
		}
		cfg.StatsInterval = d
	}
	cfg.PollTimeout = time.Second
	if cfg.PollTimeoutRaw != "" {
		d, err := time.ParseDuration(strings.TrimSpace(cfg.PollTimeoutRaw))
		if err != nil {
			return DecodeConfig{}, fmt.Errorf("parse poll_timeout: %w", err)
		}
		cfg.PollTimeout = d
	}
	if err := ValidateDecodeConfig(cfg); err != nil {
		return DecodeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateCaptureConfig(cfg CaptureConfig) error {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return fmt.Errorf("capture config missing node_id")
	}
	if cfg.Format != "binary" && cfg.Format != "json" {
		return fmt.Errorf("capture config format must be binary or json, got %q", cfg.Format)
	}
	return nil
}

func ValidateDecodeConfig(cfg DecodeConfig) error {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return fmt.Errorf("decode config missing node_id")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("decode config missing db_path")
	}
	if cfg.StatsInterval < 0 || cfg.PollTimeout < 0 {
		return fmt.Errorf("decode config intervals must be positive")
	}
	return nil
}

// Transport maps the [broker] section onto a session config, applying
// url overlay first and explicit fields on top.
func (b BrokerConfig) Transport(nodeID string) (transport.Config, error) {
	cfg, err := transport.ParseURL(b.URL)
	if err != nil {
		return transport.Config{}, err
	}
	if b.Host != "" {
		cfg.Host = b.Host
	}
	if b.Port != 0 {
		cfg.Port = b.Port
	}
	if b.User != "" {
		cfg.Username = b.User
	}
	if b.Pass != "" {
		cfg.Password = b.Pass
	}
	if b.VHost != "" {
		cfg.VHost = b.VHost
	}
	if b.Exchange != "" {
		cfg.Exchange = b.Exchange
	}
	if b.SignalsQueue != "" {
		cfg.SignalsQueue = b.SignalsQueue
	}
	if b.DetectedQueue != "" {
		cfg.DetectedQueue = b.DetectedQueue
	}
	cfg.NodeID = nodeID
	if err := cfg.Validate(); err != nil {
		return transport.Config{}, err
	}
	return cfg, nil
}
