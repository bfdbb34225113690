// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"go.yaml.in/yaml/v3"
)

// ConfigFilePath is the default location for the configuration file.
const ConfigFilePath = "/etc/streamsup/config.yaml"

// Config represents the complete agent configuration. koanf tags are
// deliberately underscore-free so environment-variable keys split
// unambiguously on "_" between nesting levels (see koanf.go).
type Config struct {
	// BaseURL is the control-plane HTTP base, e.g. "https://api.example.com".
	BaseURL string `yaml:"baseUrl" koanf:"baseurl"`

	// GroundID identifies this agent; used in every control-plane URL path.
	GroundID string `yaml:"groundId" koanf:"groundid"`

	// StateDir is the Stream Record Store root.
	StateDir string `yaml:"stateDir" koanf:"statedir"`

	// HealthCheckInterval is the period of the supervisor's health tick.
	HealthCheckInterval time.Duration `yaml:"healthCheckInterval" koanf:"healthcheckinterval"`

	// LogLevel selects the slog level: debug, info, warn, error.
	LogLevel string `yaml:"logLevel" koanf:"loglevel"`

	// LogFile optionally routes log output through a rotating file sink in
	// addition to stderr.
	LogFile string `yaml:"logFile" koanf:"logfile"`

	// SingleInstanceLockPath is the agent-wide flock(2) guard file.
	SingleInstanceLockPath string `yaml:"singleInstanceLockPath" koanf:"singleinstancelockpath"`

	// HealthAddr is the bind address for the /healthz and /metrics endpoints.
	HealthAddr string `yaml:"healthAddr" koanf:"healthaddr"`

	SSE           SSEConfig           `yaml:"sse" koanf:"sse"`
	Transcoder    TranscoderConfig    `yaml:"transcoder" koanf:"transcoder"`
	Overlay       OverlayConfig       `yaml:"overlay" koanf:"overlay"`
	Encode        EncodeConfig        `yaml:"encode" koanf:"encode"`
	RemoteLogging RemoteLoggingConfig `yaml:"remoteLogging" koanf:"remotelogging"`
}

// SSEConfig parameterizes the control-plane SSE subscription's reconnect
// backoff.
type SSEConfig struct {
	RetryInterval time.Duration `yaml:"retryInterval" koanf:"retryinterval"`
	MaxRetries    int           `yaml:"maxRetries" koanf:"maxretries"`
}

// TranscoderConfig locates the ffmpeg/ffprobe binaries and tunes stall
// detection.
type TranscoderConfig struct {
	FFmpegPath           string        `yaml:"ffmpegPath" koanf:"ffmpegpath"`
	FFprobePath          string        `yaml:"ffprobePath" koanf:"ffprobepath"`
	StallRepeatThreshold int           `yaml:"stallRepeatThreshold" koanf:"stallrepeatthreshold"`
	ResourceMonitorInterval time.Duration `yaml:"resourceMonitorInterval" koanf:"resourcemonitorinterval"`
}

// OverlayConfig locates the branded overlay images composited onto every
// stream.
type OverlayConfig struct {
	PrimaryLogoPath string `yaml:"primaryLogoPath" koanf:"primarylogopath"`
	ClientLogoPath  string `yaml:"clientLogoPath" koanf:"clientlogopath"`
}

// EncodeConfig carries the RTMP destination and the encoder parameters
// threaded into ffmpeg's argument vector.
type EncodeConfig struct {
	RTMPBase        string `yaml:"rtmpBase" koanf:"rtmpbase"`
	VideoBitrate    string `yaml:"videoBitrate" koanf:"videobitrate"`
	VideoMaxrate    string `yaml:"videoMaxrate" koanf:"videomaxrate"`
	VideoBufsize    string `yaml:"videoBufsize" koanf:"videobufsize"`
	ScaleWidth      int    `yaml:"scaleWidth" koanf:"scalewidth"`
	ScaleHeight     int    `yaml:"scaleHeight" koanf:"scaleheight"`
	AudioBitrate    string `yaml:"audioBitrate" koanf:"audiobitrate"`
	AudioSampleRate int    `yaml:"audioSampleRate" koanf:"audiosamplerate"`
	AudioChannels   int    `yaml:"audioChannels" koanf:"audiochannels"`
}

// RemoteLoggingConfig drives the optional batching HTTP log shipper.
// Disabled by default.
type RemoteLoggingConfig struct {
	Enabled       bool          `yaml:"enabled" koanf:"enabled"`
	Endpoint      string        `yaml:"endpoint" koanf:"endpoint"`
	BatchSize     int           `yaml:"batchSize" koanf:"batchsize"`
	BatchInterval time.Duration `yaml:"batchInterval" koanf:"batchinterval"`
	MaxMemory     int           `yaml:"maxMemory" koanf:"maxmemory"`
	RetryAttempts int           `yaml:"retryAttempts" koanf:"retryattempts"`
	RetryDelay    time.Duration `yaml:"retryDelay" koanf:"retrydelay"`
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 - Config path is from administrator-controlled configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file, fsync,
// durable rename), using the same mechanism as the Stream Record Store.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	// #nosec G302 - config may carry deployment-specific URLs, owner+group only
	if err := renameio.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// Validate checks configuration for invalid or missing required values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	if c.GroundID == "" {
		return fmt.Errorf("groundId is required")
	}
	if c.Overlay.ClientLogoPath == "" {
		return fmt.Errorf("overlay.clientLogoPath is required")
	}
	if c.StateDir == "" {
		return fmt.Errorf("stateDir is required")
	}
	if c.SSE.RetryInterval < 0 {
		return fmt.Errorf("sse.retryInterval must not be negative")
	}
	if c.SSE.MaxRetries < 0 {
		return fmt.Errorf("sse.maxRetries must not be negative")
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("healthCheckInterval must be positive")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logLevel must be one of debug, info, warn, error")
	}
	if c.RemoteLogging.Enabled && c.RemoteLogging.Endpoint == "" {
		return fmt.Errorf("remoteLogging.endpoint is required when remoteLogging.enabled is true")
	}
	return nil
}

// DefaultConfig returns a configuration with production-sensible defaults.
// Required fields (baseUrl, groundId, clientLogoPath) are left empty; the
// first-run wizard (cmd/streamsup-init) is responsible for populating them.
func DefaultConfig() *Config {
	return &Config{
		StateDir:               "/var/lib/streamsup/records",
		HealthCheckInterval:    30 * time.Second,
		LogLevel:               "info",
		SingleInstanceLockPath: "/var/run/streamsup/streamsup.lock",
		HealthAddr:             "127.0.0.1:9998",
		SSE: SSEConfig{
			RetryInterval: time.Second,
			MaxRetries:    0,
		},
		Transcoder: TranscoderConfig{
			FFmpegPath:              "/usr/bin/ffmpeg",
			FFprobePath:             "/usr/bin/ffprobe",
			StallRepeatThreshold:    10,
			ResourceMonitorInterval: 30 * time.Second,
		},
		Overlay: OverlayConfig{
			PrimaryLogoPath: "/etc/streamsup/assets/primary.png",
		},
		Encode: EncodeConfig{
			RTMPBase:        "rtmp://a.rtmp.youtube.com/live2",
			VideoBitrate:    "4500k",
			VideoMaxrate:    "5000k",
			VideoBufsize:    "10000k",
			ScaleWidth:      1920,
			ScaleHeight:     1080,
			AudioBitrate:    "128k",
			AudioSampleRate: 44100,
			AudioChannels:   2,
		},
		RemoteLogging: RemoteLoggingConfig{
			Enabled:       false,
			BatchSize:     50,
			BatchInterval: 5 * time.Second,
			MaxMemory:     1 << 20,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
	}
}
