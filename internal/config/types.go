package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Target    TargetConfig    `yaml:"target" mapstructure:"target"`
	Masking   MaskingConfig   `yaml:"masking" mapstructure:"masking"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Relay     RelayConfig     `yaml:"relay" mapstructure:"relay"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
}

// TargetConfig describes the single upstream every masked body is posted to
type TargetConfig struct {
	URL       string `yaml:"url" mapstructure:"url" validate:"required"`
	TimeoutMS int    `yaml:"timeout_ms" mapstructure:"timeout_ms" validate:"gt=0"`
}

// Timeout returns the upstream call budget as a duration.
func (t TargetConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// MaskingConfig drives the structured (JSON tree) masking mode
type MaskingConfig struct {
	ExcludeFields []string `yaml:"exclude_fields" mapstructure:"exclude_fields"`
	MaxDepth      int      `yaml:"max_depth" mapstructure:"max_depth" validate:"gt=0"`
}

// Excluded reports whether a field name is exempt from masking.
func (m MaskingConfig) Excluded(field string) bool {
	for _, f := range m.ExcludeFields {
		if f == field {
			return true
		}
	}
	return false
}

// PrivacyConfig selects which masking rules run
type PrivacyConfig struct {
	Detectors []string `yaml:"detectors" mapstructure:"detectors" validate:"min=1"`
}

// RelayConfig tunes the streaming relay pipeline
type RelayConfig struct {
	ChannelCapacity int `yaml:"channel_capacity" mapstructure:"channel_capacity" validate:"gt=0"`
	ChunkSize       int `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gt=0"`
	// MaxLineBytes of 0 leaves a single line bounded only by server.max_body_bytes.
	MaxLineBytes int `yaml:"max_line_bytes" mapstructure:"max_line_bytes" validate:"gte=0"`
}

// SecurityConfig contains request guardrails
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min" validate:"gte=0"`
	Burst          int  `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// WebSocketConfig contains the live event stream configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	Username        string        `yaml:"username" mapstructure:"username"`
	Password        string        `yaml:"password" mapstructure:"password"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 2 * 1024 * 1024,
		},
		Target: TargetConfig{
			URL:       "http://localhost:8080",
			TimeoutMS: 5000,
		},
		Masking: MaskingConfig{
			ExcludeFields: []string{},
			MaxDepth:      20,
		},
		Privacy: PrivacyConfig{
			Detectors: []string{"all"},
		},
		Relay: RelayConfig{
			ChannelCapacity: 32,
			ChunkSize:       32 * 1024,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:        false,
				RequestsPerMin: 600,
				Burst:          50,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		WebSocket: WebSocketConfig{
			Enabled:         false,
			Path:            "/ws",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
	}
	cfg.Logging.File.Path = "logs/iron-mask.log"
	return cfg
}
