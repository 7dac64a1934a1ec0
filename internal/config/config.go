package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// Loader reads configuration from file and environment variables. It keeps
// its viper instance so the same sources can be watched after startup.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader. An empty configPath searches the default locations.
func NewLoader(configPath string) *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/iron-mask/")
	v.AddConfigPath("$HOME/.iron-mask/")

	v.SetEnvPrefix("IRONMASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names kept for container deployments that predate the prefix
	_ = v.BindEnv("server.port", "IRONMASK_SERVER_PORT", "PORT")
	_ = v.BindEnv("target.url", "IRONMASK_TARGET_URL", "TARGET_URL", "TARGET_LOG_URL")
	_ = v.BindEnv("masking.max_depth", "IRONMASK_MASKING_MAX_DEPTH", "MASKING_MAX_DEPTH")

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	registerDefaults(v, GetDefaults())

	return &Loader{v: v}
}

// Load reads, unmarshals and validates the configuration
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := GetDefaults()
	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Watch re-reads the configuration file whenever it changes and hands every
// valid result to callback. Invalid edits are reported through onError and
// otherwise ignored.
func (l *Loader) Watch(callback func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		newConfig := GetDefaults()
		if err := l.v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal %s: %w", e.Name, err))
			}
			return
		}

		if err := Validate(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			}
			return
		}

		callback(newConfig)
	})
	l.v.WatchConfig()
}

// Validate checks a configuration for values the process cannot start with
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return formatValidationError(err)
	}

	if !strings.HasPrefix(config.Target.URL, "http://") && !strings.HasPrefix(config.Target.URL, "https://") {
		return fmt.Errorf("target url must start with http:// or https://: %s", config.Target.URL)
	}

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /: %s", config.Metrics.Path)
	}

	if config.WebSocket.Enabled && (config.WebSocket.Username == "" || config.WebSocket.Password == "") {
		return errors.New("websocket requires username and password when enabled")
	}

	return nil
}

// formatValidationError turns validator output into a single readable error
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}

	return errors.New(strings.Join(messages, "; "))
}

// registerDefaults makes every key known to viper so environment variables
// can override values that the config file does not mention.
func registerDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("target.url", d.Target.URL)
	v.SetDefault("target.timeout_ms", d.Target.TimeoutMS)

	v.SetDefault("masking.exclude_fields", d.Masking.ExcludeFields)
	v.SetDefault("masking.max_depth", d.Masking.MaxDepth)

	v.SetDefault("privacy.detectors", d.Privacy.Detectors)

	v.SetDefault("relay.channel_capacity", d.Relay.ChannelCapacity)
	v.SetDefault("relay.chunk_size", d.Relay.ChunkSize)
	v.SetDefault("relay.max_line_bytes", d.Relay.MaxLineBytes)

	v.SetDefault("security.rate_limit.enabled", d.Security.RateLimit.Enabled)
	v.SetDefault("security.rate_limit.requests_per_min", d.Security.RateLimit.RequestsPerMin)
	v.SetDefault("security.rate_limit.burst", d.Security.RateLimit.Burst)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("websocket.enabled", d.WebSocket.Enabled)
	v.SetDefault("websocket.path", d.WebSocket.Path)
	v.SetDefault("websocket.username", d.WebSocket.Username)
	v.SetDefault("websocket.password", d.WebSocket.Password)
	v.SetDefault("websocket.read_buffer_size", d.WebSocket.ReadBufferSize)
	v.SetDefault("websocket.write_buffer_size", d.WebSocket.WriteBufferSize)
	v.SetDefault("websocket.ping_interval", d.WebSocket.PingInterval)
	v.SetDefault("websocket.pong_timeout", d.WebSocket.PongTimeout)
	v.SetDefault("websocket.write_timeout", d.WebSocket.WriteTimeout)
	v.SetDefault("websocket.max_message_size", d.WebSocket.MaxMessageSize)
	v.SetDefault("websocket.allowed_origins", d.WebSocket.AllowedOrigins)
}
