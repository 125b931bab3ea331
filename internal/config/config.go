// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"serial2pipe/internal/model"
	"serial2pipe/internal/protocol"
)

// Config represents the application configuration
type Config struct {
	Relay   RelayConfig      `mapstructure:"relay"`
	Serial  SerialLineConfig `mapstructure:"serial"`
	HTTP    HTTPConfig       `mapstructure:"http"`
	Logging LoggingConfig    `mapstructure:"logging"`
	App     AppConfig        `mapstructure:"app"`
}

// RelayConfig represents the endpoints and timing of the relay
type RelayConfig struct {
	SerialPort       string        `mapstructure:"serial_port"`
	BaudRate         int           `mapstructure:"baud_rate"`
	NamedPipe        string        `mapstructure:"named_pipe"`
	PipeRole         string        `mapstructure:"pipe_role"`
	PipeNetwork      string        `mapstructure:"pipe_network"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	StatsInterval    time.Duration `mapstructure:"stats_interval"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	BufferSize       int           `mapstructure:"buffer_size"`
}

// SerialLineConfig represents serial line settings. Handshake is always none.
type SerialLineConfig struct {
	DataBits int    `mapstructure:"data_bits"`
	Parity   string `mapstructure:"parity"`
	StopBits int    `mapstructure:"stop_bits"`
}

// HTTPConfig represents the optional status API server
type HTTPConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// Load reads configuration into v from defaults, an optional YAML file and
// SERIAL2PIPE_* environment variables. Flags bound to v before Load take
// precedence over all of them. An empty configFile searches the default
// locations; finding nothing there is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/serial2pipe")
	}

	v.SetEnvPrefix("SERIAL2PIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Relay defaults
	v.SetDefault("relay.serial_port", "COM1")
	v.SetDefault("relay.baud_rate", protocol.DefaultBaudRate)
	v.SetDefault("relay.named_pipe", protocol.DefaultPipeName)
	v.SetDefault("relay.pipe_role", "client")
	v.SetDefault("relay.pipe_network", protocol.DefaultPipeNetwork)
	v.SetDefault("relay.read_timeout", "1s")
	v.SetDefault("relay.write_timeout", "1s")
	v.SetDefault("relay.connect_timeout", "5s")
	v.SetDefault("relay.reconnect_backoff", "5s")
	v.SetDefault("relay.stats_interval", "1h")
	v.SetDefault("relay.shutdown_timeout", "5s")
	v.SetDefault("relay.buffer_size", protocol.DefaultBufferSize)

	// Serial line defaults
	v.SetDefault("serial.data_bits", protocol.DefaultDataBits)
	v.SetDefault("serial.parity", protocol.DefaultParity)
	v.SetDefault("serial.stop_bits", protocol.DefaultStopBits)

	// HTTP defaults
	v.SetDefault("http.enabled", false)
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", "8085")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "120s")
	v.SetDefault("http.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// App defaults
	v.SetDefault("app.name", "serial2pipe")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
}

// validate validates the configuration
func validate(config *Config) error {
	r := config.Relay

	if r.SerialPort == "" {
		return invalid("relay.serial_port is required")
	}
	if r.NamedPipe == "" {
		return invalid("relay.named_pipe is required")
	}
	if r.BaudRate <= 0 {
		return invalid(fmt.Sprintf("relay.baud_rate must be positive, got %d", r.BaudRate))
	}
	if r.BufferSize <= 0 {
		return invalid(fmt.Sprintf("relay.buffer_size must be positive, got %d", r.BufferSize))
	}

	durations := map[string]time.Duration{
		"relay.read_timeout":      r.ReadTimeout,
		"relay.write_timeout":     r.WriteTimeout,
		"relay.connect_timeout":   r.ConnectTimeout,
		"relay.reconnect_backoff": r.ReconnectBackoff,
		"relay.stats_interval":    r.StatsInterval,
		"relay.shutdown_timeout":  r.ShutdownTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return invalid(fmt.Sprintf("%s must be positive, got %s", key, d))
		}
	}

	if !oneOf(r.PipeRole, "client", "server") {
		return invalid(fmt.Sprintf("relay.pipe_role must be client or server, got %q", r.PipeRole))
	}
	if !oneOf(r.PipeNetwork, protocol.NetworkPipe, protocol.NetworkUnix, protocol.NetworkTCP) {
		return invalid(fmt.Sprintf("relay.pipe_network must be pipe, unix or tcp, got %q", r.PipeNetwork))
	}
	if r.PipeNetwork == protocol.NetworkPipe && runtime.GOOS != "windows" {
		return invalid("relay.pipe_network pipe is only available on windows")
	}

	if !oneOf(config.Serial.Parity, "none", "odd", "even", "mark", "space") {
		return invalid(fmt.Sprintf("serial.parity is invalid: %q", config.Serial.Parity))
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !oneOf(config.Logging.Level, validLevels...) {
		return invalid(fmt.Sprintf("logging.level must be one of: %v", validLevels))
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !oneOf(config.App.Environment, validEnvs...) {
		return invalid(fmt.Sprintf("app.environment must be one of: %v", validEnvs))
	}

	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", protocol.ErrConfigInvalid, msg)
}

// SerialConfig returns the device endpoint configuration
func (c *Config) SerialConfig() *protocol.SerialConfig {
	return &protocol.SerialConfig{
		Port:        c.Relay.SerialPort,
		BaudRate:    c.Relay.BaudRate,
		DataBits:    c.Serial.DataBits,
		StopBits:    c.Serial.StopBits,
		Parity:      c.Serial.Parity,
		ReadTimeout: c.Relay.ReadTimeout,
	}
}

// PipeConfig returns the pipe endpoint configuration
func (c *Config) PipeConfig() *protocol.PipeConfig {
	return &protocol.PipeConfig{
		Name:           c.Relay.NamedPipe,
		Role:           model.PipeRole(c.Relay.PipeRole),
		Network:        c.Relay.PipeNetwork,
		ConnectTimeout: c.Relay.ConnectTimeout,
		ReadTimeout:    c.Relay.ReadTimeout,
		WriteTimeout:   c.Relay.WriteTimeout,
		BufferSize:     c.Relay.BufferSize,
	}
}

// HTTPAddr returns the status API listen address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
