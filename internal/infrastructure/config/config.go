package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the rpihome server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Hardware HardwareConfig `yaml:"hardware"`
	Switches SwitchesConfig `yaml:"switches"`
	Command  CommandConfig  `yaml:"command"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Database DatabaseConfig `yaml:"database"`

	// EnvFile is an optional dotenv file whose values are applied as
	// overrides before the process environment. Relative paths resolve
	// against the config file's directory.
	EnvFile string `yaml:"env_file"`
}

// ServerConfig contains HTTP server and dispatch settings.
type ServerConfig struct {
	// Address is the bind address in host:port form.
	Address string `yaml:"address"`

	// ProtectedKey is the shared secret checked by protected methods.
	ProtectedKey string `yaml:"protected_key"`

	// MaxBodyBytes caps the request body read into memory before dispatch.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Compression enables gzip/zstd response compression.
	Compression bool `yaml:"compression"`

	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig contains HTTP timeout settings (seconds).
type TimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`

	// ConfigFile optionally points at a YAML file holding a logging
	// section (level/format/output) that overrides the inline values.
	ConfigFile string `yaml:"config_file"`
}

// HardwareConfig selects and configures the device drivers.
type HardwareConfig struct {
	// Driver is "periph" for real GPIO/PWM hardware or "simulated".
	Driver      string            `yaml:"driver"`
	WaterSensor WaterSensorConfig `yaml:"water_sensor"`
	WaterPump   WaterPumpConfig   `yaml:"water_pump"`
	Servo       ServoConfig       `yaml:"servo"`
	Camera      CameraConfig      `yaml:"camera"`
	Simulated   SimulatedConfig   `yaml:"simulated"`
}

// WaterSensorConfig configures the power-and-sample water level sensor.
type WaterSensorConfig struct {
	PowerPin         string  `yaml:"power_pin"`
	InputPin         string  `yaml:"input_pin"`
	SettleMS         int     `yaml:"settle_ms"`
	Samples          int     `yaml:"samples"`
	SampleIntervalMS int     `yaml:"sample_interval_ms"`
	Threshold        float64 `yaml:"threshold"`
}

// WaterPumpConfig configures the timed water pump.
type WaterPumpConfig struct {
	PowerPin           string `yaml:"power_pin"`
	MaxDurationSeconds int    `yaml:"max_duration_seconds"`
}

// ServoConfig configures the PWM servo.
type ServoConfig struct {
	Pin         string `yaml:"pin"`
	FrequencyHz int    `yaml:"frequency_hz"`
}

// CameraConfig configures the still capture command.
type CameraConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	WarmupMS       int      `yaml:"warmup_ms"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// SimulatedConfig configures the simulated drivers.
type SimulatedConfig struct {
	WaterEnough bool `yaml:"water_enough"`
}

// SwitchesConfig contains switch peer notification settings.
type SwitchesConfig struct {
	NotifyMethodID int32 `yaml:"notify_method_id"`
}

// CommandConfig bounds the peer command protocol.
type CommandConfig struct {
	TimeoutMS        int   `yaml:"timeout_ms"`
	MaxResponseBytes int64 `yaml:"max_response_bytes"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite settings for the action journal.
// An empty Path disables the journal.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Hardware driver names.
const (
	DriverPeriph    = "periph"
	DriverSimulated = "simulated"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Logging config file, if referenced
//  4. Dotenv file values, then the process environment
//
// Environment variables follow the pattern: RPIHOME_SECTION_KEY
// For example: RPIHOME_SERVER_ADDRESS, RPIHOME_PROTECTED_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	baseDir := filepath.Dir(path)

	if cfg.Logging.ConfigFile != "" {
		if err := loadLoggingFile(&cfg.Logging, resolvePath(baseDir, cfg.Logging.ConfigFile)); err != nil {
			return nil, err
		}
	}

	env := map[string]string{}
	if cfg.EnvFile != "" {
		env, err = godotenv.Read(resolvePath(baseDir, cfg.EnvFile))
		if err != nil {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
	}
	applyEnvOverrides(cfg, func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return env[key]
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadLoggingFile overlays a referenced logging config onto cfg.
// The file may hold either a top-level "logging:" section or bare fields.
func loadLoggingFile(cfg *LoggingConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading logging config file: %w", err)
	}

	var wrapped struct {
		Logging *LoggingConfig `yaml:"logging"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("parsing logging config file: %w", err)
	}
	if wrapped.Logging != nil {
		mergeLogging(cfg, *wrapped.Logging)
		return nil
	}

	var bare LoggingConfig
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return fmt.Errorf("parsing logging config file: %w", err)
	}
	mergeLogging(cfg, bare)
	return nil
}

func mergeLogging(dst *LoggingConfig, src LoggingConfig) {
	if src.Level != "" {
		dst.Level = src.Level
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.Output != "" {
		dst.Output = src.Output
	}
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "0.0.0.0:8080",
			MaxBodyBytes: 1 << 20,
			Compression:  true,
			Timeouts: TimeoutConfig{
				Read:  30,
				Write: 90,
				Idle:  120,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Hardware: HardwareConfig{
			Driver: DriverPeriph,
			WaterSensor: WaterSensorConfig{
				PowerPin:         "GPIO17",
				InputPin:         "GPIO27",
				SettleMS:         1000,
				Samples:          5,
				SampleIntervalMS: 20,
				Threshold:        0.5,
			},
			WaterPump: WaterPumpConfig{
				PowerPin:           "GPIO5",
				MaxDurationSeconds: 60,
			},
			Servo: ServoConfig{
				Pin:         "GPIO18",
				FrequencyHz: 50,
			},
			Camera: CameraConfig{
				Command:        "libcamera-still",
				Args:           []string{"--nopreview", "--encoding", "jpg", "--output", "-"},
				WarmupMS:       2000,
				TimeoutSeconds: 5,
			},
		},
		Switches: SwitchesConfig{
			NotifyMethodID: 1,
		},
		Command: CommandConfig{
			TimeoutMS:        2000,
			MaxResponseBytes: 1 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "rpihome",
			},
			QoS:         1,
			TopicPrefix: "rpihome",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// lookup returns "" for unset keys.
func applyEnvOverrides(cfg *Config, lookup func(string) string) {
	if v := lookup("RPIHOME_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	// The shared secret should come from the environment in production.
	if v := lookup("RPIHOME_PROTECTED_KEY"); v != "" {
		cfg.Server.ProtectedKey = v
	}
	if v := lookup("RPIHOME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := lookup("RPIHOME_HARDWARE_DRIVER"); v != "" {
		cfg.Hardware.Driver = v
	}

	// MQTT
	if v := lookup("RPIHOME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := lookup("RPIHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := lookup("RPIHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := lookup("RPIHOME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := lookup("RPIHOME_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if err := validateAddress(c.Server.Address); err != nil {
		errs = append(errs, fmt.Sprintf("server.address: %v", err))
	}
	if c.Server.ProtectedKey == "" {
		errs = append(errs, "server.protected_key is required (set RPIHOME_PROTECTED_KEY environment variable)")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, "server.max_body_bytes must be positive")
	}

	switch c.Hardware.Driver {
	case DriverPeriph, DriverSimulated:
	default:
		errs = append(errs, fmt.Sprintf("hardware.driver must be %q or %q", DriverPeriph, DriverSimulated))
	}
	if c.Hardware.WaterSensor.Samples < 1 {
		errs = append(errs, "hardware.water_sensor.samples must be at least 1")
	}
	if t := c.Hardware.WaterSensor.Threshold; t <= 0 || t > 1 {
		errs = append(errs, "hardware.water_sensor.threshold must be in (0, 1]")
	}
	if c.Hardware.WaterPump.MaxDurationSeconds < 1 {
		errs = append(errs, "hardware.water_pump.max_duration_seconds must be at least 1")
	}
	if c.Hardware.Camera.TimeoutSeconds < 1 {
		errs = append(errs, "hardware.camera.timeout_seconds must be at least 1")
	}

	if w := c.Server.Timeouts.Write; w > 0 {
		if need := c.longestHardwareCall() + writeTimeoutMargin; c.GetWriteTimeout() < need {
			errs = append(errs, fmt.Sprintf("server.timeouts.write must be at least %v to cover the longest water or camera request", need))
		}
	}

	if c.Command.TimeoutMS <= 0 {
		errs = append(errs, "command.timeout_ms must be positive")
	}
	if c.Command.MaxResponseBytes <= 0 {
		errs = append(errs, "command.max_response_bytes must be positive")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// writeTimeoutMargin is the headroom kept between the longest hardware
// call and the response write deadline.
const writeTimeoutMargin = 5 * time.Second

// longestHardwareCall is the worst case time a single request can spend
// on hardware: a full water sensor pulse plus the maximum pump run, or a
// camera capture, whichever is longer.
func (c *Config) longestHardwareCall() time.Duration {
	ws := c.Hardware.WaterSensor
	water := time.Duration(ws.SettleMS)*time.Millisecond +
		time.Duration(ws.Samples*ws.SampleIntervalMS)*time.Millisecond +
		time.Duration(c.Hardware.WaterPump.MaxDurationSeconds)*time.Second
	camera := time.Duration(c.Hardware.Camera.WarmupMS)*time.Millisecond +
		time.Duration(c.Hardware.Camera.TimeoutSeconds)*time.Second
	return max(water, camera)
}

// validateAddress checks a host:port bind address.
func validateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host != "" && net.ParseIP(host) == nil && host != "localhost" {
		return fmt.Errorf("invalid host %q", host)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return errors.New("port must be between 0 and 65535")
	}
	return nil
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// GetCommandTimeout returns the peer command timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Command.TimeoutMS) * time.Millisecond
}
