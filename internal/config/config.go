// Package config loads daemon settings from defaults, an optional YAML file
// and STEP_SENSOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/step-sensor/internal/ingest"
)

// EnvPrefix is prepended to every environment override, e.g.
// STEP_SENSOR_COLLECTOR_HOST for collector.host.
const EnvPrefix = "STEP_SENSOR"

// Sample sources.
const (
	SourceCollector = "collector"
	SourceSerial    = "serial"
)

type Config struct {
	UserID    string          `mapstructure:"user_id"`
	Collector CollectorConfig `mapstructure:"collector"`
	Serial    SerialConfig    `mapstructure:"serial"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	LED       LEDConfig       `mapstructure:"led"`
	Heartbeat time.Duration   `mapstructure:"heartbeat"`
	QueueSize int             `mapstructure:"queue_size"`
}

// CollectorConfig describes the data collection server. Samples arrive on
// the receive port; step notifications leave on the send port.
type CollectorConfig struct {
	Host        string        `mapstructure:"host"`
	ReceivePort int           `mapstructure:"receive_port"`
	SendPort    int           `mapstructure:"send_port"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

func (c CollectorConfig) ReceiveAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.ReceivePort))
}

func (c CollectorConfig) SendAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.SendPort))
}

// SerialConfig selects a local serial port instead of the collector stream.
type SerialConfig struct {
	Path               string `mapstructure:"path"`
	ingest.PortOptions `mapstructure:",squash"`
}

type MQTTConfig struct {
	Broker     string `mapstructure:"broker"` // empty disables MQTT
	ClientID   string `mapstructure:"client_id"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the status server
}

type LEDConfig struct {
	Chip  string        `mapstructure:"chip"`
	Pin   int           `mapstructure:"pin"` // 0 disables the LED
	Pulse time.Duration `mapstructure:"pulse"`
}

// Source reports where samples come from: the serial port when one is
// configured, otherwise the collector.
func (c Config) Source() string {
	if c.Serial.Path != "" {
		return SourceSerial
	}
	return SourceCollector
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user_id", "")
	v.SetDefault("collector.host", "none.cs.umass.edu")
	v.SetDefault("collector.receive_port", 8888)
	v.SetDefault("collector.send_port", 9999)
	v.SetDefault("collector.auth_timeout", 5*time.Second)
	v.SetDefault("serial.path", "")
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "step-sensor")
	v.SetDefault("mqtt.buffer_size", 100)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("led.chip", "gpiochip0")
	v.SetDefault("led.pin", 0)
	v.SetDefault("led.pulse", 100*time.Millisecond)
	v.SetDefault("heartbeat", 15*time.Minute)
	v.SetDefault("queue_size", 256)
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, _ := Load("")
	return cfg
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

var ErrNoUserID = errors.New("config: user_id is required")

// Validate checks the settings the daemon cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrNoUserID
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("config: queue_size must be positive, got %d", c.QueueSize)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("config: heartbeat must not be negative, got %s", c.Heartbeat)
	}

	if c.Source() == SourceSerial {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("config: serial: %w", err)
		}
	} else if c.Collector.Host == "" {
		return errors.New("config: collector.host is required without a serial port")
	}

	// The send session carries step notifications in both modes.
	if c.Collector.Host != "" {
		for name, port := range map[string]int{
			"collector.receive_port": c.Collector.ReceivePort,
			"collector.send_port":    c.Collector.SendPort,
		} {
			if port <= 0 || port > 65535 {
				return fmt.Errorf("config: %s out of range: %d", name, port)
			}
		}
	}

	if c.LED.Pin < 0 {
		return fmt.Errorf("config: led.pin must not be negative, got %d", c.LED.Pin)
	}
	return nil
}
