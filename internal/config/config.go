// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ffutop/rtu-slave/internal/store"
	rtupacket "github.com/ffutop/rtu-slave/modbus/rtu"
)

const (
	minStation = 1
	maxStation = 247

	// A TCP stream has no character timing; 40ms of silence ends a frame.
	tcpFrameTimeout = 40 * time.Millisecond
)

// Config defines the global configuration structure
type Config struct {
	Slave         SlaveConfig     `mapstructure:"slave"`
	Store         StoreConfig     `mapstructure:"store"`
	Transport     TransportConfig `mapstructure:"transport"`
	Serial        SerialConfig    `mapstructure:"serial"`
	Log           LogConfig       `mapstructure:"log"`
	StatsInterval time.Duration   `mapstructure:"stats_interval"` // 0 disables counter logging
}

// SlaveConfig defines the station identity and its data model
type SlaveConfig struct {
	Station          int `mapstructure:"station"`
	store.Capacities `mapstructure:",squash"`
	FrameTimeout     time.Duration `mapstructure:"frame_timeout"` // 0 derives it from the baud rate
}

// StoreConfig defines the memory backing the four banks
type StoreConfig struct {
	Type string `mapstructure:"type"` // "memory", "mmap"
	Path string `mapstructure:"path"` // Register image file for "mmap"
}

// TransportConfig selects how bytes reach the slave
type TransportConfig struct {
	Type    string `mapstructure:"type"`    // "serial", "rtu-over-tcp"
	Address string `mapstructure:"address"` // Listen address for "rtu-over-tcp", e.g. "0.0.0.0:4001"
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Driver   string        `mapstructure:"driver"` // "gridx", "bugst"
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"` // Bounded read wait

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"station":   "slave.station",
	"device":    "serial.device",
	"baud_rate": "serial.baud_rate",
	"log_level": "log.level",
}

// Flags defines the command line flags LoadConfig understands.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("rtuslave", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.IntP("station", "s", 1, "Slave station address (1-247).")
	fs.StringP("device", "p", "/dev/ttyUSB0", "Serial port device name.")
	fs.IntP("baud_rate", "b", 19200, "Serial port speed.")
	fs.StringP("log_level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	return fs
}

// LoadConfig loads configuration from file, then applies the flags that
// were set on the command line. flags may be nil.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/rtuslave/")
		v.AddConfigPath("$HOME/.rtuslave")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("slave.station", 1)
	v.SetDefault("slave.coils", store.DefaultCapacity)
	v.SetDefault("slave.discrete_inputs", store.DefaultCapacity)
	v.SetDefault("slave.holding_registers", store.DefaultCapacity)
	v.SetDefault("slave.input_registers", store.DefaultCapacity)
	v.SetDefault("slave.frame_timeout", 0)
	v.SetDefault("store.type", "memory")
	v.SetDefault("transport.type", "serial")
	v.SetDefault("serial.driver", "gridx")
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 19200)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.timeout", 10*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("stats_interval", time.Minute)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Flags and defaults are enough to run without a file.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)
	config.Log.Level = strings.ToLower(config.Log.Level)
	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	s.Driver = strings.ToLower(s.Driver)
}

// Validate checks the settings once at start-up.
func (c *Config) Validate() error {
	if c.Slave.Station < minStation || c.Slave.Station > maxStation {
		return fmt.Errorf("slave.station %d out of range [%d, %d]", c.Slave.Station, minStation, maxStation)
	}
	if err := c.Slave.Capacities.Validate(); err != nil {
		return err
	}
	if c.Slave.FrameTimeout < 0 {
		return fmt.Errorf("slave.frame_timeout %v is negative", c.Slave.FrameTimeout)
	}

	switch c.Store.Type {
	case "memory":
	case "mmap":
		if c.Store.Path == "" {
			return errors.New("store.path is required for mmap store")
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	switch c.Transport.Type {
	case "serial":
		if err := c.Serial.validate(); err != nil {
			return err
		}
	case "rtu-over-tcp":
		if c.Transport.Address == "" {
			return errors.New("transport.address is required for rtu-over-tcp")
		}
	default:
		return fmt.Errorf("unknown transport type %q", c.Transport.Type)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

func (s *SerialConfig) validate() error {
	if s.Device == "" {
		return errors.New("serial.device is required")
	}
	if s.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate %d must be positive", s.BaudRate)
	}
	switch s.Driver {
	case "gridx", "bugst":
	default:
		return fmt.Errorf("unknown serial driver %q", s.Driver)
	}
	switch s.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("unknown serial parity %q", s.Parity)
	}
	if s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("serial.stop_bits %d must be 1 or 2", s.StopBits)
	}
	return nil
}

// FrameTimeout returns the silence that ends a frame: the configured value,
// or 3.5 character times at the serial baud rate.
func (c *Config) FrameTimeout() time.Duration {
	if c.Slave.FrameTimeout > 0 {
		return c.Slave.FrameTimeout
	}
	if c.Transport.Type == "rtu-over-tcp" {
		return tcpFrameTimeout
	}
	return rtupacket.FrameDelay(c.Serial.BaudRate)
}
