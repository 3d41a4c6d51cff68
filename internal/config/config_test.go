// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/rtu-slave/internal/store"
)

const sampleConfig = `
slave:
  station: 17
  coils: 16
  holding_registers: 1000
  frame_timeout: 5ms
store:
  type: mmap
  path: /run/rtuslave/registers.img
transport:
  type: serial
serial:
  driver: BUGST
  device: /dev/ttyS1
  baud_rate: 9600
  parity: e
  stop_bits: 1
  rs485: true
  delay_rts_before_send: 1ms
log:
  level: DEBUG
stats_interval: 30s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 17, cfg.Slave.Station)
	assert.Equal(t, store.Capacities{
		Coils:            16,
		DiscreteInputs:   store.DefaultCapacity,
		HoldingRegisters: 1000,
		InputRegisters:   store.DefaultCapacity,
	}, cfg.Slave.Capacities)
	assert.Equal(t, 5*time.Millisecond, cfg.FrameTimeout())
	assert.Equal(t, StoreConfig{Type: "mmap", Path: "/run/rtuslave/registers.img"}, cfg.Store)
	assert.Equal(t, "bugst", cfg.Serial.Driver)
	assert.Equal(t, "E", cfg.Serial.Parity)
	assert.Equal(t, 8, cfg.Serial.DataBits)
	assert.True(t, cfg.Serial.RS485)
	assert.Equal(t, time.Millisecond, cfg.Serial.DelayRtsBeforeSend)
	assert.Equal(t, 10*time.Millisecond, cfg.Serial.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.StatsInterval)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Slave.Station)
	assert.Equal(t, store.DefaultCapacities(), cfg.Slave.Capacities)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "serial", cfg.Transport.Type)
	assert.Equal(t, "gridx", cfg.Serial.Driver)
	assert.Equal(t, 19200, cfg.Serial.BaudRate)
	// 19200 baud is the last rate timed by character: 3.5 ten-bit characters.
	assert.Equal(t, 1822*time.Microsecond, cfg.FrameTimeout())
	assert.Equal(t, time.Minute, cfg.StatsInterval)
}

func TestLoadConfig_Flags(t *testing.T) {
	fs := Flags()
	require.NoError(t, fs.Parse([]string{"-s", "42", "--baud_rate", "9600", "-v", "warn"}))

	cfg, err := LoadConfig(writeConfig(t, sampleConfig), fs)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Slave.Station)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, "warn", cfg.Log.Level)
	// Flags left unset do not override the file.
	assert.Equal(t, "/dev/ttyS1", cfg.Serial.Device)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Slave:     SlaveConfig{Station: 1, Capacities: store.DefaultCapacities()},
			Store:     StoreConfig{Type: "memory"},
			Transport: TransportConfig{Type: "serial"},
			Serial:    SerialConfig{Driver: "gridx", Device: "/dev/ttyS0", BaudRate: 19200, Parity: "N", StopBits: 1},
			Log:       LogConfig{Level: "info"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"StationZero", func(c *Config) { c.Slave.Station = 0 }},
		{"StationTooHigh", func(c *Config) { c.Slave.Station = 248 }},
		{"CapacityTooLarge", func(c *Config) { c.Slave.Coils = store.MaxCapacity + 1 }},
		{"NegativeFrameTimeout", func(c *Config) { c.Slave.FrameTimeout = -time.Millisecond }},
		{"MmapWithoutPath", func(c *Config) { c.Store.Type = "mmap" }},
		{"UnknownStore", func(c *Config) { c.Store.Type = "sqlite" }},
		{"UnknownTransport", func(c *Config) { c.Transport.Type = "tcp" }},
		{"TCPWithoutAddress", func(c *Config) { c.Transport.Type = "rtu-over-tcp" }},
		{"NoDevice", func(c *Config) { c.Serial.Device = "" }},
		{"NoBaudRate", func(c *Config) { c.Serial.BaudRate = 0 }},
		{"UnknownDriver", func(c *Config) { c.Serial.Driver = "termios" }},
		{"UnknownParity", func(c *Config) { c.Serial.Parity = "M" }},
		{"StopBits", func(c *Config) { c.Serial.StopBits = 3 }},
		{"LogLevel", func(c *Config) { c.Log.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestFrameTimeout(t *testing.T) {
	c := &Config{Serial: SerialConfig{BaudRate: 9600}, Transport: TransportConfig{Type: "serial"}}
	assert.Equal(t, 3645*time.Microsecond, c.FrameTimeout())

	c.Serial.BaudRate = 19200
	assert.Equal(t, 1822*time.Microsecond, c.FrameTimeout())

	c.Serial.BaudRate = 19201
	assert.Equal(t, 1750*time.Microsecond, c.FrameTimeout())

	c.Transport.Type = "rtu-over-tcp"
	assert.Equal(t, tcpFrameTimeout, c.FrameTimeout())

	c.Slave.FrameTimeout = 3 * time.Millisecond
	assert.Equal(t, 3*time.Millisecond, c.FrameTimeout())
}
