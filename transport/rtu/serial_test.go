// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	gridx "github.com/grid-x/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bugst "go.bug.st/serial"

	"github.com/ffutop/rtu-slave/internal/config"
	"github.com/ffutop/rtu-slave/transport"
)

// mockDevice returns one queued chunk per Read and times out when empty.
type mockDevice struct {
	chunks [][]byte
	eof    bool
	out    bytes.Buffer
	closed bool
}

func (d *mockDevice) Read(p []byte) (int, error) {
	if len(d.chunks) == 0 {
		if d.eof {
			return 0, io.EOF
		}
		return 0, gridx.ErrTimeout
	}
	n := copy(p, d.chunks[0])
	d.chunks = d.chunks[1:]
	return n, nil
}

func (d *mockDevice) Write(p []byte) (int, error) { return d.out.Write(p) }

func (d *mockDevice) Close() error {
	d.closed = true
	return nil
}

func newMockPort(t *testing.T, devs ...*mockDevice) *SerialPort {
	t.Helper()
	p, err := NewSerialPort(config.SerialConfig{Device: "/dev/ttyMOCK0", BaudRate: 19200})
	require.NoError(t, err)
	opened := 0
	p.open = func(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
		if opened == len(devs) {
			return nil, errors.New("no such device")
		}
		d := devs[opened]
		opened++
		return d, nil
	}
	return p
}

func TestNewSerialPort(t *testing.T) {
	p, err := NewSerialPort(config.SerialConfig{Device: "/dev/ttyS0"})
	require.NoError(t, err)
	assert.Equal(t, DriverGridX, p.cfg.Driver)
	assert.Equal(t, serialTimeout, p.cfg.Timeout)

	_, err = NewSerialPort(config.SerialConfig{Device: "/dev/ttyS0", Driver: "termios"})
	assert.Error(t, err)
}

func TestSerialPort_Poll(t *testing.T) {
	dev := &mockDevice{chunks: [][]byte{{0x01, 0x03}, {0x00}}}
	p := newMockPort(t, dev)

	var got []byte
	for i := 0; i < 5; i++ {
		b, ok, err := p.Poll()
		require.NoError(t, err)
		if ok {
			got = append(got, b)
		}
	}
	assert.Equal(t, []byte{0x01, 0x03, 0x00}, got)

	require.NoError(t, p.Send([]byte{0xAA, 0xBB}))
	assert.Equal(t, []byte{0xAA, 0xBB}, dev.out.Bytes())
}

func TestSerialPort_Reopen(t *testing.T) {
	first := &mockDevice{eof: true}
	second := &mockDevice{chunks: [][]byte{{0x42}}}
	p := newMockPort(t, first, second)

	_, _, err := p.Poll()
	require.ErrorIs(t, err, errDeviceLost)
	assert.False(t, errors.Is(err, transport.ErrClosed))
	assert.True(t, first.closed)

	// Quiet until the reopen delay has passed.
	_, ok, err := p.Poll()
	require.NoError(t, err)
	assert.False(t, ok)

	p.lastFailed = time.Now().Add(-serialReopenDelay)
	b, ok, err := p.Poll()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte(0x42), b)
}

func TestSerialPort_OpenFailure(t *testing.T) {
	p := newMockPort(t)

	_, _, err := p.Poll()
	assert.Error(t, err)
	_, _, err = p.Poll()
	assert.NoError(t, err)
}

func TestSerialPort_Close(t *testing.T) {
	dev := &mockDevice{}
	p := newMockPort(t, dev)
	require.NoError(t, p.Connect())
	require.NoError(t, p.Close())
	assert.True(t, dev.closed)

	_, _, err := p.Poll()
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestBugstMode(t *testing.T) {
	mode, err := bugstMode(config.SerialConfig{BaudRate: 9600, DataBits: 8, Parity: "E", StopBits: 1})
	require.NoError(t, err)
	assert.Equal(t, &bugst.Mode{BaudRate: 9600, DataBits: 8, Parity: bugst.EvenParity, StopBits: bugst.OneStopBit}, mode)

	mode, err = bugstMode(config.SerialConfig{BaudRate: 19200, DataBits: 8, Parity: "N", StopBits: 2})
	require.NoError(t, err)
	assert.Equal(t, bugst.NoParity, mode.Parity)
	assert.Equal(t, bugst.TwoStopBits, mode.StopBits)

	_, err = bugstMode(config.SerialConfig{Parity: "M"})
	assert.Error(t, err)
	_, err = bugstMode(config.SerialConfig{StopBits: 3})
	assert.Error(t, err)
}
