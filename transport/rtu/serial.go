// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	gridx "github.com/grid-x/serial"
	bugst "go.bug.st/serial"

	"github.com/ffutop/rtu-slave/internal/config"
	"github.com/ffutop/rtu-slave/transport"
)

const (
	// Serial drivers selectable through serial.driver.
	DriverGridX = "gridx"
	DriverBugst = "bugst"

	// Default bounded read wait
	serialTimeout = 10 * time.Millisecond
	// Pause before reopening a device that failed or went away
	serialReopenDelay = time.Second
)

// errDeviceLost is returned once when an open device stops delivering data.
// The next Poll after the reopen delay tries to open it again.
var errDeviceLost = errors.New("serial: device lost")

type opener func(cfg config.SerialConfig) (io.ReadWriteCloser, error)

var openers = map[string]opener{
	DriverGridX: openGridX,
	DriverBugst: openBugst,
}

// SerialPort is a transport.Port on a local serial line. The device is
// opened on first use and reopened after a failure.
type SerialPort struct {
	cfg  config.SerialConfig
	open opener

	mu sync.Mutex
	// stream is nil while the device is not open.
	stream     *transport.Stream
	lastFailed time.Time
	closed     bool
}

// NewSerialPort checks cfg and returns an unopened port.
func NewSerialPort(cfg config.SerialConfig) (*SerialPort, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverGridX
	}
	open, ok := openers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("serial: unknown driver %q", cfg.Driver)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = serialTimeout
	}
	return &SerialPort{cfg: cfg, open: open}, nil
}

// Connect opens the device if it is not open yet.
func (p *SerialPort) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connect()
}

// connect opens the device. Caller must hold the mutex.
func (p *SerialPort) connect() error {
	if p.closed {
		return transport.ErrClosed
	}
	if p.stream != nil {
		return nil
	}
	rw, err := p.open(p.cfg)
	if err != nil {
		p.lastFailed = time.Now()
		return fmt.Errorf("could not open %s: %w", p.cfg.Device, err)
	}
	p.stream = transport.NewStream(rw, isTimeout)
	slog.Info("Serial port opened", "device", p.cfg.Device, "driver", p.cfg.Driver, "baudRate", p.cfg.BaudRate)
	return nil
}

func (p *SerialPort) Poll() (byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil && !p.closed && time.Since(p.lastFailed) < serialReopenDelay {
		return 0, false, nil
	}
	if err := p.connect(); err != nil {
		return 0, false, err
	}
	b, ok, err := p.stream.Poll()
	if err != nil {
		p.drop()
		if errors.Is(err, transport.ErrClosed) {
			err = errDeviceLost
		}
		return 0, false, fmt.Errorf("%s: %w", p.cfg.Device, err)
	}
	return b, ok, nil
}

func (p *SerialPort) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(); err != nil {
		return err
	}
	if err := p.stream.Send(frame); err != nil {
		p.drop()
		return fmt.Errorf("%s: %w", p.cfg.Device, err)
	}
	return nil
}

func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.stream == nil {
		return nil
	}
	err := p.stream.Close()
	p.stream = nil
	return err
}

// drop closes a failed device. Caller must hold the mutex.
func (p *SerialPort) drop() {
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			slog.Debug("Closing failed serial port", "device", p.cfg.Device, "err", err)
		}
		p.stream = nil
	}
	p.lastFailed = time.Now()
}

func isTimeout(err error) bool {
	return errors.Is(err, gridx.ErrTimeout)
}

func openGridX(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	return gridx.Open(&gridx.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout,
		RS485: gridx.RS485Config{
			Enabled:            cfg.RS485,
			DelayRtsBeforeSend: cfg.DelayRtsBeforeSend,
			DelayRtsAfterSend:  cfg.DelayRtsAfterSend,
			RtsHighDuringSend:  cfg.RtsHighDuringSend,
			RtsHighAfterSend:   cfg.RtsHighAfterSend,
			RxDuringTx:         cfg.RxDuringTx,
		},
	})
}

func openBugst(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	mode, err := bugstMode(cfg)
	if err != nil {
		return nil, err
	}
	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, err
	}
	// Read returns (0, nil) once the timeout expires.
	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

func bugstMode(cfg config.SerialConfig) (*bugst.Mode, error) {
	mode := &bugst.Mode{BaudRate: cfg.BaudRate, DataBits: cfg.DataBits}
	switch cfg.Parity {
	case "N", "":
		mode.Parity = bugst.NoParity
	case "E":
		mode.Parity = bugst.EvenParity
	case "O":
		mode.Parity = bugst.OddParity
	default:
		return nil, fmt.Errorf("serial: unsupported parity %q", cfg.Parity)
	}
	switch cfg.StopBits {
	case 1, 0:
		mode.StopBits = bugst.OneStopBit
	case 2:
		mode.StopBits = bugst.TwoStopBits
	default:
		return nil, fmt.Errorf("serial: unsupported stop bits %d", cfg.StopBits)
	}
	return mode, nil
}
