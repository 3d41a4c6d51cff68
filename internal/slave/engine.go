// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/rtu-slave/internal/store"
	"github.com/ffutop/rtu-slave/modbus"
	rtupacket "github.com/ffutop/rtu-slave/modbus/rtu"
	"github.com/ffutop/rtu-slave/transport"
)

const (
	minStation = 1
	maxStation = 247
)

// Config holds the engine settings fixed at start-up.
type Config struct {
	Station       byte
	FrameTimeout  time.Duration
	StatsInterval time.Duration
}

// Engine is the poll driven slave loop. It is not safe for concurrent use:
// a single goroutine calls Poll or Run. The store may be updated by the
// application concurrently through its own methods.
type Engine struct {
	station       byte
	statsInterval time.Duration

	store *store.Store
	port  transport.Port
	clock transport.Clock
	asm   *rtupacket.Assembler

	counters  counters
	lastStats time.Duration
}

// NewEngine wires the engine to an existing store and port.
func NewEngine(cfg Config, s *store.Store, port transport.Port, clock transport.Clock) (*Engine, error) {
	if cfg.Station < minStation || cfg.Station > maxStation {
		return nil, fmt.Errorf("slave: station address %d out of range [%d, %d]", cfg.Station, minStation, maxStation)
	}
	if s == nil || port == nil {
		return nil, errors.New("slave: store and port are required")
	}
	asm, err := rtupacket.NewAssembler(cfg.FrameTimeout)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = transport.NewClock()
	}
	return &Engine{
		station:       cfg.Station,
		statsInterval: cfg.StatsInterval,
		store:         s,
		port:          port,
		clock:         clock,
		asm:           asm,
	}, nil
}

// Counters returns a snapshot of the diagnostic counters.
func (e *Engine) Counters() Counters {
	return e.counters.Snapshot()
}

// Run polls until ctx is done or the port is closed. Transport errors
// other than transport.ErrClosed are logged and the loop carries on.
func (e *Engine) Run(ctx context.Context) error {
	idle := e.asm.Timeout() / 4
	if idle < 100*time.Microsecond {
		idle = 100 * time.Microsecond
	}
	slog.Info("RTU slave running", "station", e.station, "frameTimeout", e.asm.Timeout())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := e.poll()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			slog.Error("Transport failure", "err", err)
			e.asm.Reset()
			time.Sleep(e.asm.Timeout())
			continue
		}
		e.logStats()
		if n == 0 {
			time.Sleep(idle)
		}
	}
}

// Poll drains the bytes the port has available, then checks the frame
// timer. Complete frames are served before Poll returns.
func (e *Engine) Poll() error {
	_, err := e.poll()
	return err
}

func (e *Engine) poll() (int, error) {
	var n int
	// Bounded so a chattering line cannot hold the loop forever.
	for n < rtupacket.MaxSize {
		b, ok, err := e.port.Poll()
		if err != nil {
			return n, fmt.Errorf("slave: receive failed: %w", err)
		}
		if !ok {
			break
		}
		n++
		frame, err := e.asm.Push(b, e.clock.Elapsed())
		if err != nil {
			e.counters.Inc(CntOverruns)
			slog.Warn("Receive buffer overrun, discarding frame", "err", err)
		}
		if frame != nil {
			if err := e.serve(frame); err != nil {
				return n, err
			}
		}
	}
	if frame := e.asm.Poll(e.clock.Elapsed()); frame != nil {
		if err := e.serve(frame); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (e *Engine) serve(frame []byte) error {
	resp := e.Handle(frame)
	if resp == nil {
		return nil
	}
	slog.Debug("send to modbus master", "response", hex.EncodeToString(resp))
	if err := e.port.Send(resp); err != nil {
		return fmt.Errorf("slave: send failed: %w", err)
	}
	return nil
}

// Handle runs one complete frame through decode, dispatch and encode and
// returns the reply, or nil when the frame must go unanswered.
func (e *Engine) Handle(frame []byte) []byte {
	e.counters.Inc(CntBusMessages)
	slog.Debug("recv from modbus master", "request", hex.EncodeToString(frame))

	ind, err := Decode(frame, e.station, e.store.Capacities())
	var pdu modbus.ProtocolDataUnit
	var exc *modbus.ExceptionError
	switch {
	case err == nil:
		e.counters.Inc(CntSlaveMessages)
		pdu = Dispatch(e.store, ind.Request)
	case errors.As(err, &exc):
		e.counters.Inc(CntSlaveMessages)
		pdu = exc.PDU()
	case errors.Is(err, rtupacket.ErrShortFrame):
		e.counters.Inc(CntShortFrames)
		slog.Debug("Dropping frame", "err", err)
		return nil
	case errors.Is(err, rtupacket.ErrCRCMismatch):
		e.counters.Inc(CntCRCErrors)
		slog.Debug("Dropping frame", "err", err)
		return nil
	default:
		return nil
	}

	if pdu.IsException() {
		e.counters.Inc(CntExceptions)
		slog.Info("Exception response", "slaveID", ind.SlaveID, "func", ind.FunctionCode, "code", pdu.Data[0])
	}
	if ind.Broadcast() {
		e.counters.Inc(CntNoResponse)
		return nil
	}

	resp, err := EncodeResponse(ind.SlaveID, pdu)
	if err != nil {
		slog.Error("Failed to encode response", "err", err)
		return nil
	}
	return resp
}

func (e *Engine) logStats() {
	if e.statsInterval <= 0 {
		return
	}
	now := e.clock.Elapsed()
	if now-e.lastStats < e.statsInterval {
		return
	}
	e.lastStats = now
	slog.Debug("RTU slave counters", "counters", e.Counters())
}
