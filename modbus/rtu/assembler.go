// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"time"
)

// ErrFrameOverflow is returned by Push when the receive buffer fills up
// before the line goes silent. The buffered bytes are discarded.
var ErrFrameOverflow = fmt.Errorf("modbus: frame exceeds %d bytes", MaxSize)

var errNoTimeout = errors.New("modbus: frame timeout must be positive")

// State is the receive state of an Assembler.
type State int

const (
	StateIdle State = iota
	StateReceiving
	// StateDiscarding ignores the rest of an overflowed burst until the line is silent.
	StateDiscarding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateDiscarding:
		return "discarding"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Assembler splits a byte stream into frames using line silence as the
// delimiter. It keeps no clock of its own: every call carries the current
// reading of a monotonic time source.
type Assembler struct {
	timeout time.Duration
	state   State
	frame   Frame
	last    time.Duration
}

// NewAssembler returns an Assembler closing frames after timeout of silence.
func NewAssembler(timeout time.Duration) (*Assembler, error) {
	if timeout <= 0 {
		return nil, errNoTimeout
	}
	return &Assembler{timeout: timeout}, nil
}

// Timeout returns the inter-frame silence.
func (a *Assembler) Timeout() time.Duration { return a.timeout }

// State returns the current receive state.
func (a *Assembler) State() State { return a.state }

// Buffered returns the number of bytes accumulated for the pending frame.
func (a *Assembler) Buffered() int { return a.frame.Len() }

// Push appends b received at now. If the line was silent long enough before
// b, the previously accumulated frame is complete and returned; b then starts
// the next one. ErrFrameOverflow reports that b filled the buffer.
func (a *Assembler) Push(b byte, now time.Duration) (frame []byte, err error) {
	if a.expired(now) {
		frame = a.flush()
	}
	a.last = now
	if a.state == StateDiscarding {
		return frame, nil
	}
	a.state = StateReceiving
	if !a.frame.Append(b) {
		a.frame.Reset()
		a.state = StateDiscarding
		err = ErrFrameOverflow
	}
	return frame, err
}

// Poll returns the pending frame once the line has been silent for the
// frame timeout, or nil.
func (a *Assembler) Poll(now time.Duration) []byte {
	if !a.expired(now) {
		return nil
	}
	return a.flush()
}

// Reset drops any partial frame.
func (a *Assembler) Reset() {
	a.frame.Reset()
	a.state = StateIdle
}

func (a *Assembler) expired(now time.Duration) bool {
	return a.state != StateIdle && now-a.last >= a.timeout
}

func (a *Assembler) flush() []byte {
	var frame []byte
	if a.state == StateReceiving && a.frame.Len() > 0 {
		frame = a.frame.Bytes()
	}
	a.Reset()
	return frame
}
