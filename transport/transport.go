// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"errors"
	"time"
)

// ErrClosed is returned by a Port that can no longer receive.
var ErrClosed = errors.New("transport: port closed")

// Port is the byte level link to the bus master.
//
// Poll must not block for longer than a small bounded interval, well
// under the frame timeout, so the caller can service the inter-frame
// timer while the line is busy.
type Port interface {
	// Poll returns the next received byte, or ok == false when none is available.
	Poll() (b byte, ok bool, err error)
	// Send transmits a complete response frame.
	Send(frame []byte) error
	Close() error
}

// Clock is a monotonic time source.
type Clock interface {
	// Elapsed returns the time since an arbitrary fixed origin.
	Elapsed() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a Clock backed by the runtime monotonic clock.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Elapsed() time.Duration {
	return time.Since(c.start)
}
