// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"fmt"
	"log/slog"
	"sync"
)

// Counter identifies a diagnostic counter kept by the Engine.
type Counter int

const (
	// CntBusMessages counts every frame the assembler delimited.
	CntBusMessages Counter = iota
	CntCRCErrors
	CntShortFrames
	CntOverruns
	// CntSlaveMessages counts frames addressed to this station, broadcasts included.
	CntSlaveMessages
	CntExceptions
	// CntNoResponse counts broadcasts executed without a reply.
	CntNoResponse

	cntNum = iota
)

var counterNames = [cntNum]string{
	"bus_messages",
	"crc_errors",
	"short_frames",
	"overruns",
	"slave_messages",
	"exceptions",
	"no_response",
}

func (c Counter) String() string {
	if c < 0 || int(c) >= cntNum {
		return fmt.Sprintf("Counter(%d)", int(c))
	}
	return counterNames[c]
}

// Counters is a snapshot of all diagnostic counters.
type Counters [cntNum]uint64

// Get returns the value of one counter.
func (cs Counters) Get(c Counter) uint64 {
	if c < 0 || int(c) >= cntNum {
		return 0
	}
	return cs[c]
}

// LogValue renders the snapshot as a slog group.
func (cs Counters) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, cntNum)
	for i, v := range cs {
		attrs = append(attrs, slog.Uint64(counterNames[i], v))
	}
	return slog.GroupValue(attrs...)
}

type counters struct {
	sync.Mutex
	ca Counters
}

func (c *counters) Inc(cnt Counter) {
	c.Lock()
	defer c.Unlock()
	if cnt < 0 || int(cnt) >= cntNum {
		return
	}
	c.ca[cnt]++
}

func (c *counters) Snapshot() Counters {
	c.Lock()
	defer c.Unlock()
	return c.ca
}

