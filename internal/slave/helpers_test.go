// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ffutop/rtu-slave/internal/store"
	"github.com/ffutop/rtu-slave/modbus/crc"
)

const (
	testStation = 0x01
	testTimeout = 2 * time.Millisecond
)

// frame appends the checksum to the address, function code and data bytes.
func frame(b ...byte) []byte {
	return crc.Append(b)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.DefaultCapacities(), store.NewMemoryBacking())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Elapsed() time.Duration { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now += d }

// fakePort hands out queued bytes one per Poll and records sent frames.
type fakePort struct {
	rx   []byte
	sent [][]byte
	err  error
}

func (p *fakePort) Poll() (byte, bool, error) {
	if p.err != nil {
		return 0, false, p.err
	}
	if len(p.rx) == 0 {
		return 0, false, nil
	}
	b := p.rx[0]
	p.rx = p.rx[1:]
	return b, true, nil
}

func (p *fakePort) Send(frame []byte) error {
	p.sent = append(p.sent, append([]byte(nil), frame...))
	return nil
}

func (p *fakePort) Close() error { return nil }
