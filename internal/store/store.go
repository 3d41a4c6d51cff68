// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrIllegalAddress is returned when start+count exceeds the bank capacity.
	ErrIllegalAddress = errors.New("store: illegal data address")
	// ErrUnknownBank is returned for a bank outside the four tables.
	ErrUnknownBank = errors.New("store: unknown bank")
	// ErrBankType is returned when bit access is used on a register bank or the other way round.
	ErrBankType = errors.New("store: wrong cell type for bank")
)

// Store holds the four banks in a single region provided by a Backing.
// Every access is bounds checked against the configured capacities,
// which never change after New.
type Store struct {
	mu sync.RWMutex

	caps    Capacities
	layout  layout
	mem     []byte
	backing Backing
}

// New allocates the banks from backing. All cells start at zero.
func New(caps Capacities, backing Backing) (*Store, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if backing == nil {
		backing = NewMemoryBacking()
	}
	l := newLayout(caps)
	mem, err := backing.Map(l.total)
	if err != nil {
		return nil, fmt.Errorf("store: failed to map %d bytes: %w", l.total, err)
	}
	if len(mem) < l.total {
		backing.Close()
		return nil, fmt.Errorf("store: backing returned %d bytes, need %d", len(mem), l.total)
	}
	return &Store{
		caps:    caps,
		layout:  l,
		mem:     mem,
		backing: backing,
	}, nil
}

// Capacities returns the configured bank sizes.
func (s *Store) Capacities() Capacities { return s.caps }

// Capacity returns the number of cells in bank b.
func (s *Store) Capacity(b Bank) int { return s.caps.Of(b) }

// Close releases the backing region. The Store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = nil
	return s.backing.Close()
}

// ReadBits reads count cells of a coil or discrete input bank.
func (s *Store) ReadBits(bank Bank, start, count uint16) ([]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	region, err := s.check(bank, true, start, int(count))
	if err != nil {
		return nil, err
	}

	result := make([]bool, count)
	for i := range result {
		cell := int(start) + i
		result[i] = region[cell/8]&(1<<uint(cell%8)) != 0
	}
	return result, nil
}

// WriteBits writes values to a coil or discrete input bank starting at start.
func (s *Store) WriteBits(bank Bank, start uint16, values []bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	region, err := s.check(bank, true, start, len(values))
	if err != nil {
		return err
	}

	for i, v := range values {
		cell := int(start) + i
		mask := byte(1 << uint(cell%8))
		if v {
			region[cell/8] |= mask
		} else {
			region[cell/8] &^= mask
		}
	}
	return nil
}

// ReadRegisters reads count cells of a holding or input register bank.
func (s *Store) ReadRegisters(bank Bank, start, count uint16) ([]uint16, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	region, err := s.check(bank, false, start, int(count))
	if err != nil {
		return nil, err
	}

	result := make([]uint16, count)
	for i := range result {
		result[i] = binary.BigEndian.Uint16(region[(int(start)+i)*2:])
	}
	return result, nil
}

// WriteRegisters writes values to a holding or input register bank starting at start.
func (s *Store) WriteRegisters(bank Bank, start uint16, values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	region, err := s.check(bank, false, start, len(values))
	if err != nil {
		return err
	}

	for i, v := range values {
		binary.BigEndian.PutUint16(region[(int(start)+i)*2:], v)
	}
	return nil
}

// SetInputRegisters lets the application publish input register values.
func (s *Store) SetInputRegisters(start uint16, values ...uint16) error {
	return s.WriteRegisters(InputRegisters, start, values)
}

// SetDiscreteInputs lets the application publish discrete input states.
func (s *Store) SetDiscreteInputs(start uint16, values ...bool) error {
	return s.WriteBits(DiscreteInputs, start, values)
}

// check validates the access and returns the bank region. Caller must hold the mutex.
func (s *Store) check(bank Bank, bit bool, start uint16, count int) ([]byte, error) {
	if !bank.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownBank, bank)
	}
	if bank.IsBit() != bit {
		return nil, fmt.Errorf("%w: %s", ErrBankType, bank)
	}
	if s.mem == nil {
		return nil, errors.New("store: closed")
	}
	// start is 0-based.
	if int(start)+count > s.caps.Of(bank) {
		return nil, fmt.Errorf("%w: %s [%d, %d) exceeds capacity %d", ErrIllegalAddress, bank, start, int(start)+count, s.caps.Of(bank))
	}
	return s.layout.region(s.mem, bank), nil
}
