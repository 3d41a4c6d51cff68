// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

// Backing provides the memory region holding the banks.
type Backing interface {
	// Map returns a zero-filled region of at least size bytes.
	Map(size int) ([]byte, error)
	// Close releases the region.
	Close() error
}

// MemoryBacking is a plain heap allocation private to the process.
type MemoryBacking struct{}

func NewMemoryBacking() *MemoryBacking {
	return &MemoryBacking{}
}

func (mb *MemoryBacking) Map(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (mb *MemoryBacking) Close() error {
	return nil
}
