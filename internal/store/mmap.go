// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapBacking maps the banks onto a shared file so that an application
// process on the same controller can publish input registers and discrete
// inputs while the slave is running.
//
// The file is zero-filled every time it is mapped; register values do not
// survive a restart. Layout (capacities in cells):
//   - Coils: ceil(coils/8) bytes
//   - DiscreteInputs: ceil(discrete_inputs/8) bytes
//   - HoldingRegisters: holding_registers * 2 bytes, big-endian
//   - InputRegisters: input_registers * 2 bytes, big-endian
type MmapBacking struct {
	path string
	file *os.File
	data mmap.MMap
}

// NewMmapBacking creates a new MmapBacking for path.
func NewMmapBacking(path string) *MmapBacking {
	return &MmapBacking{
		path: path,
	}
}

// Map creates or truncates the file and maps size bytes of it.
func (ms *MmapBacking) Map(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("cannot map an empty register image")
	}
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open mmap file: %w", err)
	}

	// Drop whatever a previous run left behind.
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to clear mmap file: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to resize mmap file: %w", err)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	ms.file = f
	ms.data = data
	slog.Debug("register image mapped", "path", ms.path, "size", size)
	return data, nil
}

// Flush writes dirty pages back to the file.
func (ms *MmapBacking) Flush() error {
	if ms.data == nil {
		return errors.New("mmap data is nil")
	}
	return ms.data.Flush()
}

// Close unmaps and closes the file.
func (ms *MmapBacking) Close() error {
	var err error
	if ms.data != nil {
		if e := ms.data.Unmap(); e != nil {
			err = e
		}
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
