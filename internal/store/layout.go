// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import "fmt"

// MaxCapacity is the size of the 16-bit Modbus address space.
const MaxCapacity = 65536

// DefaultCapacity is the number of cells in each bank unless configured.
const DefaultCapacity = 100

// Capacities holds the number of cells in each bank.
type Capacities struct {
	Coils            int `mapstructure:"coils"`
	DiscreteInputs   int `mapstructure:"discrete_inputs"`
	HoldingRegisters int `mapstructure:"holding_registers"`
	InputRegisters   int `mapstructure:"input_registers"`
}

// DefaultCapacities returns DefaultCapacity cells for every bank.
func DefaultCapacities() Capacities {
	return Capacities{
		Coils:            DefaultCapacity,
		DiscreteInputs:   DefaultCapacity,
		HoldingRegisters: DefaultCapacity,
		InputRegisters:   DefaultCapacity,
	}
}

// Of returns the capacity of bank b, or 0 for an unknown bank.
func (c Capacities) Of(b Bank) int {
	switch b {
	case Coils:
		return c.Coils
	case DiscreteInputs:
		return c.DiscreteInputs
	case HoldingRegisters:
		return c.HoldingRegisters
	case InputRegisters:
		return c.InputRegisters
	}
	return 0
}

// Validate checks every capacity is within the address space.
func (c Capacities) Validate() error {
	for _, b := range Banks {
		if n := c.Of(b); n < 0 || n > MaxCapacity {
			return fmt.Errorf("store: capacity %d of %s out of range [0, %d]", n, b, MaxCapacity)
		}
	}
	return nil
}

// layout places the banks back to back in one byte region:
// bit banks packed eight cells per byte (LSB first), register banks
// two bytes per cell, high byte first.
type layout struct {
	offset [len(Banks)]int
	size   [len(Banks)]int
	total  int
}

func newLayout(c Capacities) layout {
	var l layout
	for i, b := range Banks {
		n := c.Of(b)
		if b.IsBit() {
			l.size[i] = (n + 7) / 8
		} else {
			l.size[i] = n * 2
		}
		l.offset[i] = l.total
		l.total += l.size[i]
	}
	return l
}

func (l layout) region(mem []byte, b Bank) []byte {
	return mem[l.offset[b] : l.offset[b]+l.size[b]]
}
