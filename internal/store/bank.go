// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package store

import "fmt"

// Bank identifies one of the four independently addressed tables.
type Bank int

const (
	Coils Bank = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters
)

// Banks lists every bank in layout order.
var Banks = [...]Bank{Coils, DiscreteInputs, HoldingRegisters, InputRegisters}

func (b Bank) String() string {
	switch b {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete-inputs"
	case HoldingRegisters:
		return "holding-registers"
	case InputRegisters:
		return "input-registers"
	default:
		return fmt.Sprintf("Bank(%d)", int(b))
	}
}

// IsBit reports whether cells of b are single bits.
func (b Bank) IsBit() bool {
	return b == Coils || b == DiscreteInputs
}

// Writable reports whether requests from the bus may modify b.
// The owning application may write every bank.
func (b Bank) Writable() bool {
	return b == Coils || b == HoldingRegisters
}

func (b Bank) valid() bool {
	return b >= Coils && b <= InputRegisters
}
