// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

// Frame is a fixed capacity receive buffer.
type Frame struct {
	data [MaxSize]byte
	n    int
}

// Append adds b and reports whether the frame still has room afterwards.
// Append on a full frame drops b and returns false.
func (f *Frame) Append(b byte) bool {
	if f.n >= len(f.data) {
		return false
	}
	f.data[f.n] = b
	f.n++
	return f.n < len(f.data)
}

// Bytes returns a copy of the accumulated bytes.
func (f *Frame) Bytes() []byte {
	out := make([]byte, f.n)
	copy(out, f.data[:f.n])
	return out
}

func (f *Frame) Len() int { return f.n }

func (f *Frame) Reset() { f.n = 0 }
