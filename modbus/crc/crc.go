// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

// Polynomial is the bit-reversed form of the Modbus generator 0x8005.
const Polynomial = 0xA001

var table = makeTable(Polynomial)

func makeTable(poly uint16) *[256]uint16 {
	t := new([256]uint16)
	for i := range t {
		crc := uint16(i)
		for j := 0; j < 8; j++ {
			if crc&0x0001 != 0 {
				crc = crc>>1 ^ poly
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return t
}

// CRC is the Modbus CRC-16: LSB first, initial value 0xFFFF, no final XOR.
// The zero value must be Reset before use.
type CRC struct {
	value uint16
}

func (crc *CRC) Reset() *CRC {
	crc.value = 0xFFFF
	return crc
}

func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.value = crc.value>>8 ^ table[byte(crc.value)^b]
	}
	return crc
}

func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum computes the Modbus CRC-16 of b.
func Checksum(b []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(b).Value()
}

// Append appends the checksum of b to b, low byte first.
func Append(b []byte) []byte {
	sum := Checksum(b)
	return append(b, byte(sum), byte(sum>>8))
}

// Valid reports whether the trailing two bytes of frame hold the checksum
// of the bytes before them.
func Valid(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	return Checksum(frame[:n]) == uint16(frame[n+1])<<8|uint16(frame[n])
}
