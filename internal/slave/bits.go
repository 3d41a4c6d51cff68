// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

// packBits packs values LSB first, eight per byte. Unused high bits of the
// last byte are zero.
func packBits(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// unpackBits is the inverse of packBits for the first n bits of data.
func unpackBits(data []byte, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = (data[i/8]>>uint(i%8))&1 != 0
	}
	return out
}
