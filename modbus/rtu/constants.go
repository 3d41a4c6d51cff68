// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	// MinSize is the shortest request worth decoding:
	// address, function code, two data bytes and the checksum.
	MinSize = 5
	// MaxSize is the receive buffer capacity. A frame that fills it is discarded.
	MaxSize = 256

	// BroadcastAddress is executed by every slave and answered by none.
	BroadcastAddress = 0
)
