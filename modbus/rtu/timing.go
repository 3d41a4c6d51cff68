// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "time"

// FrameDelay returns the 3.5 character silence that separates frames.
// Above 19200 baud the fixed 1.75ms recommended for Modbus serial lines applies.
func FrameDelay(baudRate int) time.Duration {
	if baudRate <= 0 || baudRate > 19200 {
		return 1750 * time.Microsecond
	}
	return time.Duration(35000000/baudRate) * time.Microsecond
}
