// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ffutop/rtu-slave/modbus"
	"github.com/ffutop/rtu-slave/modbus/crc"
)

var (
	// ErrShortFrame is returned for frames below MinSize.
	ErrShortFrame = errors.New("modbus: frame too short")
	// ErrCRCMismatch is returned when the trailing checksum does not match.
	ErrCRCMismatch = errors.New("modbus: crc mismatch")
)

// ApplicationDataUnit is a serial line frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode verifies length and checksum of a received frame and splits it.
// The returned PDU data aliases raw.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	if len(raw) < MinSize {
		return nil, fmt.Errorf("%w: length '%v' does not meet minimum '%v'", ErrShortFrame, len(raw), MinSize)
	}
	if !crc.Valid(raw) {
		body, trailer := raw[:len(raw)-2], raw[len(raw)-2:]
		return nil, fmt.Errorf("%w: received '%04X', computed '%04X'",
			ErrCRCMismatch, binary.LittleEndian.Uint16(trailer), crc.Checksum(body))
	}
	return &ApplicationDataUnit{
		SlaveID: raw[0],
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: raw[1],
			Data:         raw[2 : len(raw)-2],
		},
	}, nil
}

// Encode serializes the ADU and appends the checksum, low byte first.
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	if size := len(adu.Pdu.Data) + 4; size > MaxSize {
		return nil, fmt.Errorf("modbus: frame size '%v' exceeds '%v'", size, MaxSize)
	}
	raw := make([]byte, 0, len(adu.Pdu.Data)+4)
	raw = append(raw, adu.SlaveID, adu.Pdu.FunctionCode)
	raw = append(raw, adu.Pdu.Data...)
	return crc.Append(raw), nil
}
