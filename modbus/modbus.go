// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"fmt"
)

const (
	// Bit access
	FuncCodeReadDiscreteInputs = 2
	FuncCodeReadCoils          = 1
	FuncCodeWriteSingleCoil    = 5
	FuncCodeWriteMultipleCoils = 15

	// 16-bit access
	FuncCodeReadInputRegisters     = 4
	FuncCodeReadHoldingRegisters   = 3
	FuncCodeWriteSingleRegister    = 6
	FuncCodeWriteMultipleRegisters = 16
)

// ExceptionFlag is set on the function code of an exception response.
const ExceptionFlag = 0x80

const (
	ExceptionCodeIllegalFunction    = 1
	ExceptionCodeIllegalDataAddress = 2
	ExceptionCodeIllegalDataValue   = 3
	ExceptionCodeSlaveDeviceFailure = 4
)

// Protocol limits on the quantity field of each request.
const (
	MaxReadBits       = 2000
	MaxReadRegisters  = 125
	MaxWriteBits      = 1968
	MaxWriteRegisters = 123
)

// Coil values accepted by Write Single Coil.
const (
	CoilOn  = 0xFF00
	CoilOff = 0x0000
)

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// IsException reports whether the PDU carries an exception response.
func (pdu ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&ExceptionFlag != 0
}

// ExceptionError implements error interface.
type ExceptionError struct {
	FunctionCode  byte
	ExceptionCode byte
}

func (e *ExceptionError) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeSlaveDeviceFailure:
		name = "slave device failure"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode)
}

// PDU builds the exception response PDU.
func (e *ExceptionError) PDU() ProtocolDataUnit {
	return ProtocolDataUnit{
		FunctionCode: e.FunctionCode | ExceptionFlag,
		Data:         []byte{e.ExceptionCode},
	}
}

// NewException returns an ExceptionError for the given function and exception code.
func NewException(functionCode, exceptionCode byte) *ExceptionError {
	return &ExceptionError{FunctionCode: functionCode, ExceptionCode: exceptionCode}
}
