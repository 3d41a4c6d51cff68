// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ffutop/rtu-slave/internal/store"
	"github.com/ffutop/rtu-slave/modbus"
	rtupacket "github.com/ffutop/rtu-slave/modbus/rtu"
)

// ErrNotAddressed is returned by Decode for frames meant for another station.
var ErrNotAddressed = errors.New("modbus: frame addressed to another station")

// Request is a validated request. Each function code has its own type.
type Request interface {
	FunctionCode() byte
	request()
}

type ReadCoils struct {
	Address  uint16
	Quantity uint16
}

type ReadDiscreteInputs struct {
	Address  uint16
	Quantity uint16
}

type ReadHoldingRegisters struct {
	Address  uint16
	Quantity uint16
}

type ReadInputRegisters struct {
	Address  uint16
	Quantity uint16
}

type WriteSingleCoil struct {
	Address uint16
	Value   bool
}

type WriteSingleRegister struct {
	Address uint16
	Value   uint16
}

type WriteMultipleCoils struct {
	Address uint16
	Values  []bool
}

type WriteMultipleRegisters struct {
	Address uint16
	Values  []uint16
}

func (ReadCoils) FunctionCode() byte              { return modbus.FuncCodeReadCoils }
func (ReadDiscreteInputs) FunctionCode() byte     { return modbus.FuncCodeReadDiscreteInputs }
func (ReadHoldingRegisters) FunctionCode() byte   { return modbus.FuncCodeReadHoldingRegisters }
func (ReadInputRegisters) FunctionCode() byte     { return modbus.FuncCodeReadInputRegisters }
func (WriteSingleCoil) FunctionCode() byte        { return modbus.FuncCodeWriteSingleCoil }
func (WriteSingleRegister) FunctionCode() byte    { return modbus.FuncCodeWriteSingleRegister }
func (WriteMultipleCoils) FunctionCode() byte     { return modbus.FuncCodeWriteMultipleCoils }
func (WriteMultipleRegisters) FunctionCode() byte { return modbus.FuncCodeWriteMultipleRegisters }

func (ReadCoils) request()              {}
func (ReadDiscreteInputs) request()     {}
func (ReadHoldingRegisters) request()   {}
func (ReadInputRegisters) request()     {}
func (WriteSingleCoil) request()        {}
func (WriteSingleRegister) request()    {}
func (WriteMultipleCoils) request()     {}
func (WriteMultipleRegisters) request() {}

// Indication is a frame accepted for this station.
// Request is nil when Decode also returns an *modbus.ExceptionError.
type Indication struct {
	SlaveID      byte
	FunctionCode byte
	Request      Request
}

// Broadcast reports whether the request must be executed without a reply.
func (ind *Indication) Broadcast() bool {
	return ind.SlaveID == rtupacket.BroadcastAddress
}

// Decode checks a raw frame in order: length, checksum, station address,
// function code, address and quantity bounds, byte count.
//
// Length and checksum failures wrap rtu.ErrShortFrame and rtu.ErrCRCMismatch,
// frames for other stations return ErrNotAddressed; all three must go
// unanswered. Protocol violations return a non-nil Indication together with
// an *modbus.ExceptionError describing the reply.
func Decode(raw []byte, station byte, caps store.Capacities) (*Indication, error) {
	adu, err := rtupacket.Decode(raw)
	if err != nil {
		return nil, err
	}
	if adu.SlaveID != station && adu.SlaveID != rtupacket.BroadcastAddress {
		return nil, fmt.Errorf("%w: %d", ErrNotAddressed, adu.SlaveID)
	}

	ind := &Indication{SlaveID: adu.SlaveID, FunctionCode: adu.Pdu.FunctionCode}
	req, err := parse(adu.Pdu, caps)
	if err != nil {
		return ind, err
	}
	ind.Request = req
	return ind, nil
}

func parse(pdu modbus.ProtocolDataUnit, caps store.Capacities) (Request, error) {
	fc := pdu.FunctionCode
	data := pdu.Data

	switch fc {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters:
		return parseRead(fc, data, caps)
	case modbus.FuncCodeWriteSingleCoil:
		if len(data) != 4 {
			return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
		}
		address := binary.BigEndian.Uint16(data[0:2])
		value := binary.BigEndian.Uint16(data[2:4])
		if int(address) >= caps.Coils {
			return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataAddress)
		}
		if value != modbus.CoilOn && value != modbus.CoilOff {
			return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
		}
		return WriteSingleCoil{Address: address, Value: value == modbus.CoilOn}, nil
	case modbus.FuncCodeWriteSingleRegister:
		if len(data) != 4 {
			return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
		}
		address := binary.BigEndian.Uint16(data[0:2])
		if int(address) >= caps.HoldingRegisters {
			return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataAddress)
		}
		return WriteSingleRegister{Address: address, Value: binary.BigEndian.Uint16(data[2:4])}, nil
	case modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		return parseWriteMultiple(fc, data, caps)
	default:
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalFunction)
	}
}

func parseRead(fc byte, data []byte, caps store.Capacities) (Request, error) {
	if len(data) != 4 {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])

	var bank store.Bank
	limit := uint16(modbus.MaxReadRegisters)
	switch fc {
	case modbus.FuncCodeReadCoils:
		bank, limit = store.Coils, modbus.MaxReadBits
	case modbus.FuncCodeReadDiscreteInputs:
		bank, limit = store.DiscreteInputs, modbus.MaxReadBits
	case modbus.FuncCodeReadHoldingRegisters:
		bank = store.HoldingRegisters
	default:
		bank = store.InputRegisters
	}

	if quantity < 1 || quantity > limit {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	if int(address)+int(quantity) > caps.Of(bank) {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataAddress)
	}

	switch bank {
	case store.Coils:
		return ReadCoils{Address: address, Quantity: quantity}, nil
	case store.DiscreteInputs:
		return ReadDiscreteInputs{Address: address, Quantity: quantity}, nil
	case store.HoldingRegisters:
		return ReadHoldingRegisters{Address: address, Quantity: quantity}, nil
	default:
		return ReadInputRegisters{Address: address, Quantity: quantity}, nil
	}
}

func parseWriteMultiple(fc byte, data []byte, caps store.Capacities) (Request, error) {
	// Address(2) + Quantity(2) + ByteCount(1) + at least one payload byte.
	if len(data) < 6 {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	byteCount := int(data[4])
	payload := data[5:]

	coils := fc == modbus.FuncCodeWriteMultipleCoils
	bank, limit, expected := store.HoldingRegisters, uint16(modbus.MaxWriteRegisters), int(quantity)*2
	if coils {
		bank, limit, expected = store.Coils, modbus.MaxWriteBits, (int(quantity)+7)/8
	}

	if quantity < 1 || quantity > limit {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
	}
	if int(address)+int(quantity) > caps.Of(bank) {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataAddress)
	}
	if byteCount != expected || len(payload) != byteCount {
		return nil, modbus.NewException(fc, modbus.ExceptionCodeIllegalDataValue)
	}

	if coils {
		return WriteMultipleCoils{Address: address, Values: unpackBits(payload, int(quantity))}, nil
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(payload[i*2:])
	}
	return WriteMultipleRegisters{Address: address, Values: values}, nil
}
