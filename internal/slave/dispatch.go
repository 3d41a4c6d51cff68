// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"encoding/binary"
	"log/slog"

	"github.com/ffutop/rtu-slave/internal/store"
	"github.com/ffutop/rtu-slave/modbus"
)

// Dispatch executes req against s and returns the response PDU.
// A store failure on a validated request answers SlaveDeviceFailure.
func Dispatch(s *store.Store, req Request) modbus.ProtocolDataUnit {
	switch r := req.(type) {
	case ReadCoils:
		return readBits(s, r.FunctionCode(), store.Coils, r.Address, r.Quantity)
	case ReadDiscreteInputs:
		return readBits(s, r.FunctionCode(), store.DiscreteInputs, r.Address, r.Quantity)
	case ReadHoldingRegisters:
		return readRegisters(s, r.FunctionCode(), store.HoldingRegisters, r.Address, r.Quantity)
	case ReadInputRegisters:
		return readRegisters(s, r.FunctionCode(), store.InputRegisters, r.Address, r.Quantity)
	case WriteSingleCoil:
		if err := s.WriteBits(store.Coils, r.Address, []bool{r.Value}); err != nil {
			return failure(r.FunctionCode(), err)
		}
		value := uint16(modbus.CoilOff)
		if r.Value {
			value = modbus.CoilOn
		}
		return echo(r.FunctionCode(), r.Address, value)
	case WriteSingleRegister:
		if err := s.WriteRegisters(store.HoldingRegisters, r.Address, []uint16{r.Value}); err != nil {
			return failure(r.FunctionCode(), err)
		}
		return echo(r.FunctionCode(), r.Address, r.Value)
	case WriteMultipleCoils:
		if err := s.WriteBits(store.Coils, r.Address, r.Values); err != nil {
			return failure(r.FunctionCode(), err)
		}
		return echo(r.FunctionCode(), r.Address, uint16(len(r.Values)))
	case WriteMultipleRegisters:
		if err := s.WriteRegisters(store.HoldingRegisters, r.Address, r.Values); err != nil {
			return failure(r.FunctionCode(), err)
		}
		return echo(r.FunctionCode(), r.Address, uint16(len(r.Values)))
	default:
		slog.Error("No handler for request", "type", req)
		return modbus.NewException(req.FunctionCode(), modbus.ExceptionCodeSlaveDeviceFailure).PDU()
	}
}

func readBits(s *store.Store, fc byte, bank store.Bank, address, quantity uint16) modbus.ProtocolDataUnit {
	values, err := s.ReadBits(bank, address, quantity)
	if err != nil {
		return failure(fc, err)
	}
	packed := packBits(values)

	respData := make([]byte, 1+len(packed))
	respData[0] = byte(len(packed))
	copy(respData[1:], packed)

	return modbus.ProtocolDataUnit{
		FunctionCode: fc,
		Data:         respData,
	}
}

func readRegisters(s *store.Store, fc byte, bank store.Bank, address, quantity uint16) modbus.ProtocolDataUnit {
	values, err := s.ReadRegisters(bank, address, quantity)
	if err != nil {
		return failure(fc, err)
	}

	respData := make([]byte, 1+len(values)*2)
	respData[0] = byte(len(values) * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(respData[1+i*2:], v)
	}

	return modbus.ProtocolDataUnit{
		FunctionCode: fc,
		Data:         respData,
	}
}

func echo(fc byte, address, value uint16) modbus.ProtocolDataUnit {
	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], value)

	return modbus.ProtocolDataUnit{
		FunctionCode: fc,
		Data:         respData,
	}
}

func failure(fc byte, err error) modbus.ProtocolDataUnit {
	slog.Error("Data store access failed", "func", fc, "err", err)
	return modbus.NewException(fc, modbus.ExceptionCodeSlaveDeviceFailure).PDU()
}
