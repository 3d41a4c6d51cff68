// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/ffutop/rtu-slave/modbus"
	"github.com/ffutop/rtu-slave/modbus/crc"
)

func TestEncode(t *testing.T) {
	adu := &ApplicationDataUnit{
		SlaveID: 0x01,
		Pdu:     modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x00, 0x00, 0x01}},
	}
	raw, err := adu.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeTooLong(t *testing.T) {
	adu := &ApplicationDataUnit{Pdu: modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: make([]byte, MaxSize)}}
	if _, err := adu.Encode(); err == nil {
		t.Error("Expected error for oversized ADU")
	}
}

func TestEncodeMaxSize(t *testing.T) {
	adu := &ApplicationDataUnit{SlaveID: 0x01, Pdu: modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: make([]byte, MaxSize-4)}}
	raw, err := adu.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(raw) != MaxSize {
		t.Errorf("expected %d bytes, got %d", MaxSize, len(raw))
	}
	if !crc.Valid(raw) {
		t.Errorf("invalid checksum in % X", raw[MaxSize-2:])
	}

	adu.Pdu.Data = make([]byte, MaxSize-3)
	if _, err := adu.Encode(); err == nil {
		t.Error("Expected error for one byte past MaxSize")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"Empty", nil, ErrShortFrame},
		{"FourBytes", []byte{0x01, 0x03, 0x84, 0x0A}, ErrShortFrame},
		{"BadCRC", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x0A, 0x84}, ErrCRCMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adu := &ApplicationDataUnit{
			SlaveID: rapid.Byte().Draw(t, "SlaveID"),
			Pdu: modbus.ProtocolDataUnit{
				FunctionCode: rapid.Byte().Draw(t, "FunctionCode"),
				Data:         rapid.SliceOfN(rapid.Byte(), 1, MaxSize-4).Draw(t, "Data"),
			},
		}

		raw, err := adu.Encode()
		if err != nil {
			t.Fatalf("error while encoding: %+v", err)
		}

		decoded, err := Decode(raw)
		if err != nil {
			t.Fatalf("error while decoding: %+v", err)
		}

		if !cmp.Equal(adu, decoded) {
			t.Errorf("invalid adu: %s", cmp.Diff(adu, decoded))
		}
	})
}
