// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package slave

import (
	"github.com/ffutop/rtu-slave/modbus"
	rtupacket "github.com/ffutop/rtu-slave/modbus/rtu"
)

// EncodeResponse builds the reply frame for slaveID. Broadcast requests
// are never answered, so it returns nil for the broadcast address.
func EncodeResponse(slaveID byte, pdu modbus.ProtocolDataUnit) ([]byte, error) {
	if slaveID == rtupacket.BroadcastAddress {
		return nil, nil
	}
	adu := &rtupacket.ApplicationDataUnit{
		SlaveID: slaveID,
		Pdu:     pdu,
	}
	return adu.Encode()
}
