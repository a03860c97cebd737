// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mctp

import "fmt"

// EID is an MCTP endpoint identifier.
type EID uint8

const (
	// EIDNull is the null endpoint ID, used before an endpoint has been
	// assigned an address.
	EIDNull EID = 0x00

	// EIDBroadcast addresses every endpoint on a bus.
	EIDBroadcast EID = 0xff

	// DefaultLocalEID is the mux's own endpoint ID unless overridden
	// at launch.
	DefaultLocalEID EID = 8
)

// Tag is the 3-bit message tag the link layer uses to pair a request
// with its response.
type Tag uint8

// TagCount is the number of distinct tag values. The tag field in the
// MCTP transport header is three bits wide, so at most eight exchanges
// of one message type can be outstanding at once.
const TagCount = 8

// MessageType is the MCTP message type carried in the first byte of
// every message payload (the integrity-check bit is part of the value).
type MessageType uint8

const (
	MessageTypeControl    MessageType = 0x00
	MessageTypePLDM       MessageType = 0x01
	MessageTypeNCSI       MessageType = 0x02
	MessageTypeEthernet   MessageType = 0x03
	MessageTypeNVMe       MessageType = 0x04
	MessageTypeSPDM       MessageType = 0x05
	MessageTypeVendorPCI  MessageType = 0x7e
	MessageTypeVendorIANA MessageType = 0x7f
)

// String returns a short name for well-known types and a hex literal
// for everything else.
func (t MessageType) String() string {
	switch t {
	case MessageTypeControl:
		return "control"
	case MessageTypePLDM:
		return "pldm"
	case MessageTypeNCSI:
		return "ncsi"
	case MessageTypeEthernet:
		return "ethernet"
	case MessageTypeNVMe:
		return "nvme-mi"
	case MessageTypeSPDM:
		return "spdm"
	case MessageTypeVendorPCI:
		return "vendor-pci"
	case MessageTypeVendorIANA:
		return "vendor-iana"
	default:
		return fmt.Sprintf("0x%02x", uint8(t))
	}
}

// TypeOf returns the message type of payload. The second result is
// false for an empty payload.
func TypeOf(payload []byte) (MessageType, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	return MessageType(payload[0]), true
}
