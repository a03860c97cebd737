// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mctp

// Byte offsets, relative to the start of the message payload (the type
// byte is offset 0), of the bit that distinguishes requests from
// responses for each message type the mux knows about.
const (
	pldmInstanceOffset   = 1 // Rq bit of the PLDM instance-id byte
	ncsiPacketTypeOffset = 5 // response bit of the NC-SI control packet type
	spdmCodeOffset       = 2 // high bit of the SPDM request/response code
)

// TagOwner reports whether the sender of payload owns the message tag,
// that is, whether payload is a request that starts a new exchange
// rather than a response to one.
//
// The decision is made from a fixed per-type bit:
//
//   - PLDM: bit 7 of the instance-id byte is set for requests.
//   - NC-SI: bit 7 of the control packet type byte is set for
//     responses, so the sense is inverted.
//   - SPDM: request codes have bit 7 set.
//
// Any other message type, and any payload too short to hold the
// relevant byte, yields false.
func TagOwner(payload []byte) bool {
	messageType, ok := TypeOf(payload)
	if !ok {
		return false
	}

	switch messageType {
	case MessageTypePLDM:
		return bitSet(payload, pldmInstanceOffset)
	case MessageTypeNCSI:
		if len(payload) <= ncsiPacketTypeOffset {
			return false
		}
		return !bitSet(payload, ncsiPacketTypeOffset)
	case MessageTypeSPDM:
		return bitSet(payload, spdmCodeOffset)
	default:
		return false
	}
}

func bitSet(payload []byte, offset int) bool {
	return offset < len(payload) && payload[offset]&0x80 != 0
}
