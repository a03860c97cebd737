// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mctp

const (
	// PLDMCompletionError is the generic ERROR completion code.
	PLDMCompletionError = 0x01

	// pldmCompletionOffset is the payload offset of the completion
	// code in a PLDM response: type, instance id, header version and
	// PLDM type, command, completion code.
	pldmCompletionOffset = 4

	pldmRequestBit = 0x80
)

// PLDMErrorResponse builds a PLDM response to request carrying the
// generic ERROR completion code. The result copies the request's
// header bytes, clears the Rq bit of the instance-id byte, stores
// [PLDMCompletionError] in the completion code byte, and ends right
// after it. request is not modified. A request shorter than a response
// header is zero-padded.
func PLDMErrorResponse(request []byte) []byte {
	response := make([]byte, pldmCompletionOffset+1)
	copy(response, request)
	response[0] = byte(MessageTypePLDM)
	response[pldmInstanceOffset] &^= pldmRequestBit
	response[pldmCompletionOffset] = PLDMCompletionError
	return response
}
