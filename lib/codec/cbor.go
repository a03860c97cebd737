// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// maxNesting bounds decode recursion. Status documents are three
// levels deep.
const maxNesting = 16

var (
	// Core Deterministic Encoding (RFC 8949 §4.2): identical status
	// snapshots encode to identical bytes.
	encMode = mustEncMode(cbor.CoreDetEncOptions())

	// Unknown fields are ignored so older tools can read newer
	// daemons. Duplicate keys and indefinite lengths never come from a
	// deterministic encoder and are rejected.
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: maxNesting,
		// map[string]any rather than map[interface{}]interface{},
		// which encoding/json cannot marshal.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	})
)

func mustEncMode(options cbor.EncOptions) cbor.EncMode {
	mode, err := options.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: CBOR encoder options: %v", err))
	}
	return mode
}

func mustDecMode(options cbor.DecOptions) cbor.DecMode {
	mode, err := options.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: CBOR decoder options: %v", err))
	}
	return mode
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR item; trailing bytes are an
// error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders data in diagnostic notation (RFC 8949 §8), for
// mctp-mux-status --raw.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
