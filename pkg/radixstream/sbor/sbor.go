// Package sbor is a placeholder stand-in for binary SBOR encoding. Real
// Scrypto/SBOR decoding is an external collaborator of this module; this
// package only provides the registration-time convenience of decoding a
// core-delivered payload into a caller-supplied Go struct, so handler
// authors are not forced to hand-roll that boilerplate themselves. The
// wire format used here is a JSON envelope, not the ledger's actual binary
// SBOR encoding.
package sbor

import "encoding/json"

// Decode unmarshals a payload in this package's JSON envelope into v. The
// gateway source produces such payloads with Encode, and the file source
// stores event data as JSON. The database source passes real binary SBOR
// through unchanged; Decode does not parse that encoding.
func Decode(payload []byte, v any) error {
	return json.Unmarshal(payload, v)
}

// Encode renders v into this package's placeholder binary envelope.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
