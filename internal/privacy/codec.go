// Package privacy implements the opaque reversible transform applied to
// personally-identifying text (names, phone numbers, image URLs) at the
// storage boundary. The engine never inspects encoded values; it only needs
// Decode(Encode(x)) == x and tolerance for already-plain input, because
// mixed encoded/plain data exists in practice.
package privacy

import (
	"encoding/base64"
	"strings"
)

const prefix = "enc.v1:"

// Codec encodes and decodes PII text fields. The zero Codec is ready to use.
type Codec struct{}

// Encode wraps the value in a versioned reversible encoding. Encoding an
// already-encoded value is a no-op so repeated storage round trips cannot
// stack encodings.
func (Codec) Encode(s string) string {
	if s == "" || strings.HasPrefix(s, prefix) {
		return s
	}
	return prefix + base64.StdEncoding.EncodeToString([]byte(s))
}

// Decode reverses Encode. Values without the version prefix are assumed to
// be plaintext and returned unchanged. A value that carries the prefix but
// fails to decode is also returned as-is: the system cannot distinguish
// "not encoded" from "corrupted", and losing the field would be worse than
// showing it raw.
func (Codec) Decode(s string) string {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return s
	}
	raw, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return s
	}
	return string(raw)
}
