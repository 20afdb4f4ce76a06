// Package jsoncodec centralises JSON encoding for the gateway. Everything
// that ends up on the wire or in the durable mirror goes through sonic's
// std-compatible configuration so map keys stay sorted and output stays
// deterministic.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// Valid reports whether data is syntactically valid JSON. Canonicalizer
// overrides are checked with this before their fragments are spliced into a
// record payload.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}
