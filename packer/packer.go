// Package packer encodes the small binary payloads stored next to job records.
package packer

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serialises v with msgpack, using json struct tags for field names.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")

	return dec.Decode(v)
}
