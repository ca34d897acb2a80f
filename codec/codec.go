// Package codec serializes the file- and page-header structs that
// travel through the buffer pool as typed views over page bytes.
// Fixed-width key/slot arrays inside record and index pages are never
// routed through here — those stay byte-exact for memcmp comparison
// and are copied directly, as the on-disk format in spec §6 requires.
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack"
)

// Encode marshals obj and zero-pads the result to exactly size bytes.
// An encoding longer than size is not truncated: Encode returns an error.
func Encode(obj any, size int) ([]byte, error) {
	out := make([]byte, size)

	data, err := msgpack.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	if len(data) > size {
		return nil, fmt.Errorf("codec: encoded size %d exceeds %d-byte budget", len(data), size)
	}
	copy(out, data)

	return out, nil
}

// Decode unmarshals data into a fresh T.
func Decode[T any](data []byte) (T, error) {
	var res T
	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("codec: unmarshal: %w", err)
	}
	return res, nil
}
