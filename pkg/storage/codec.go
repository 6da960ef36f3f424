package storage

import (
	"bytes"
	"encoding/gob"
)

// Snapshots are gob-encoded; everything else is JSON so it stays readable
// from cmd/journal.
func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
