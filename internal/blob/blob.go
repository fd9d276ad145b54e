// Package blob converts raw media payloads to and from the textual form kept
// inside a stored record. The store only persists structured text, so payloads
// travel as standard base64; the pair Encode/Decode is a faithful round trip
// for every payload and content type.
package blob

import (
	"encoding/base64"

	"github.com/tmccay/mstash/internal/errors"
)

// Payload is a decoded media payload together with its MIME type.
// ContentType may be empty when the boundary never reported one.
type Payload struct {
	Bytes       []byte
	ContentType string
}

// Encode returns the textual representation of p. No compression.
func Encode(p []byte) string {
	return base64.StdEncoding.EncodeToString(p)
}

// Decode reverses Encode. The contentType is carried through unchanged so a
// caller can rebuild the typed payload without consulting the record again.
// Fails with a DECODE_FAILED error if text is not valid base64.
func Decode(text, contentType string) (Payload, error) {
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return Payload{}, errors.NewDecodeFailed(err)
	}
	return Payload{Bytes: b, ContentType: contentType}, nil
}
