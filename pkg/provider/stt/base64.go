package stt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/protect-ng/crossai/internal/fault"
)

// base64ChunkSize is the number of base64 characters decoded per iteration.
// It is a multiple of 4 so every chunk boundary falls on a full quantum.
const base64ChunkSize = 32768

// DecodeBase64Audio decodes a base64-encoded audio payload in fixed-size
// chunks, keeping peak allocations bounded for multi-megabyte recordings. A
// leading data URL prefix ("data:audio/webm;base64,") is stripped if present.
//
// Malformed input fails with fault.ErrInvalidInput.
func DecodeBase64Audio(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ","); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	if encoded == "" {
		return nil, fault.Invalid("audio payload is empty")
	}

	out := make([]byte, 0, base64.StdEncoding.DecodedLen(len(encoded)))
	for off := 0; off < len(encoded); off += base64ChunkSize {
		end := off + base64ChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk, err := base64.StdEncoding.DecodeString(encoded[off:end])
		if err != nil {
			return nil, fmt.Errorf("%w: decode base64 audio at offset %d: %v", fault.ErrInvalidInput, off, err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}
