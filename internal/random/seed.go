// Package random generates high-entropy seeds for the engine's
// deterministic pseudo-random streams.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed draws a seed from the operating system's entropy source. The
// seed is recorded alongside rolls so an outcome can be replayed.
func NewSeed() (int64, error) {
	var raw [8]byte
	if _, err := crand.Read(raw[:]); err != nil {
		return 0, fmt.Errorf("draw seed entropy: %w", err)
	}
	return int64(binary.BigEndian.Uint64(raw[:])), nil
}
