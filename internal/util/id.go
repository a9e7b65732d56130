package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random storage identity, optionally namespaced with a
// prefix ("q" -> "q_ab12..."). Internal ids are never reused.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
