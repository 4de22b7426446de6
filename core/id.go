package core

import (
	"crypto/rand"
	"encoding/hex"
)

// newID returns a 16-hex-char random identifier for tabs and windows.
func newID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "id-unknown"
	}
	return hex.EncodeToString(buf[:])
}
