package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"
)

const activationTokenTTL = 7 * 24 * time.Hour

// newActivationToken returns a 32-byte random token, hex encoded.
func newActivationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
