// Package partycode generates join codes and host tokens from crypto/rand.
package partycode

import (
	crand "crypto/rand"
	"encoding/base64"
	"fmt"
)

// Uppercase plus digits keeps codes readable over voice and chat.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func NewCode(length int) (string, error) {
	if length <= 0 {
		length = 5
	}
	buf := make([]byte, length)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("read random code bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

func NewToken(numBytes int) (string, error) {
	if numBytes <= 0 {
		numBytes = 24
	}
	buf := make([]byte, numBytes)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("read random token bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
