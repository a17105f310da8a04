package utils

import (
	"crypto/rand"
)

// RandomBytes returns length cryptographically secure random bytes.
func RandomBytes(length int) []byte {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return bytes
}
