package store

import (
	"crypto/sha256"
	"fmt"
)

// HashProfileContent computes SHA-256 of a profile's name and content. PutProfile
// compares it to skip rewriting unchanged profiles.
func HashProfileContent(name, content string) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0}) // separator
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))
}
