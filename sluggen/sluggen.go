// Package sluggen produces random short codes for links.
// Codes are probably unique, never guaranteed: callers must rely on the
// store's uniqueness constraint and retry on collision.
package sluggen

import (
	"crypto/rand"
	"errors"
)

const (
	// Alphabet is the URL-safe set codes are drawn from. Its size is 64, so
	// reducing a random byte modulo len(Alphabet) carries no bias.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

	// DefaultLength is the length of generated short codes.
	DefaultLength = 7
)

// Generator generates short codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

type urlSafeGenerator struct{}

// NewURLSafe returns a Generator backed by crypto/rand.
func NewURLSafe() Generator {
	return urlSafeGenerator{}
}

func (urlSafeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = Alphabet[int(b[i])&(len(Alphabet)-1)]
	}
	return string(b), nil
}

// Valid reports whether code consists only of Alphabet characters.
func Valid(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !isAlphabetByte(code[i]) {
			return false
		}
	}
	return true
}

func isAlphabetByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	default:
		return false
	}
}
