package token

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// DefaultLength is the number of random bytes in a generated API token.
const DefaultLength = 16

type Generator struct {
	tokenLen int
}

func NewGenerator(length int) Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return Generator{
		tokenLen: length,
	}
}

// GenerateToken returns tokenLen random bytes, hex encoded.
func (g Generator) GenerateToken() (string, error) {
	b := make([]byte, g.tokenLen)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "could not read random bytes")
	}
	return hex.EncodeToString(b), nil
}
