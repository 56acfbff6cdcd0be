package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// MaxKeyLength is the longest key a layer accepts.
const MaxKeyLength = 250

// ValidateKey checks that key is non-empty, at most MaxKeyLength bytes,
// free of control characters and whitespace.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidKey, MaxKeyLength)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character", ErrInvalidKey)
		}
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: key contains whitespace", ErrInvalidKey)
		}
	}

	return nil
}

// KeyPattern builds keys of the form prefix:part:part.
type KeyPattern struct {
	prefix    string
	separator string
}

// NewKeyPattern creates a key pattern. An empty separator means ":".
func NewKeyPattern(prefix, separator string) *KeyPattern {
	if separator == "" {
		separator = ":"
	}
	return &KeyPattern{
		prefix:    prefix,
		separator: separator,
	}
}

// Build joins the prefix and parts.
// Example: pattern.Build("user", "123") -> "prefix:user:123"
func (kp *KeyPattern) Build(parts ...string) string {
	if len(parts) == 0 {
		return kp.prefix
	}
	return kp.prefix + kp.separator + strings.Join(parts, kp.separator)
}

// ContentKey returns a key derived from the SHA-256 of content. Equal
// content always maps to the same key and different content practically
// never collides, so entries never need invalidation.
func (kp *KeyPattern) ContentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return kp.Build(hex.EncodeToString(sum[:]))
}
