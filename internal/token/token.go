// Package token mints click correlation tokens.
//
// A token travels inside the messaging platform's deep link as the start
// parameter, "<prefix><token>". Telegram restricts that parameter to
// [A-Za-z0-9_-] and 64 characters, and the default prefix "ig_" ends in an
// underscore, so tokens are drawn from the alphanumeric alphabet only: the
// first "_" after the prefix is never part of a token.
//
// ENTROPY:
// 24 symbols from a 62-symbol alphabet carry 24·log2(62) ≈ 142.9 bits.
// nanoid draws them from crypto/rand with rejection sampling, so every symbol
// is uniform. The store still enforces uniqueness with a primary key.
package token

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Alphabet is the token character set: alphanumeric, case-sensitive.
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length is the number of symbols per token.
	Length = 24
)

// Generator produces correlation tokens. The zero value is ready to use.
type Generator struct{}

// NewGenerator returns a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns a fresh token. It fails only if the system's secure random
// source fails.
func (g *Generator) Generate() (string, error) {
	tok, err := gonanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("token: generating: %w", err)
	}
	return tok, nil
}
