package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Shape(t *testing.T) {
	g := NewGenerator()

	tok, err := g.Generate()
	require.NoError(t, err)

	assert.Len(t, tok, Length)
	for _, r := range tok {
		assert.Truef(t, strings.ContainsRune(Alphabet, r), "unexpected character %q", r)
	}
	assert.NotContains(t, tok, "_", "tokens must not contain the prefix delimiter")
	assert.NotContains(t, tok, "-")
}

// The start parameter is "<prefix><token>"; Telegram caps it at 64 characters
// of [A-Za-z0-9_-].
func TestGenerate_FitsStartParameter(t *testing.T) {
	g := NewGenerator()
	tok, err := g.Generate()
	require.NoError(t, err)

	param := "ig_" + tok
	assert.LessOrEqual(t, len(param), 64)
	for _, r := range param {
		ok := r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.Truef(t, ok, "character %q not allowed in a start parameter", r)
	}
}

// COLLISION-FREEDOM:
// With ~143 bits per token the birthday bound for 10^6 draws is ~10^-31,
// so any collision here means the generator is broken, not unlucky.
func TestGenerate_NoCollisions(t *testing.T) {
	n := 1_000_000
	if testing.Short() {
		n = 100_000
	}

	g := NewGenerator()
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := g.Generate()
		require.NoError(t, err)
		if _, dup := seen[tok]; dup {
			t.Fatalf("collision after %d tokens: %q", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestGenerate_UsesWholeAlphabet(t *testing.T) {
	g := NewGenerator()
	counts := make(map[rune]int)
	for i := 0; i < 5000; i++ {
		tok, err := g.Generate()
		require.NoError(t, err)
		for _, r := range tok {
			counts[r]++
		}
	}
	// 120k symbols over 62 letters: each appears ~1935 times.
	assert.Len(t, counts, len(Alphabet))
}
