package avatar

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

const (
	defaultSeed   = "bot"
	maxSeedPrefix = 64
	hashChars     = 16
)

// SeedInput is what an avatar is derived from. Description is the short
// user-facing text; RichText is the optional longer description produced by a
// generation backend.
type SeedInput struct {
	Description string
	RichText    string
}

// DeriveSeed returns a stable seed: the description with all whitespace
// removed and lowercased, joined with a BLAKE2b digest prefix of the rich
// text when there is one. Descriptions longer than maxSeedPrefix runes keep
// their first maxSeedPrefix runes followed by a digest of the whole
// normalized description. Identical input always yields the identical seed.
func DeriveSeed(in SeedInput) string {
	var b strings.Builder
	for _, r := range in.Description {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	seed := b.String()
	if seed == "" {
		seed = defaultSeed
	}
	if runes := []rune(seed); len(runes) > maxSeedPrefix {
		seed = string(runes[:maxSeedPrefix]) + "~" + digest(seed)
	}

	rich := strings.TrimSpace(in.RichText)
	if rich == "" {
		return seed
	}
	return seed + "-" + digest(rich)
}

func digest(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashChars]
}
