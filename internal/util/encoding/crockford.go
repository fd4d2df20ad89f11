package encoding

import (
	"strings"
)

// crockfordAlphabet is Crockford's Base32 alphabet in lowercase.
// It omits i, l, o and u.
const crockfordAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// EncodeCrockfordB32LC encodes input with Crockford's Base32 alphabet, lowercase,
// without padding. A trailing partial group is zero-filled on the right.
func EncodeCrockfordB32LC(input []byte) string {
	var (
		out   strings.Builder
		acc   uint32
		nbits uint
	)

	out.Grow((len(input)*8 + 4) / 5)

	for _, b := range input {
		acc = acc<<8 | uint32(b)
		nbits += 8

		for nbits >= 5 {
			nbits -= 5
			out.WriteByte(crockfordAlphabet[(acc>>nbits)&0x1f])
		}

		acc &= (1 << nbits) - 1
	}

	if nbits > 0 {
		out.WriteByte(crockfordAlphabet[(acc<<(5-nbits))&0x1f])
	}

	return out.String()
}

// NormalizeCrockfordB32LC maps human input onto the canonical lowercase form.
// Spaces are dropped, o becomes 0, and i and l become 1.
// Characters outside the alphabet are kept; use IsCrockfordB32LC to reject them.
func NormalizeCrockfordB32LC(input string) string {
	var out strings.Builder

	out.Grow(len(input))

	for _, r := range strings.ToLower(input) {
		switch r {
		case ' ':
			continue
		case 'o':
			out.WriteRune('0')
		case 'i', 'l':
			out.WriteRune('1')
		default:
			out.WriteRune(r)
		}
	}

	return out.String()
}

// IsCrockfordB32LC reports whether s is non-empty and made only of
// characters of the lowercase Crockford alphabet.
func IsCrockfordB32LC(s string) bool {
	if s == "" {
		return false
	}

	for i := range len(s) {
		if strings.IndexByte(crockfordAlphabet, s[i]) < 0 {
			return false
		}
	}

	return true
}
