// If you are AI: This file implements zero-width name padding for legacy clients.
// Older clients sort apps alphabetically; an invisible binary prefix restores catalog order.

package zwpad

import (
	"math/bits"
	"strings"
)

// Two distinct zero-width characters. Their code points order the same way
// as the bits they encode: U+200B (zero width space) sorts before
// U+200C (zero width non-joiner).
const (
	zw0 = "\u200b"
	zw1 = "\u200c"
)

// PadWidthForCount returns the minimal number of zero-width digits needed
// to encode indexes 0..count-1. Returns 0 for counts of 0 or 1, where no
// prefix is needed.
func PadWidthForCount(count int) int {
	if count <= 1 {
		return 0
	}
	return bits.Len(uint(count - 1))
}

// PadForOrdering prepends a fixed-width binary prefix of zero-width
// code points to text so that lexical order of the results matches the
// numerical order of index. Indexes that don't fit into padBits, or a
// zero padBits, leave the text unchanged.
func PadForOrdering(text string, padBits, index int) string {
	if padBits <= 0 || index < 0 || index >= 1<<padBits {
		return text
	}

	var b strings.Builder
	b.Grow(padBits*3 + len(text))
	for bit := 0; bit < padBits; bit++ {
		// Most significant bit first.
		if (index>>(padBits-1-bit))&1 == 1 {
			b.WriteString(zw1)
		} else {
			b.WriteString(zw0)
		}
	}
	b.WriteString(text)
	return b.String()
}
