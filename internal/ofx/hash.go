package ofx

import (
	"fmt"
	"unicode/utf16"
)

// ContentHash is a cheap, order-sensitive checksum over a transaction's
// identifying fields. It only exists to spot accidental exact duplicates
// inside one upload and must not be used where collisions matter.
func ContentHash(externalID, amount, postedAt, memo string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(externalID + "|" + amount + "|" + postedAt + "|" + memo)) {
		h = h*31 + int32(unit)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return fmt.Sprintf("%08x", abs)
}
