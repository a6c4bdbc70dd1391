package blobstore

import (
	"strconv"
	"strings"
)

// MakeKey returns the physical object key for a measurement-scoped logical key.
//
// Measurement ids are assigned monotonically, so using them verbatim as a key
// prefix would concentrate consecutive measurements on the same store
// partition. Reversing the decimal digits spreads adjacent ids across
// disjoint prefixes. The mapping is bijective: ParseKey recovers the logical
// key from a listed physical key.
func MakeKey(measID int64, key string) string {
	var sb strings.Builder
	sb.WriteString(reverseDigits(measID))
	sb.WriteByte('/')
	sb.WriteString(key)
	return sb.String()
}

// ParseKey strips the physical prefix (everything up to and including the
// first '/') from a physical key, returning the logical key.
func ParseKey(physical string) string {
	if i := strings.IndexByte(physical, '/'); i >= 0 {
		return physical[i+1:]
	}
	return physical
}

func reverseDigits(measID int64) string {
	digits := []byte(strconv.FormatInt(measID, 10))
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
