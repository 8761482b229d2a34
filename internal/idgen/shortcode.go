package idgen

import (
	"hash/fnv"
	"regexp"
	"strings"
)

// Short codes are four-letter aliases (AA-BB) for full ids. Encoding is a pure
// hash over the whole id string: stateless, stable across processes, and no
// table to keep in sync. Decoding only ever resolves against a caller-supplied
// candidate list, so a code by itself names nothing.

const codeSpace = 26 * 26 * 26 * 26 // AA-BB covers 26^4 = 456976 ids

var codePattern = regexp.MustCompile(`^[A-Z]{2}-[A-Z]{2}$`)

// Encode maps an id to its AA-BB short code. The full id participates in the
// hash, so ids that differ only by type prefix (decision_x vs constraint_x)
// get distinct codes.
func Encode(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	n := h.Sum32() % codeSpace

	letters := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		letters[i] = byte('A' + n%26)
		n /= 26
	}
	return string(letters[:2]) + "-" + string(letters[2:])
}

// IsCode reports whether the input has the AA-BB shape after normalization.
func IsCode(s string) bool {
	return codePattern.MatchString(Normalize(s))
}

// Normalize uppercases a candidate code; input is case-insensitive, output is
// always uppercase.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Decode resolves a short code against a candidate id list. It returns the
// single id whose code matches, or ok=false when the input is not a code or
// no candidate matches. Multiple matches also return ok=false: a four-letter
// alias over a colliding set is ambiguous and the caller must fall back to
// longer references.
func Decode(code string, candidates []string) (string, bool) {
	normalized := Normalize(code)
	if !codePattern.MatchString(normalized) {
		return "", false
	}
	var match string
	for _, id := range candidates {
		if Encode(id) == normalized {
			if match != "" {
				return "", false
			}
			match = id
		}
	}
	return match, match != ""
}
