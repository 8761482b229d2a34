// Package refs is the reverse index from normalized tokens to events, plus
// the single tokenizer that normalizes code symbols, free-text queries and
// topic refs. Everything that compares text in babel goes through Tokenize,
// so "getUserProfile", "user_profile" and "USER-PROFILE" all land on the same
// tokens no matter where they came from.
package refs

import (
	"strings"
	"unicode"
)

// semanticFreePrefixes are leading segments that carry no topical meaning.
// They are dropped when they appear as the first token of an identifier:
// getUserProfile and user_profile both index as {user, profile}.
var semanticFreePrefixes = map[string]bool{
	"get": true,
	"set": true,
	"is":  true,
	"has": true,
	"on":  true,
}

// minTokenLen drops one-character fragments; they match everything and mean
// nothing.
const minTokenLen = 2

// Tokenize normalizes any identifier or free text into lowercase tokens.
// Boundaries are inserted between an uppercase run and a following lowercase
// letter (HTTPServer -> http server) and between lowercase and uppercase
// (userProfile -> user profile); everything non-alphanumeric splits.
func Tokenize(s string) []string {
	s = stripAffixes(s)
	if s == "" {
		return nil
	}

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if cur.Len() > 0 && boundaryBefore(runes, i) {
			flush()
		}
		cur.WriteRune(r)
	}
	flush()

	// The leading get/set/is/has/on segment is noise whether it arrived as
	// get_user or getUser; stripAffixes only sees the former.
	if len(tokens) > 0 && semanticFreePrefixes[tokens[0]] {
		tokens = tokens[1:]
	}

	out := tokens[:0]
	for _, t := range tokens {
		if len(t) >= minTokenLen {
			out = append(out, t)
		}
	}
	return out
}

// boundaryBefore reports whether a camel-case word boundary sits before
// position i: lower->Upper, or the last capital of an acronym run that is
// followed by lowercase (the P in HTTPParser).
func boundaryBefore(runes []rune, i int) bool {
	if i == 0 {
		return false
	}
	prev, cur := runes[i-1], runes[i]
	if unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
		return true
	}
	if unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return false
}

// stripAffixes removes the semantic-free sigils and underscore padding around
// an identifier before splitting.
func stripAffixes(s string) string {
	s = strings.TrimSpace(s)
	for {
		switch {
		case strings.HasPrefix(s, "#"), strings.HasPrefix(s, "."):
			s = s[1:]
		case strings.HasPrefix(s, "_"):
			s = strings.TrimLeft(s, "_")
		case strings.HasPrefix(s, "get_"), strings.HasPrefix(s, "set_"), strings.HasPrefix(s, "has_"):
			s = s[4:]
		case strings.HasPrefix(s, "is_"), strings.HasPrefix(s, "on_"):
			s = s[3:]
		default:
			return strings.TrimRight(s, "_")
		}
	}
}

// Score rates how well a single query token matches an indexed token:
// exact hit 1.0, substring hit (either direction) 0.5, otherwise 0.
func Score(query, token string) float64 {
	if query == "" || token == "" {
		return 0
	}
	if query == token {
		return 1.0
	}
	if strings.Contains(token, query) || strings.Contains(query, token) {
		return 0.5
	}
	return 0
}
