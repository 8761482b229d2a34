package refs

import (
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func tokenSet(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

func TestTokenizeCanonicalization(t *testing.T) {
	// The same identifier in every casing convention lands on one token set.
	inputs := []string{
		"getUserProfile",
		"user_profile",
		"UserProfile",
		"user-profile",
		"USER_PROFILE",
		"get_user_profile",
		"__user_profile__",
		".userProfile",
		"#UserProfile",
	}
	want := "profile user"
	for _, in := range inputs {
		if got := tokenSet(Tokenize(in)); got != want {
			t.Errorf("Tokenize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"HTTPServer", []string{"http", "server"}},
		{"parseHTTPResponse", []string{"parse", "http", "response"}},
		{"is_valid", []string{"valid"}},
		{"onClick", []string{"click"}},
		{"has_evidence", []string{"evidence"}},
		{"setTimeout", []string{"timeout"}},
		{"getter", []string{"getter"}},
		{"sqlite3", []string{"sqlite3"}},
		{"why is the cache stale", []string{"why", "is", "the", "cache", "stale"}},
		{"a_b", nil},
		{"", nil},
		{"___", nil},
		{"x", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestTokenizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tokens are lowercase and at least two chars", prop.ForAll(
		func(s string) bool {
			for _, tok := range Tokenize(s) {
				if len(tok) < minTokenLen || tok != strings.ToLower(tok) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("tokenize is idempotent through a rejoin", prop.ForAll(
		func(s string) bool {
			first := Tokenize(s)
			second := Tokenize(strings.Join(first, " "))
			return tokenSet(first) == tokenSet(second)
		},
		gen.Identifier(),
	))

	lowerWord := gen.AlphaString().
		Map(strings.ToLower).
		SuchThat(func(s string) bool { return len(s) >= minTokenLen && !semanticFreePrefixes[s] })

	properties.Property("case and separator conventions agree", prop.ForAll(
		func(a, b string) bool {
			camel := a + strings.ToUpper(b[:1]) + b[1:]
			snake := a + "_" + b
			return tokenSet(Tokenize(camel)) == tokenSet(Tokenize(snake))
		},
		lowerWord, lowerWord,
	))

	properties.TestingRun(t)
}

func TestScore(t *testing.T) {
	tests := []struct {
		query, token string
		want         float64
	}{
		{"user", "user", 1.0},
		{"user", "username", 0.5},
		{"username", "user", 0.5},
		{"user", "profile", 0},
		{"", "user", 0},
		{"user", "", 0},
	}
	for _, tt := range tests {
		if got := Score(tt.query, tt.token); got != tt.want {
			t.Errorf("Score(%q, %q) = %v, want %v", tt.query, tt.token, got, tt.want)
		}
	}
}
