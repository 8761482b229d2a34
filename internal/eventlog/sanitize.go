package eventlog

import (
	"encoding/json"
	"strings"
)

// sanitizeRaw scrubs control characters from every string value in a JSON
// payload, recursively. Newline, tab and carriage return survive; the rest
// have no business in captured text and would leak into terminals and
// rendered markdown. Returns the original bytes untouched when nothing
// needed scrubbing, so clean payloads keep their exact wire form.
func sanitizeRaw(raw json.RawMessage) (json.RawMessage, bool, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}
	clean, changed := scrubValue(doc)
	if !changed {
		return raw, false, nil
	}
	out, err := json.Marshal(clean)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Sanitize returns payload bytes exactly as Append will journal them. Callers
// that mirror appended events in memory use it so a live projection matches a
// later replay of the same journal.
func Sanitize(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	clean, _, err := sanitizeRaw(raw)
	if err != nil {
		return nil, err
	}
	return clean, nil
}

func scrubValue(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		s := scrubString(t)
		return s, s != t
	case map[string]any:
		changed := false
		for k, vv := range t {
			nv, c := scrubValue(vv)
			if c {
				t[k] = nv
				changed = true
			}
		}
		return t, changed
	case []any:
		changed := false
		for i, vv := range t {
			nv, c := scrubValue(vv)
			if c {
				t[i] = nv
				changed = true
			}
		}
		return t, changed
	default:
		return v, false
	}
}

func scrubString(s string) string {
	if !strings.ContainsFunc(s, isBannedRune) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isBannedRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isBannedRune(r rune) bool {
	if r == '\n' || r == '\t' || r == '\r' {
		return false
	}
	return r < 0x20 || r == 0x7f
}
