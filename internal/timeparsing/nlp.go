package timeparsing

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// nlParser is the shared natural-language parser. when's rule sets are
// immutable after construction, so one instance serves every call.
var (
	nlOnce   sync.Once
	nlParser *when.Parser
)

func parser() *when.Parser {
	nlOnce.Do(func() {
		nlParser = when.New(nil)
		nlParser.Add(en.All...)
		nlParser.Add(common.All...)
	})
	return nlParser
}

// ParseNaturalLanguage resolves an English time phrase ("tomorrow", "next
// friday", "2 days ago") relative to now. The whole input must be a time
// phrase: a match that covers only part of the string is rejected, so a typo
// like "tomorow please" does not silently resolve to whatever fragment the
// rules recognized.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}

	r, err := parser().Parse(trimmed, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("not a recognized time phrase: %q", s)
	}
	if len(strings.TrimSpace(trimmed[:r.Index]))+len(strings.TrimSpace(trimmed[r.Index+len(r.Text):])) > 0 {
		return time.Time{}, fmt.Errorf("unrecognized text around time phrase in %q", s)
	}
	return r.Time, nil
}
