package exp

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type likeKey struct {
	pattern    string
	escape     rune
	ignoreCase bool
}

// likeCacheSize bounds the compiled pattern cache. The cache is emptied
// when it is full, so an unbounded stream of distinct patterns costs at most
// this many live matchers.
const likeCacheSize = 256

var likeCache = struct {
	sync.Mutex
	m map[likeKey]*likeMatcher
}{m: make(map[likeKey]*likeMatcher)}

func cachedLike(key likeKey) (*likeMatcher, bool) {
	likeCache.Lock()
	defer likeCache.Unlock()
	m, ok := likeCache.m[key]
	return m, ok
}

func storeLike(key likeKey, m *likeMatcher) {
	likeCache.Lock()
	defer likeCache.Unlock()
	if len(likeCache.m) >= likeCacheSize {
		clear(likeCache.m)
	}
	likeCache.m[key] = m
}

type likeMatcher struct {
	re         *regexp.Regexp
	ignoreCase bool
}

// compileLike turns a LIKE pattern into an anchored regular expression.
// % matches any sequence, _ exactly one code point. Both pattern and input
// are NFC normalised; with ignoreCase both are case folded. Escapes are
// found before folding, and with ignoreCase the escape character matches
// in either case, as it does against UPPER(pattern) in SQL.
func compileLike(pattern any, escape rune, ignoreCase bool) (*likeMatcher, error) {
	ps, err := cast.ToStringE(pattern)
	if err != nil {
		return nil, fmt.Errorf("like pattern: %w", err)
	}
	key := likeKey{pattern: ps, escape: escape, ignoreCase: ignoreCase}
	if m, ok := cachedLike(key); ok {
		return m, nil
	}

	ps = normalizeText(ps, false)
	literal := func(r rune) string {
		return regexp.QuoteMeta(normalizeText(string(r), ignoreCase))
	}
	isEscape := func(r rune) bool {
		if escape == 0 {
			return false
		}
		if ignoreCase {
			return strings.EqualFold(string(r), string(escape))
		}
		return r == escape
	}
	var b strings.Builder
	b.WriteString(`(?s)^`)
	escaped := false
	for _, r := range ps {
		switch {
		case escaped:
			b.WriteString(literal(r))
			escaped = false
		case isEscape(r):
			escaped = true
		case r == '%':
			b.WriteString(`.*`)
		case r == '_':
			b.WriteString(`.`)
		default:
			b.WriteString(literal(r))
		}
	}
	if escaped {
		return nil, fmt.Errorf("like pattern %q ends with escape character", ps)
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("like pattern %q: %w", ps, err)
	}
	m := &likeMatcher{re: re, ignoreCase: ignoreCase}
	storeLike(key, m)
	return m, nil
}

func (m *likeMatcher) match(v any) (bool, error) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return false, fmt.Errorf("like operand: %w", err)
	}
	return m.re.MatchString(normalizeText(s, m.ignoreCase)), nil
}

func normalizeText(s string, fold bool) string {
	s = norm.NFC.String(s)
	if fold {
		s = cases.Fold().String(s)
	}
	return s
}

// MatchLike reports whether s matches a LIKE pattern. It is exposed for
// callers that need the same matching rules outside an expression tree.
func MatchLike(s, pattern string, escape rune, ignoreCase bool) (bool, error) {
	m, err := compileLike(pattern, escape, ignoreCase)
	if err != nil {
		return false, err
	}
	return m.match(s)
}
