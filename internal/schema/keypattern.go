package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// KeyPattern produces patterned string primary keys:
// key(n) = Prefix + zero-padded(Start + n - 1, Width).
type KeyPattern struct {
	Prefix string `json:"prefix"`
	Width  int    `json:"width"`
	Start  int    `json:"start"`
}

// ErrBadPattern is returned by ParseKeyPattern for malformed patterns.
var ErrBadPattern = errors.New("invalid key pattern")

// Format returns the key for the 1-based sequence number seq.
func (p KeyPattern) Format(seq int) string {
	return p.Prefix + fmt.Sprintf("%0*d", p.Width, p.Start+seq-1)
}

// String renders the pattern in its explicit form, e.g. CUST-{4,1}.
func (p KeyPattern) String() string {
	return fmt.Sprintf("%s{%d,%d}", p.Prefix, p.Width, p.Start)
}

var explicitPattern = regexp.MustCompile(`^([A-Za-z0-9_-]*)\{\s*(\d+)\s*(?:,\s*(\d+)\s*)?\}$`)

// ParseKeyPattern parses the explicit form "<prefix>{<width>}" or
// "<prefix>{<width>,<start>}". Start defaults to 1.
func ParseKeyPattern(s string) (KeyPattern, error) {
	m := explicitPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return KeyPattern{}, fmt.Errorf("%w: %q", ErrBadPattern, s)
	}
	width, _ := strconv.Atoi(m[2])
	start := 1
	if m[3] != "" {
		start, _ = strconv.Atoi(m[3])
	}
	if width > 18 {
		return KeyPattern{}, fmt.Errorf("%w: width %d too large", ErrBadPattern, width)
	}
	return KeyPattern{Prefix: m[1], Width: width, Start: start}, nil
}

var (
	hintExplicit    = regexp.MustCompile(`pattern\s*=\s*([A-Za-z0-9_-]*\{\s*\d+\s*(?:,\s*\d+\s*)?\})`)
	hintFormat      = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_-]*)\{i(?:\s*\+\s*(\d+))?(?::0?(\d+)d)?\}`)
	hintPlaceholder = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Z][A-Za-z0-9]*?[-_]?)(X{2,}|#{2,})(?:[^A-Za-z0-9]|$)`)
	hintExample     = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Z]+)([-_]?)(\d+)(?:[^A-Za-z0-9]|$)`)
	hintInteger     = regexp.MustCompile(`(?i)\b(sequential|incrementing|auto[- ]?increment(?:ing)?)\s+(integer|int|number)s?\b`)
	hintCue         = regexp.MustCompile(`(?i)\b(like|e\.g\.?|such as|format|pattern|style|looks?|start(?:s|ing)?)\b`)
)

// DetectKeyPattern scans a table description for a primary key pattern
// hint. It returns false when there is no hint, more than one distinct
// hint, or the description explicitly asks for integer keys.
func DetectKeyPattern(description string) (KeyPattern, bool) {
	if hintInteger.MatchString(description) {
		return KeyPattern{}, false
	}

	var cands []KeyPattern
	for _, m := range hintExplicit.FindAllStringSubmatch(description, -1) {
		if p, err := ParseKeyPattern(m[1]); err == nil {
			cands = append(cands, p)
		}
	}
	for _, m := range hintFormat.FindAllStringSubmatch(description, -1) {
		p := KeyPattern{Prefix: m[1], Start: 1}
		if m[2] != "" {
			// i counts rows from 1.
			off, _ := strconv.Atoi(m[2])
			p.Start = off + 1
		}
		if m[3] != "" {
			p.Width, _ = strconv.Atoi(m[3])
		}
		cands = append(cands, p)
	}
	for _, m := range hintPlaceholder.FindAllStringSubmatch(description, -1) {
		cands = append(cands, KeyPattern{Prefix: m[1], Width: len(m[2]), Start: 1})
	}
	if len(cands) == 0 && hintCue.MatchString(description) {
		for _, m := range hintExample.FindAllStringSubmatch(description, -1) {
			digits := m[3]
			if m[2] == "" && len(digits) < 2 {
				continue
			}
			start, err := strconv.Atoi(digits)
			if err != nil {
				continue
			}
			p := KeyPattern{Prefix: m[1] + m[2], Start: start}
			if len(digits) > 1 && digits[0] == '0' {
				p.Width = len(digits)
			}
			cands = append(cands, p)
		}
	}

	uniq := dedupePatterns(cands)
	if len(uniq) != 1 {
		return KeyPattern{}, false
	}
	return uniq[0], true
}

func dedupePatterns(cands []KeyPattern) []KeyPattern {
	type key struct {
		prefix string
		width  int
	}
	idx := make(map[key]int)
	var out []KeyPattern
	for _, c := range cands {
		if c.Width > 18 || c.Start < 0 {
			continue
		}
		k := key{c.Prefix, c.Width}
		if i, ok := idx[k]; ok {
			if c.Start < out[i].Start {
				out[i].Start = c.Start
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, c)
	}
	return out
}
