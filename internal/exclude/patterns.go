package exclude

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// Tier is the kind a configured exclude pattern was classified as.
type Tier int

const (
	TierLiteral Tier = iota
	TierRegex
	TierGlob
)

func (t Tier) String() string {
	switch t {
	case TierLiteral:
		return "literal"
	case TierRegex:
		return "regex"
	case TierGlob:
		return "glob"
	}
	return "unknown"
}

// Pattern is one classified exclude (or include) pattern.
type Pattern struct {
	Raw  string
	Tier Tier

	literal string          // resolved absolute path
	rx      *regexp2.Regexp // regex tier
	glob    *regexp.Regexp  // glob tier, fnmatch semantics
}

// hasGlobMeta reports whether s contains shell wildcard characters.
func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// classifyPattern assigns raw to a tier. Wildcards make a glob. Anything
// else that is not absolute and compiles as a regular expression is a regex.
// What is left is a literal path, resolved against root when relative.
func classifyPattern(raw, root string) Pattern {
	isGlob := hasGlobMeta(raw)
	if !isGlob && !filepath.IsAbs(raw) {
		if rx, err := regexp2.Compile(raw, regexp2.None); err == nil {
			return Pattern{Raw: raw, Tier: TierRegex, rx: rx}
		}
	}
	if isGlob {
		return Pattern{Raw: raw, Tier: TierGlob, glob: compileFnmatch(raw)}
	}
	p := raw
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return Pattern{Raw: raw, Tier: TierLiteral, literal: resolvePath(p)}
}

// matchGlob tests a glob against the full slash path and the basename.
func (p Pattern) matchGlob(abs string) bool {
	full := filepath.ToSlash(abs)
	return p.glob.MatchString(full) || p.glob.MatchString(filepath.Base(abs))
}

// matchRegex searches the full slash path. Match errors (timeouts) count as
// no match.
func (p Pattern) matchRegex(abs string) bool {
	ok, err := p.rx.MatchString(filepath.ToSlash(abs))
	return err == nil && ok
}

// compileFnmatch translates a shell pattern with fnmatch rules: '*' and '?'
// cross '/' and "[!...]" negates a class. An unterminated '[' is literal.
func compileFnmatch(pat string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < len(pat); i++ {
		c := pat[i]
		switch c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			end, class := bracketClass(pat, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(class)
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`$`)
	rx, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile(`^` + regexp.QuoteMeta(pat) + `$`)
	}
	return rx
}

// bracketClass parses the class starting at pat[i] == '['. It returns the
// index of the closing ']' and the equivalent regexp class, or -1.
func bracketClass(pat string, i int) (int, string) {
	j := i + 1
	if j < len(pat) && (pat[j] == '!' || pat[j] == '^') {
		j++
	}
	if j < len(pat) && pat[j] == ']' {
		j++
	}
	for j < len(pat) && pat[j] != ']' {
		j++
	}
	if j >= len(pat) {
		return -1, ""
	}
	body := pat[i+1 : j]
	var b strings.Builder
	b.WriteByte('[')
	if strings.HasPrefix(body, "!") || strings.HasPrefix(body, "^") {
		b.WriteByte('^')
		body = body[1:]
	}
	for k := 0; k < len(body); k++ {
		switch body[k] {
		case '\\', '[', ']', '^':
			b.WriteByte('\\')
		}
		b.WriteByte(body[k])
	}
	b.WriteByte(']')
	return j, b.String()
}

// resolvePath makes p absolute and follows symlinks when the target exists.
func resolvePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		return r
	}
	return abs
}
