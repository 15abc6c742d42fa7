package exclude

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// gitPattern is one compiled line of a .gitignore file.
type gitPattern struct {
	neg     bool           // pattern starts with '!'
	dirOnly bool           // pattern ends with '/'
	rx      *regexp.Regexp // compiled matcher over slash paths relative to the file's dir
}

// parseGitignore reads a .gitignore file and compiles its patterns:
//   - '#' comments, blank lines ignored ("\#" escapes a leading hash)
//   - '!' negation ("\!" escapes)
//   - a leading or inner '/' anchors to the directory holding the file
//   - trailing '/' restricts to directories
//   - '**' matches across directories
//   - '*', '?' and '[...]' behave like shell globs (not crossing '/')
func parseGitignore(path string) ([]gitPattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var res []gitPattern
	s := bufio.NewScanner(f)
	for s.Scan() {
		if p, ok := parseGitLine(s.Text()); ok {
			res = append(res, p)
		}
	}
	return res, s.Err()
}

func parseGitLine(raw string) (gitPattern, bool) {
	line := strings.TrimRight(raw, " \t\r")
	if strings.HasSuffix(line, "\\") && strings.HasSuffix(raw, " ") {
		line += " "
	}
	line = strings.TrimLeft(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return gitPattern{}, false
	}
	neg := false
	switch {
	case strings.HasPrefix(line, "!"):
		neg = true
		line = line[1:]
	case strings.HasPrefix(line, `\!`), strings.HasPrefix(line, `\#`):
		line = line[1:]
	}
	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	anchored := strings.HasPrefix(line, "/") || strings.Contains(strings.TrimPrefix(line, "**/"), "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return gitPattern{}, false
	}
	rx, err := compileGitGlob(line, anchored)
	if err != nil {
		return gitPattern{}, false
	}
	return gitPattern{neg: neg, dirOnly: dirOnly, rx: rx}, true
}

// compileGitGlob translates one gitignore glob into an anchored regexp.
func compileGitGlob(glob string, anchored bool) (*regexp.Regexp, error) {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			b.WriteString(`(?:.*/)?`)
			i += 2
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString(`.*`)
			i++
		case c == '*':
			b.WriteString(`[^/]*`)
		case c == '?':
			b.WriteString(`[^/]`)
		case c == '[':
			end, class := bracketClass(glob, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(class)
			i = end
		case c == '\\' && i+1 < len(glob):
			i++
			b.WriteString(regexp.QuoteMeta(string(glob[i])))
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	if anchored {
		return regexp.Compile(`^` + b.String() + `$`)
	}
	return regexp.Compile(`^(?:.*/)?` + b.String() + `$`)
}

// matchGitignore applies pats to rel (slash separated, relative to the
// directory holding the patterns). Every leading directory of rel is tested
// first, since nothing below an ignored directory can be re-included.
// Within one path the last matching pattern wins.
func matchGitignore(pats []gitPattern, rel string, isDir bool) bool {
	if len(pats) == 0 || rel == "" {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i <= len(parts); i++ {
		sub := strings.Join(parts[:i], "/")
		subIsDir := i < len(parts) || isDir
		if matchOne(pats, sub, subIsDir) {
			return true
		}
	}
	return false
}

func matchOne(pats []gitPattern, rel string, isDir bool) bool {
	ignored := false
	for _, p := range pats {
		if p.dirOnly && !isDir {
			continue
		}
		if p.rx.MatchString(rel) {
			ignored = !p.neg
		}
	}
	return ignored
}
