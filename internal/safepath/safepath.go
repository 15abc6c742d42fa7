// Package safepath gates extraction targets so entries parsed from a bundle
// can never be written outside the chosen output root.
package safepath

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrEmpty    = errors.New("empty path")
	ErrAbsolute = errors.New("absolute path")
	ErrEscapes  = errors.New("path escapes output root")
)

// Resolve joins rel onto root and returns the absolute target. rel uses
// forward slashes as written in the bundle. Absolute paths, drive-qualified
// paths and anything whose normalized form climbs above root are rejected.
func Resolve(root, rel string) (string, error) {
	s := strings.ReplaceAll(rel, "\\", "/")
	if strings.TrimSpace(s) == "" {
		return "", ErrEmpty
	}
	if strings.HasPrefix(s, "/") || filepath.IsAbs(rel) || hasDrive(s) {
		return "", ErrAbsolute
	}
	clean := path.Clean(s)
	if clean == "." {
		return "", ErrEmpty
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrEscapes
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	target := filepath.Join(rootAbs, filepath.FromSlash(clean))
	if !within(rootAbs, target) {
		return "", ErrEscapes
	}
	if !linksStayInside(rootAbs, target) {
		return "", ErrEscapes
	}
	return target, nil
}

// Contained reports whether rel would resolve inside root.
func Contained(root, rel string) bool {
	_, err := Resolve(root, rel)
	return err == nil
}

func hasDrive(s string) bool {
	return len(s) >= 2 && s[1] == ':' &&
		((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z'))
}

func within(root, target string) bool {
	r, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	r = filepath.ToSlash(r)
	return r != ".." && !strings.HasPrefix(r, "../")
}

// linksStayInside walks up from target to the deepest existing ancestor and
// checks that symlinks there do not lead out of root.
func linksStayInside(root, target string) bool {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		// Root not created yet: nothing below it can be a link.
		return true
	}
	p := target
	for {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			return true
		}
		p = parent
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false
	}
	return resolved == realRoot || within(realRoot, resolved)
}
