// Package diff renders unified diffs of two byte spans for diagnostics,
// such as a chunk overlap that failed to line up during reassembly.
// It uses github.com/pmezard/go-difflib/difflib.
package diff

import (
	"fmt"
	"strconv"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of context lines in a hunk.
const DefaultContext = 3

// Options controls patch generation.
type Options struct {
	// MaxBytes caps len(a)+len(b). Larger inputs yield a placeholder and
	// oversize=true. 0 means no limit.
	MaxBytes int
	// Context lines per hunk. 0 means DefaultContext.
	Context int
	// Quote renders each line with strconv.Quote so control bytes and
	// missing newlines stay visible in logs.
	Quote bool
}

// Unified returns a unified patch from a to b. An empty string means the
// inputs are equal.
func Unified(aName, bName string, a, b []byte, opt Options) (body string, oversize bool) {
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return omitted(aName, bName), true
	}
	ctx := opt.Context
	if ctx <= 0 {
		ctx = DefaultContext
	}
	u := difflib.UnifiedDiff{
		A:        splitLines(a, opt.Quote),
		B:        splitLines(b, opt.Quote),
		FromFile: aName,
		ToFile:   bName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return omitted(aName, bName), false
	}
	return s, false
}

// splitLines keeps the "\n" on every line. Quoted lines carry their own
// terminator.
func splitLines(b []byte, quote bool) []string {
	if len(b) == 0 {
		return []string{}
	}
	lines := strings.SplitAfter(string(b), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if quote {
		for i, l := range lines {
			lines[i] = strconv.Quote(l) + "\n"
		}
	}
	return lines
}

func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", aName, bName)
}
