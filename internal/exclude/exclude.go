// Package exclude decides whether a path takes part in a bundle.
//
// Rules apply in a fixed order. Matching .gitignore rules win outright.
// Include globs then override every configured exclude. Excludes are tried
// tier by tier: literal paths, then regular expressions, then globs.
// Decisions are memoized per resolved path for the lifetime of a Classifier,
// and each exclusion bumps exactly one counter.
package exclude

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"bfiles/internal/cache"
	"bfiles/internal/sortutil"
)

// Reason explains a decision. ReasonNone means included.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonGitignore
	ReasonLiteral
	ReasonRegex
	ReasonGlob
	ReasonSkipped
	ReasonError
	ReasonUnsafe
)

var reasonNames = [...]string{
	ReasonNone:      "none",
	ReasonGitignore: "gitignore",
	ReasonLiteral:   "literal",
	ReasonRegex:     "regex",
	ReasonGlob:      "glob",
	ReasonSkipped:   "skipped",
	ReasonError:     "error",
	ReasonUnsafe:    "unsafe",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

func tierReason(t Tier) Reason {
	switch t {
	case TierLiteral:
		return ReasonLiteral
	case TierRegex:
		return ReasonRegex
	default:
		return ReasonGlob
	}
}

// Decision is the memoized outcome for one resolved path.
type Decision struct {
	Path   string
	Reason Reason
	IsDir  bool
}

// Excluded reports whether the decision keeps the path out of the bundle.
func (d Decision) Excluded() bool { return d.Reason != ReasonNone }

// Counts aggregates exclusions by reason. Config covers the literal, regex
// and glob tiers split by whether the path was a directory.
type Counts struct {
	Gitignore   int `yaml:"gitignore" json:"gitignore"`
	ConfigFiles int `yaml:"config_files" json:"config_files"`
	ConfigDirs  int `yaml:"config_dirs" json:"config_dirs"`
	Errors      int `yaml:"errors" json:"errors"`
	Skipped     int `yaml:"skipped" json:"skipped"`
}

// Options configures a Classifier.
type Options struct {
	Root         string
	Includes     []string
	Excludes     []string
	UseGitignore bool
	Logger       *log.Logger
}

// Classifier is the run-scoped exclusion engine. It is not safe for
// concurrent use.
type Classifier struct {
	root         string
	useGitignore bool
	includes     []Pattern
	literals     []Pattern
	regexes      []Pattern
	globs        []Pattern
	ignores      map[string][]gitPattern // dir -> rules, nil when the dir has none
	decisions    *cache.Memo[Decision]
	counts       Counts
	logger       *log.Logger
}

// New classifies every pattern once and returns a Classifier rooted at
// opts.Root.
func New(opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	root := resolvePath(opts.Root)
	c := &Classifier{
		root:         root,
		useGitignore: opts.UseGitignore,
		ignores:      make(map[string][]gitPattern),
		decisions:    cache.NewMemo[Decision](),
		logger:       logger,
	}
	for _, raw := range opts.Includes {
		if raw == "" {
			continue
		}
		c.includes = append(c.includes, Pattern{Raw: raw, Tier: TierGlob, glob: compileFnmatch(raw)})
	}
	for _, raw := range opts.Excludes {
		if raw == "" {
			continue
		}
		p := classifyPattern(raw, root)
		switch p.Tier {
		case TierLiteral:
			c.literals = append(c.literals, p)
		case TierRegex:
			c.regexes = append(c.regexes, p)
		default:
			c.globs = append(c.globs, p)
		}
		logger.Debug("exclude pattern", "pattern", raw, "tier", p.Tier)
	}
	return c
}

// Root returns the resolved scan root.
func (c *Classifier) Root() string { return c.root }

// Classify returns the decision for path, computing and counting it on the
// first call only.
func (c *Classifier) Classify(path string) Decision {
	abs := resolvePath(path)
	if d, ok := c.decisions.Get(abs); ok {
		return d
	}
	isDir := false
	if st, err := os.Stat(abs); err == nil {
		isDir = st.IsDir()
	}
	d := Decision{Path: abs, Reason: c.evaluate(abs, isDir), IsDir: isDir}
	d = c.decisions.Put(abs, d)
	if d.Excluded() {
		c.count(d)
		c.logger.Debug("excluded", "path", c.Rel(abs), "reason", d.Reason)
	}
	return d
}

// Record marks path as excluded for a reason decided outside the pattern
// rules (a read error, a file limit, unsafe content). A path that is already
// excluded keeps its first reason and is not counted twice.
func (c *Classifier) Record(path string, reason Reason) Decision {
	abs := resolvePath(path)
	if d, ok := c.decisions.Get(abs); ok && d.Excluded() {
		return d
	}
	isDir := false
	if st, err := os.Stat(abs); err == nil {
		isDir = st.IsDir()
	}
	d := Decision{Path: abs, Reason: reason, IsDir: isDir}
	c.decisions.Set(abs, d)
	if d.Excluded() {
		c.count(d)
	}
	return d
}

func (c *Classifier) evaluate(abs string, isDir bool) Reason {
	if c.useGitignore && c.gitignored(abs, isDir) {
		return ReasonGitignore
	}
	for _, p := range c.includes {
		if p.matchGlob(abs) {
			return ReasonNone
		}
	}
	for _, p := range c.literals {
		if abs == p.literal {
			return tierReason(TierLiteral)
		}
	}
	for _, p := range c.regexes {
		if p.matchRegex(abs) {
			return tierReason(TierRegex)
		}
	}
	for _, p := range c.globs {
		if p.matchGlob(abs) {
			return tierReason(TierGlob)
		}
	}
	return ReasonNone
}

// gitignored checks the rule set of every directory from abs's parent up to
// and including the root. Each set sees abs relative to its own directory.
func (c *Classifier) gitignored(abs string, isDir bool) bool {
	if abs == c.root || !within(c.root, abs) {
		return false
	}
	dir := filepath.Dir(abs)
	for {
		if pats := c.rulesFor(dir); len(pats) > 0 {
			rel, err := filepath.Rel(dir, abs)
			if err == nil && matchGitignore(pats, filepath.ToSlash(rel), isDir) {
				return true
			}
		}
		if dir == c.root {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func (c *Classifier) rulesFor(dir string) []gitPattern {
	if pats, ok := c.ignores[dir]; ok {
		return pats
	}
	pats, err := parseGitignore(filepath.Join(dir, ".gitignore"))
	if err != nil && !os.IsNotExist(err) {
		c.logger.Warn("unreadable .gitignore", "dir", c.Rel(dir), "err", err)
	}
	if len(pats) > 0 {
		c.logger.Debug("loaded .gitignore", "dir", c.Rel(dir), "rules", len(pats))
	}
	c.ignores[dir] = pats
	return pats
}

func (c *Classifier) count(d Decision) {
	switch d.Reason {
	case ReasonGitignore:
		c.counts.Gitignore++
	case ReasonLiteral, ReasonRegex, ReasonGlob:
		if d.IsDir {
			c.counts.ConfigDirs++
		} else {
			c.counts.ConfigFiles++
		}
	case ReasonError:
		c.counts.Errors++
	case ReasonSkipped:
		c.counts.Skipped++
	}
}

// Counts returns the exclusion tallies so far.
func (c *Classifier) Counts() Counts { return c.counts }

// Excluded returns every excluded decision ordered by relative path.
func (c *Classifier) Excluded() []Decision {
	keys := c.decisions.Keys()
	byRel := make(map[string]Decision, len(keys))
	rels := make([]string, 0, len(keys))
	for _, k := range keys {
		d, _ := c.decisions.Get(k)
		if !d.Excluded() {
			continue
		}
		rel := c.Rel(k)
		byRel[rel] = d
		rels = append(rels, rel)
	}
	out := make([]Decision, 0, len(rels))
	for _, rel := range sortutil.StablePathSort(rels) {
		out = append(out, byRel[rel])
	}
	return out
}

// Rel renders abs relative to the root with forward slashes.
func (c *Classifier) Rel(abs string) string {
	return sortutil.RelKey(c.root, abs)
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
