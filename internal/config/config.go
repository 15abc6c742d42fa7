// Package config defines the settings of a bundling run, their defaults,
// and the validation that must pass before any filesystem work starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bfiles/internal/hashutil"
)

// EnvPrefix is prepended to every environment override (BFILES_CHUNK_SIZE).
const EnvPrefix = "BFILES"

// DefaultOutput is the bundle name used when none is given.
const DefaultOutput = "bfiles_bundle.txt"

// DefaultExcludes are always applied ahead of user patterns. Each entry is
// classified as a glob, regex or literal when the exclusion engine starts.
var DefaultExcludes = []string{
	".*",
	`\.py[co]$`,
	".git/",
	".venv/",
	"venv/",
	`(^|/)\.env$`,
	"bin/",
	"obj/",
	"build/",
	"dist/",
	"node_modules/",
	"__pycache__/",
	"*.log",
	"*.tmp",
	"*.swp",
	"*bfiles*.txt",
	"*.bf.txt",
}

// Summary formats accepted by SummaryFormat.
const (
	SummaryText = "text"
	SummaryYAML = "yaml"
	SummaryJSON = "json"
)

// Config is one run's settings. Paths are made absolute by Validate.
type Config struct {
	RootDir         string   `mapstructure:"root_dir" yaml:"root_dir" json:"root_dir"`
	OutputFile      string   `mapstructure:"output" yaml:"output" json:"output"`
	Encoding        string   `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
	HashAlgorithm   string   `mapstructure:"hash_algorithm" yaml:"hash_algorithm" json:"hash_algorithm"`
	UseGitignore    bool     `mapstructure:"use_gitignore" yaml:"use_gitignore" json:"use_gitignore"`
	FollowSymlinks  bool     `mapstructure:"follow_symlinks" yaml:"follow_symlinks" json:"follow_symlinks"`
	MaxFiles        int      `mapstructure:"max_files" yaml:"max_files" json:"max_files"`
	ChunkSize       int      `mapstructure:"chunk_size" yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int      `mapstructure:"chunk_overlap" yaml:"chunk_overlap" json:"chunk_overlap"`
	Tokenizer       string   `mapstructure:"tokenizer" yaml:"tokenizer" json:"tokenizer"`
	AllowUnsafe     bool     `mapstructure:"allow_unsafe" yaml:"allow_unsafe" json:"allow_unsafe"`
	SanitizeUnsafe  bool     `mapstructure:"sanitize_unsafe" yaml:"sanitize_unsafe" json:"sanitize_unsafe"`
	IncludePatterns []string `mapstructure:"include" yaml:"include" json:"include"`
	ExcludePatterns []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	HeaderComment   string   `mapstructure:"comment" yaml:"comment" json:"comment"`
	ShowExcluded    bool     `mapstructure:"show_excluded" yaml:"show_excluded" json:"show_excluded"`
	ExclusionReport string   `mapstructure:"exclusion_report" yaml:"exclusion_report" json:"exclusion_report"`
	SummaryFormat   string   `mapstructure:"summary_format" yaml:"summary_format" json:"summary_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		RootDir:       ".",
		OutputFile:    DefaultOutput,
		Encoding:      "utf-8",
		HashAlgorithm: "sha256",
		UseGitignore:  true,
		Tokenizer:     "cl100k_base",
		SummaryFormat: SummaryText,
	}
}

// ErrInvalid is matched by every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Error names the offending setting.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
}

func (e *Error) Unwrap() error { return ErrInvalid }

func invalid(field, format string, args ...any) error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Validate resolves RootDir and OutputFile to absolute paths and rejects
// settings that cannot produce a bundle.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		c.RootDir = "."
	}
	root, err := filepath.Abs(c.RootDir)
	if err != nil {
		return invalid("root_dir", "%v", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	st, err := os.Stat(root)
	if err != nil {
		return invalid("root_dir", "%v", err)
	}
	if !st.IsDir() {
		return invalid("root_dir", "%s is not a directory", root)
	}
	c.RootDir = root

	if c.OutputFile == "" {
		c.OutputFile = DefaultOutput
	}
	out, err := filepath.Abs(c.OutputFile)
	if err != nil {
		return invalid("output", "%v", err)
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(out)); err == nil {
		out = filepath.Join(dir, filepath.Base(out))
	}
	c.OutputFile = out

	if c.AllowUnsafe && c.SanitizeUnsafe {
		return invalid("allow_unsafe", "cannot be combined with sanitize_unsafe")
	}
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = "sha256"
	}
	c.HashAlgorithm = strings.ToLower(c.HashAlgorithm)
	if !hashutil.Supported(c.HashAlgorithm) {
		return invalid("hash_algorithm", "%q not one of %s", c.HashAlgorithm, strings.Join(hashutil.Algorithms(), ", "))
	}
	if enc := strings.ToLower(strings.ReplaceAll(c.Encoding, "_", "-")); enc != "" && enc != "utf-8" && enc != "utf8" {
		return invalid("encoding", "only utf-8 is supported, got %q", c.Encoding)
	}
	switch {
	case c.MaxFiles < 0:
		return invalid("max_files", "must not be negative")
	case c.ChunkSize < 0:
		return invalid("chunk_size", "must not be negative")
	case c.ChunkOverlap < 0:
		return invalid("chunk_overlap", "must not be negative")
	case c.ChunkOverlap > 0 && c.ChunkSize == 0:
		return invalid("chunk_overlap", "requires chunk_size")
	case c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize:
		return invalid("chunk_overlap", "%d must be smaller than chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	switch c.SummaryFormat {
	case "":
		c.SummaryFormat = SummaryText
	case SummaryText, SummaryYAML, SummaryJSON:
	default:
		return invalid("summary_format", "%q not one of text, yaml, json", c.SummaryFormat)
	}
	if c.ExclusionReport != "" {
		p, err := filepath.Abs(c.ExclusionReport)
		if err != nil {
			return invalid("exclusion_report", "%v", err)
		}
		c.ExclusionReport = p
	}
	return nil
}

// Excludes returns the exclude patterns in application order: defaults,
// user patterns, then the output file itself so a bundle never contains its
// own previous version.
func (c *Config) Excludes() []string {
	out := make([]string, 0, len(DefaultExcludes)+len(c.ExcludePatterns)+1)
	out = append(out, DefaultExcludes...)
	out = append(out, c.ExcludePatterns...)
	if c.OutputFile != "" {
		out = append(out, c.OutputFile)
	}
	return out
}

// ChunkingEnabled reports whether oversized files are split.
func (c *Config) ChunkingEnabled() bool { return c.ChunkSize > 0 }
