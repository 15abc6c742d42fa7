package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bfiles/internal/content"
	"bfiles/internal/exclude"
)

// Stats are the aggregate counts of one bundling run.
type Stats struct {
	Included          int   `yaml:"included" json:"included"`
	TotalSize         int64 `yaml:"total_size" json:"total_size"`
	Duplicates        int   `yaml:"duplicates" json:"duplicates"`
	Empty             int   `yaml:"empty" json:"empty"`
	Errors            int   `yaml:"errors" json:"errors"`
	EncodingFallbacks int   `yaml:"encoding_fallbacks" json:"encoding_fallbacks"`
	UnsafeExcluded    int   `yaml:"unsafe_excluded" json:"unsafe_excluded"`
	UnsafeAllowed     int   `yaml:"unsafe_allowed" json:"unsafe_allowed"`
	Sanitized         int   `yaml:"sanitized" json:"sanitized"`
	Skipped           int   `yaml:"skipped" json:"skipped"`
	ChunkedFiles      int   `yaml:"chunked_files" json:"chunked_files"`
	Chunks            int   `yaml:"chunks" json:"chunks"`

	Exclusions exclude.Counts `yaml:"exclusions" json:"exclusions"`

	ContentTokens int `yaml:"content_tokens" json:"content_tokens"`
	// BundleTokens is -1 when no tokenizer was available.
	BundleTokens int `yaml:"bundle_tokens" json:"bundle_tokens"`

	Elapsed time.Duration `yaml:"-" json:"-"`
	Seconds float64       `yaml:"elapsed_seconds" json:"elapsed_seconds"`

	OutputFile string `yaml:"output_file,omitempty" json:"output_file,omitempty"`

	// Records holds the file-level record of every processed candidate.
	Records []content.FileRecord `yaml:"-" json:"-"`
}

// SystemErrors adds per-file errors to errors recorded during collection.
func (s Stats) SystemErrors() int { return s.Errors + s.Exclusions.Errors }

// Footer renders the bundle summary block and the end marker.
func (s Stats) Footer(name string, useGitignore bool) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	b.WriteString("\n" + SummaryStart + "\n")
	line("- Included Files: %d", s.Included)
	line("- Total Size (Included): %d bytes", s.TotalSize)
	line("- Duplicate Files Skipped: %d", s.Duplicates)
	line("- Items Excluded by Config/Defaults: %d (Files: %d, Dirs: %d)",
		s.Exclusions.ConfigFiles+s.Exclusions.ConfigDirs, s.Exclusions.ConfigFiles, s.Exclusions.ConfigDirs)
	if useGitignore && s.Exclusions.Gitignore > 0 {
		line("- Items Excluded by .gitignore: %d", s.Exclusions.Gitignore)
	}
	if s.UnsafeExcluded > 0 {
		line("- Files Excluded (Unsafe Control Characters): %d", s.UnsafeExcluded)
	}
	if s.Sanitized > 0 {
		line("- Files Sanitized (Control Characters Replaced): %d", s.Sanitized)
	}
	line("- Empty Files Found: %d", s.Empty)
	if s.Skipped > 0 {
		line("- Files Skipped (Limit Reached): %d", s.Skipped)
	}
	line("- System Errors Encountered: %d", s.SystemErrors())
	line("- Encoding Errors (Fallback Attempted): %d", s.EncodingFallbacks)
	if s.BundleTokens >= 0 {
		line("- Estimated Bundle Token Range: %d - %d", s.ContentTokens, s.BundleTokens)
	} else {
		line("- Total Content Tokens (Included Files): %d (Full bundle estimate N/A)", s.ContentTokens)
	}
	line("- Processing Time: %.2f seconds", s.Elapsed.Seconds())
	b.WriteString(SummaryEnd + "\n")
	b.WriteString("\n" + EndPrefix + name + MarkerSuffix + "\n")
	return b.String()
}

// WriteSummary renders s as yaml or json to w.
func (s Stats) WriteSummary(w io.Writer, format string) error {
	s.Seconds = s.Elapsed.Seconds()
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	return fmt.Errorf("unknown summary format %q", format)
}
