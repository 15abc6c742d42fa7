// Package bundle writes and reads the bfiles text archive: a header, one
// delimited entry per file or chunk, and a summary footer.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"bfiles/internal/atomicio"
	"bfiles/internal/chunk"
	"bfiles/internal/config"
	"bfiles/internal/content"
	"bfiles/internal/exclude"
	"bfiles/internal/retry"
	"bfiles/internal/walkwalk"
)

// WriteAttempts bounds retries of the final bundle write.
const WriteAttempts = 2

// ErrWrite wraps a failed final write.
var ErrWrite = errors.New("write bundle")

// Options are the collaborators of a Bundler beyond its configuration.
type Options struct {
	Logger *log.Logger
	// Tokenizer overrides the one named by the configuration.
	Tokenizer chunk.Tokenizer
	Now       func() time.Time
}

// Bundler runs one collection and bundling pass. Configuration is validated
// before any filesystem work.
type Bundler struct {
	cfg        config.Config
	logger     *log.Logger
	tokenizer  chunk.Tokenizer
	exclusions *exclude.Classifier
	content    *content.Classifier
	now        func() time.Time
}

// New validates cfg and prepares the run. A tokenizer that cannot be
// loaded disables token counting and chunking with a warning.
func New(cfg config.Config, opts Options) (*Bundler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tok := opts.Tokenizer
	if tok == nil && cfg.Tokenizer != "" {
		t, err := chunk.New(cfg.Tokenizer)
		if err != nil {
			logger.Warn("tokenizer unavailable, token counts disabled", "tokenizer", cfg.Tokenizer, "err", err)
		} else {
			tok = t
		}
	}
	if tok == nil && cfg.ChunkingEnabled() {
		logger.Warn("chunking requested without a tokenizer, files are written whole")
	}

	b := &Bundler{cfg: cfg, logger: logger, tokenizer: tok, now: now}
	b.exclusions = exclude.New(exclude.Options{
		Root:         cfg.RootDir,
		Includes:     cfg.IncludePatterns,
		Excludes:     cfg.Excludes(),
		UseGitignore: cfg.UseGitignore,
		Logger:       logger,
	})
	var counter content.TokenCounter
	if tok != nil {
		counter = tok
	}
	b.content = content.NewClassifier(content.Options{
		Root:          b.exclusions.Root(),
		HashAlgorithm: cfg.HashAlgorithm,
		Tokens:        counter,
		Logger:        logger,
	})
	return b, nil
}

// Config returns the validated configuration.
func (b *Bundler) Config() config.Config { return b.cfg }

// Exclusions exposes the run's exclusion engine and its memoized decisions.
func (b *Bundler) Exclusions() *exclude.Classifier { return b.exclusions }

// Collect gathers the candidate files under the root.
func (b *Bundler) Collect() ([]string, error) {
	return walkwalk.Collect(walkwalk.Options{
		FollowSymlinks: b.cfg.FollowSymlinks,
		Classifier:     b.exclusions,
		Logger:         b.logger,
	})
}

// Render builds the bundle text for candidates without writing it.
func (b *Bundler) Render(candidates []string) ([]byte, Stats, error) {
	w := NewWriter(WriterOptions{
		Config:     b.cfg,
		Content:    b.content,
		Exclusions: b.exclusions,
		Tokenizer:  b.tokenizer,
		Logger:     b.logger,
		Now:        b.now,
	})
	return w.Write(candidates)
}

// Bundle renders candidates and writes the result to the output file.
func (b *Bundler) Bundle(candidates []string) (Stats, error) {
	data, stats, err := b.Render(candidates)
	if err != nil {
		return stats, err
	}
	err = retry.Run(WriteAttempts, func(attempt int) error {
		if attempt > 0 {
			b.logger.Warn("retrying bundle write", "path", b.cfg.OutputFile, "attempt", attempt+1)
		}
		return atomicio.WriteFile(b.cfg.OutputFile, data, 0o644)
	})
	if err != nil {
		return stats, fmt.Errorf("%w %s: %w", ErrWrite, b.cfg.OutputFile, err)
	}
	b.logger.Info("bundle written", "path", b.cfg.OutputFile, "files", stats.Included, "bytes", len(data))
	if err := b.writeExclusionReport(); err != nil {
		return stats, err
	}
	return stats, nil
}

// Run collects and bundles in one call.
func (b *Bundler) Run() (Stats, error) {
	candidates, err := b.Collect()
	if err != nil {
		return Stats{}, err
	}
	return b.Bundle(candidates)
}

func (b *Bundler) writeExclusionReport() error {
	path := b.cfg.ExclusionReport
	if path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := b.exclusions.WriteReport(&buf, b.now()); err != nil {
		return fmt.Errorf("exclusion report: %w", err)
	}
	if err := atomicio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("exclusion report: %w", err)
	}
	b.logger.Info("exclusion report written", "path", path)
	return nil
}
