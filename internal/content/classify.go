package content

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"bfiles/internal/cache"
	"bfiles/internal/hashutil"
	"bfiles/internal/retry"
	"bfiles/internal/sortutil"
	"bfiles/internal/textutil"
)

// DefaultReadAttempts bounds retries of a single file read.
const DefaultReadAttempts = 2

// binarySniffLen is how much of a file is checked for NUL bytes before
// token counting.
const binarySniffLen = 1024

// TokenCounter counts the tokens of a text.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// Options configures a Classifier.
type Options struct {
	Root          string
	HashAlgorithm string
	// Tokens may be nil, in which case no file carries a token count.
	Tokens       TokenCounter
	Index        *cache.HashIndex
	Logger       *log.Logger
	ReadAttempts int
}

// Classifier settles the operation of each candidate. It owns the run's
// content-hash index; the first file seen with a digest wins.
type Classifier struct {
	opts   Options
	index  *cache.HashIndex
	logger *log.Logger
}

// NewClassifier returns a Classifier. A nil Index starts a fresh one.
func NewClassifier(opts Options) *Classifier {
	if opts.Index == nil {
		opts.Index = cache.NewHashIndex()
	}
	if opts.ReadAttempts <= 0 {
		opts.ReadAttempts = DefaultReadAttempts
	}
	if opts.HashAlgorithm == "" {
		opts.HashAlgorithm = "sha256"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Classifier{opts: opts, index: opts.Index, logger: logger}
}

// Index exposes the content-hash index.
func (c *Classifier) Index() *cache.HashIndex { return c.index }

// Classify builds the record for path. For OpIncluded it also returns the
// decoded text that goes into the bundle; other operations return nil.
func (c *Classifier) Classify(path string) (FileRecord, []byte) {
	rec := FileRecord{
		Path:        path,
		RelPath:     sortutil.RelKey(c.opts.Root, path),
		MIMESubtype: GuessSubtype(path),
	}
	st, err := retry.Do(c.opts.ReadAttempts, func(int) (os.FileInfo, error) {
		return os.Stat(path)
	})
	if err != nil {
		c.logger.Warn("cannot stat file", "path", rec.RelPath, "err", err)
		return rec.WithError(fmt.Errorf("stat: %w", err)), nil
	}
	rec.Size = st.Size()
	rec.ModTime = st.ModTime()
	if rec.Size == 0 {
		return rec.WithOp(OpEmpty), nil
	}

	data, err := retry.Do(c.opts.ReadAttempts, func(int) ([]byte, error) {
		return os.ReadFile(path)
	})
	if err != nil {
		c.logger.Warn("cannot read file", "path", rec.RelPath, "err", err)
		return rec.WithError(fmt.Errorf("read: %w", err)), nil
	}
	sum, err := hashutil.Sum(data, c.opts.HashAlgorithm)
	if err != nil {
		return rec.WithError(err), nil
	}
	rec.Hash = sum
	if owner, added := c.index.Register(sum, rec.RelPath); !added {
		rec.DuplicateOf = owner
		c.logger.Debug("duplicate", "path", rec.RelPath, "original", owner)
		return rec.WithOp(OpDuplicate), nil
	}

	text, fallback, err := textutil.DecodeText(data)
	if err != nil {
		c.index.Forget(sum)
		c.logger.Warn("cannot decode file", "path", rec.RelPath, "err", err)
		return rec.WithError(fmt.Errorf("decode: %w", err)), nil
	}
	if fallback {
		rec.EncodingFallback = true
		c.logger.Info("decoded with latin-1 fallback", "path", rec.RelPath)
	}
	rec = rec.WithOp(OpIncluded)
	if c.opts.Tokens == nil {
		return rec, text
	}
	head := data
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		c.logger.Debug("skipping token count for likely binary file", "path", rec.RelPath)
		return rec, text
	}
	n, err := c.opts.Tokens.CountTokens(string(text))
	if err != nil {
		c.logger.Warn("token count failed", "path", rec.RelPath, "err", err)
		return rec, text
	}
	return rec.WithTokens(n), text
}
