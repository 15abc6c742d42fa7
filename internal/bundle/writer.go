package bundle

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"bfiles/internal/chunk"
	"bfiles/internal/config"
	"bfiles/internal/content"
	"bfiles/internal/exclude"
	"bfiles/internal/textutil"
)

// unsafeLogPositions caps how many control character offsets one warning shows.
const unsafeLogPositions = 3

// WriterOptions wires a Writer to the run's collaborators.
type WriterOptions struct {
	Config     config.Config
	Content    *content.Classifier
	Exclusions *exclude.Classifier
	// Tokenizer may be nil. Without one nothing is chunked and the footer
	// reports content tokens only.
	Tokenizer chunk.Tokenizer
	Logger    *log.Logger
	Now       func() time.Time
}

// Writer renders candidates into bundle text.
type Writer struct {
	opts   WriterOptions
	logger *log.Logger
	now    func() time.Time

	buf   bytes.Buffer
	stats Stats
}

// NewWriter returns a Writer for one run.
func NewWriter(opts WriterOptions) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Writer{opts: opts, logger: logger, now: now}
}

// Write classifies every candidate in order and returns the complete bundle
// text. Per-file failures become error entries; Write itself only fails when
// the bundle cannot be framed at all.
func (w *Writer) Write(candidates []string) ([]byte, Stats, error) {
	start := w.now()
	w.buf.Reset()
	w.stats = Stats{BundleTokens: -1}

	w.writeHeader(start)
	for _, path := range candidates {
		w.writeCandidate(path)
	}

	if w.opts.Exclusions != nil {
		w.stats.Exclusions = w.opts.Exclusions.Counts()
	}
	if w.opts.Tokenizer != nil {
		n, err := w.opts.Tokenizer.CountTokens(w.buf.String())
		if err != nil {
			w.logger.Warn("bundle token estimate failed", "err", err)
		} else {
			w.stats.BundleTokens = n
		}
	}
	w.stats.Elapsed = w.now().Sub(start)
	w.stats.OutputFile = w.opts.Config.OutputFile
	w.buf.WriteString(w.stats.Footer(w.bundleName(), w.opts.Config.UseGitignore))

	out := append([]byte(nil), w.buf.Bytes()...)
	return out, w.stats, nil
}

func (w *Writer) bundleName() string {
	if w.opts.Config.OutputFile == "" {
		return config.DefaultOutput
	}
	return filepath.Base(w.opts.Config.OutputFile)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (w *Writer) writeHeader(start time.Time) {
	cfg := w.opts.Config
	fmt.Fprintf(&w.buf, "%s\n%s\n\n", PreambleLine1, PreambleLine2)
	fmt.Fprintf(&w.buf, "%s%s%s\n", StartPrefix, w.bundleName(), MarkerSuffix)
	fmt.Fprintf(&w.buf, "%s%s\n", GeneratedPrefix, start.Format(time.RFC3339))
	settings := fmt.Sprintf("hash=%s, gitignore=%s, followlinks=%s",
		cfg.HashAlgorithm, yesNo(cfg.UseGitignore), yesNo(cfg.FollowSymlinks))
	if cfg.ChunkingEnabled() {
		settings += fmt.Sprintf(", chunk_size=%d, chunk_overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	fmt.Fprintf(&w.buf, "%s%s\n", ConfigPrefix, settings)
	if c := strings.TrimSpace(cfg.HeaderComment); c != "" {
		fmt.Fprintf(&w.buf, "%s%s\n", CommentPrefix, c)
	}
	fmt.Fprintf(&w.buf, "%s\n\n", HeaderEnd)
}

func (w *Writer) skip(path string) {
	w.stats.Skipped++
	if w.opts.Exclusions != nil {
		w.opts.Exclusions.Record(path, exclude.ReasonSkipped)
	}
	w.logger.Debug("file limit reached", "path", path)
}

func (w *Writer) writeCandidate(path string) {
	if limit := w.opts.Config.MaxFiles; limit > 0 && w.stats.Included >= limit {
		w.skip(path)
		return
	}
	rec, text := w.opts.Content.Classify(path)

	switch rec.Op {
	case content.OpError:
		w.stats.Errors++
		w.writeMetadataOnly(rec)
	case content.OpEmpty:
		w.stats.Empty++
		w.writeBlock(w.nextNumber(), rec, nil)
	case content.OpDuplicate:
		w.stats.Duplicates++
		w.writeMetadataOnly(rec)
	case content.OpIncluded:
		w.writeIncluded(rec, text)
		return
	}
	w.stats.Records = append(w.stats.Records, rec)
}

// nextNumber is the number the next numbered entry gets.
func (w *Writer) nextNumber() int {
	return w.stats.Included + w.stats.Empty
}

func (w *Writer) writeIncluded(rec content.FileRecord, text []byte) {
	if rec.EncodingFallback {
		w.stats.EncodingFallbacks++
	}
	if offs := textutil.DangerousOffsets(text, unsafeLogPositions); len(offs) > 0 {
		cfg := w.opts.Config
		switch {
		case cfg.AllowUnsafe:
			w.stats.UnsafeAllowed++
			w.logger.Warn("including file with control characters", "path", rec.RelPath, "positions", offs)
		case cfg.SanitizeUnsafe:
			var n int
			text, n = textutil.Sanitize(text)
			w.stats.Sanitized++
			w.logger.Info("sanitized control characters", "path", rec.RelPath, "replaced", n)
		default:
			w.stats.UnsafeExcluded++
			w.opts.Content.Index().Forget(rec.Hash)
			if w.opts.Exclusions != nil {
				w.opts.Exclusions.Record(rec.Path, exclude.ReasonUnsafe)
			}
			w.logger.Warn("excluding file with control characters", "path", rec.RelPath, "positions", offs)
			w.stats.Records = append(w.stats.Records, rec.WithOp(content.OpExcluded))
			return
		}
	}

	windows, err := w.windows(rec, text)
	if err != nil {
		w.logger.Error("chunking failed", "path", rec.RelPath, "err", err)
		w.opts.Content.Index().Forget(rec.Hash)
		rec = rec.WithError(fmt.Errorf("chunk: %w", err))
		w.stats.Errors++
		w.writeMetadataOnly(rec)
		w.stats.Records = append(w.stats.Records, rec)
		return
	}

	w.stats.Included++
	w.stats.TotalSize += rec.Size
	if rec.Tokenized {
		w.stats.ContentTokens += rec.TokenCount
	}
	num := w.nextNumber()
	if windows == nil {
		w.writeBlock(num, rec, text)
	} else {
		w.stats.ChunkedFiles++
		for _, cw := range windows {
			w.stats.Chunks++
			w.writeBlock(num, rec.AsChunk(cw.win.Index, cw.win.Total, len(cw.win.Tokens), cw.win.OverlapBytesPrev), cw.text)
		}
	}
	w.stats.Records = append(w.stats.Records, rec)
}

type decodedWindow struct {
	win  chunk.Window
	text []byte
}

// windows splits text when rec exceeds the chunk budget. A nil result means
// the file is written whole.
func (w *Writer) windows(rec content.FileRecord, text []byte) ([]decodedWindow, error) {
	cfg := w.opts.Config
	tok := w.opts.Tokenizer
	if !cfg.ChunkingEnabled() || tok == nil || !rec.Tokenized || rec.EncodingFallback {
		return nil, nil
	}
	if !chunk.ShouldChunk(rec.TokenCount, cfg.ChunkSize) {
		return nil, nil
	}
	tokens, err := tok.Encode(string(text))
	if err != nil {
		return nil, err
	}
	split, err := chunk.Split(tokens, cfg.ChunkSize, cfg.ChunkOverlap, tok)
	if err != nil {
		return nil, err
	}
	out := make([]decodedWindow, 0, len(split))
	for _, cw := range split {
		s, err := cw.Text(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, decodedWindow{win: cw, text: []byte(s)})
	}
	w.logger.Debug("chunked file", "path", rec.RelPath, "tokens", len(tokens), "chunks", len(out))
	return out, nil
}

func (w *Writer) writeMetadataOnly(rec content.FileRecord) {
	w.buf.WriteString(EntryHeader(0, rec))
	w.buf.WriteString("\n\n")
}

func (w *Writer) writeBlock(num int, rec content.FileRecord, body []byte) {
	w.buf.WriteString(EntryHeader(num, rec))
	w.buf.WriteString("\n" + BOF + "\n")
	if len(body) > 0 {
		w.buf.Write(textutil.EnsureTrailingLF(body))
	}
	w.buf.WriteString(EOF + "\n\n")
}
