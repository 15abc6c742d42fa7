// Package unbundle restores files from a bfiles bundle: it parses the whole
// archive, rebuilds every file from its entries and writes each one under an
// output root after a containment check.
package unbundle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"bfiles/internal/atomicio"
	"bfiles/internal/bundle"
	"bfiles/internal/content"
	"bfiles/internal/retry"
	"bfiles/internal/safepath"
)

// Attempts bounds retries of a single file read or write.
const Attempts = 2

// DirSuffix is appended to the bundle stem to name the default output root.
const DirSuffix = "_unbundled"

// Options controls extraction.
type Options struct {
	// Force overwrites files that already exist.
	Force bool
	// DryRun reports what would be written without touching the disk.
	DryRun bool
	// ListOnly prints the bundle contents to Out and writes nothing.
	ListOnly bool
	Logger   *log.Logger
	Out      io.Writer
}

// Result summarizes one extraction.
type Result struct {
	Header     bundle.Header
	OutputRoot string
	Paths      int // unique paths in the bundle
	Written    int
	Existing   int // left alone because they exist and Force is off
	Unsafe     int
	Failed     int
	Duplicates int // restored from their original's content
	Files      []string
}

// DefaultOutputDir is "<stem>_unbundled" next to the bundle, where stem is
// the bundle name without a .bfiles or .txt extension.
func DefaultOutputDir(bundlePath, headerName string) string {
	name := headerName
	if name == "" {
		name = filepath.Base(bundlePath)
	}
	stem := name
	for _, ext := range []string{".bfiles", ".txt"} {
		if s, ok := strings.CutSuffix(name, ext); ok {
			stem = s
			break
		}
	}
	if stem == name {
		stem = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return filepath.Join(filepath.Dir(bundlePath), stem+DirSuffix)
}

type extractor struct {
	opts   Options
	root   string
	logger *log.Logger
	res    Result
	// restored holds rebuilt content by relative path for duplicates.
	restored map[string][]byte
}

// ParseAndExtract parses bundlePath and restores its files under outputRoot,
// or under DefaultOutputDir when outputRoot is empty. A parse failure aborts
// before anything is written. Per-file problems are logged and counted.
func ParseAndExtract(bundlePath, outputRoot string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	data, err := retry.Do(Attempts, func(int) ([]byte, error) {
		return os.ReadFile(bundlePath)
	})
	if err != nil {
		return Result{}, fmt.Errorf("read bundle: %w", err)
	}
	hdr, entries, err := bundle.Parse(data, logger)
	if err != nil {
		return Result{}, err
	}
	if outputRoot == "" {
		outputRoot = DefaultOutputDir(bundlePath, hdr.Name)
	}
	root, err := filepath.Abs(outputRoot)
	if err != nil {
		return Result{}, err
	}

	x := &extractor{
		opts:     opts,
		root:     root,
		logger:   logger,
		res:      Result{Header: hdr, OutputRoot: root},
		restored: map[string][]byte{},
	}
	groups := GroupEntries(entries)
	x.res.Paths = len(groups)
	if opts.ListOnly {
		return x.res, x.list(groups)
	}
	if !opts.DryRun {
		if err := x.prepareRoot(); err != nil {
			return x.res, err
		}
	}
	x.extract(groups)
	return x.res, nil
}

func (x *extractor) prepareRoot() error {
	st, err := os.Stat(x.root)
	switch {
	case err == nil && !st.IsDir():
		return fmt.Errorf("output root %s is not a directory", x.root)
	case errors.Is(err, os.ErrNotExist):
		x.logger.Info("creating output root", "path", x.root)
		return os.MkdirAll(x.root, 0o755)
	}
	return err
}

func (x *extractor) list(groups []Group) error {
	for _, g := range groups {
		e := g.Entries[0]
		chunks := ""
		if e.IsChunk && e.ChunkTotal > 0 {
			chunks = fmt.Sprintf(" (%d chunks)", e.ChunkTotal)
		}
		op := e.Metadata[bundle.KeyOp]
		if op == "" {
			op = "?"
		}
		size := e.Metadata[bundle.KeySize]
		if size == "" {
			size = "N/A"
		}
		if _, err := fmt.Fprintf(x.opts.Out, "  [%s] %s%s (Size: %s)\n", op, g.RelPath, chunks, size); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(x.opts.Out, "\nListed %d unique file paths from bundle.\n", len(groups))
	return err
}

// split separates content-bearing entries from metadata-only ones.
func split(g Group) (bodies Group, meta []bundle.ParsedEntry) {
	bodies.RelPath = g.RelPath
	for _, e := range g.Entries {
		if e.HasContent {
			bodies.Entries = append(bodies.Entries, e)
		} else {
			meta = append(meta, e)
		}
	}
	return bodies, meta
}

func (x *extractor) extract(groups []Group) {
	r := Reassembler{Logger: x.logger}
	var duplicates []bundle.ParsedEntry
	for _, g := range groups {
		bodies, meta := split(g)
		for _, e := range meta {
			switch e.Op {
			case content.OpDuplicate:
				duplicates = append(duplicates, e)
			default:
				x.logger.Debug("entry has no content, not extracted", "path", e.RelPath, "op", e.Op)
			}
		}
		if len(bodies.Entries) == 0 {
			continue
		}
		body, err := r.Content(bodies)
		if err != nil {
			x.res.Failed++
			x.logger.Error("cannot rebuild file", "path", g.RelPath, "err", err)
			continue
		}
		x.restored[g.RelPath] = body
		x.write(g.RelPath, body)
	}
	for _, e := range duplicates {
		orig := e.Metadata[bundle.KeyOriginal]
		body, ok := x.restored[orig]
		if !ok {
			x.logger.Warn("duplicate original not restored, skipping", "path", e.RelPath, "original", orig)
			continue
		}
		if x.write(e.RelPath, body) {
			x.res.Duplicates++
		}
	}
	x.logger.Info("extraction finished", "root", x.root, "written", x.res.Written, "failed", x.res.Failed, "dry_run", x.opts.DryRun)
}

// write places body at rel under the output root and reports whether the
// content is (or in a dry run would be) on disk afterwards.
func (x *extractor) write(rel string, body []byte) bool {
	target, err := safepath.Resolve(x.root, rel)
	if err != nil {
		x.res.Unsafe++
		x.logger.Error("unsafe path rejected", "path", rel, "err", err)
		return false
	}
	_, statErr := os.Lstat(target)
	exists := statErr == nil
	if x.opts.DryRun {
		action := "would create"
		if exists {
			action = "would skip (exists)"
			if x.opts.Force {
				action = "would overwrite"
			}
		}
		x.logger.Info(action, "path", target, "bytes", len(body))
		x.res.Files = append(x.res.Files, rel)
		return true
	}
	if exists && !x.opts.Force {
		x.res.Existing++
		x.logger.Info("file exists, skipping", "path", target)
		return false
	}
	err = retry.Run(Attempts, func(int) error {
		return atomicio.WriteFile(target, body, 0o644)
	})
	if err != nil {
		x.res.Failed++
		x.logger.Error("cannot write file", "path", target, "err", err)
		return false
	}
	x.res.Written++
	x.res.Files = append(x.res.Files, rel)
	x.logger.Debug("restored", "path", rel, "bytes", len(body))
	return true
}
