// Package walkwalk provides the deterministic, filterable filesystem walker
// that gathers bundle candidates.
package walkwalk

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"bfiles/internal/exclude"
	"bfiles/internal/retry"
	"bfiles/internal/sortutil"
)

// DefaultAttempts bounds retries of a single directory read.
const DefaultAttempts = 3

// Options configures Collect.
type Options struct {
	Root           string
	FollowSymlinks bool
	Classifier     *exclude.Classifier
	Logger         *log.Logger
	Attempts       int
}

type walkState struct {
	opts    Options
	root    string
	files   []string
	visited map[string]struct{}
	logger  *log.Logger
}

// Collect walks opts.Root top-down and returns absolute resolved candidate
// paths, unique and ordered by their slash path relative to the root.
// Excluded directories are never entered. Per-entry failures are recorded on
// the classifier as errors and do not stop the walk.
func Collect(opts Options) ([]string, error) {
	if opts.Classifier == nil {
		return nil, errors.New("walkwalk: classifier is required")
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	root := opts.Classifier.Root()
	if opts.Root != "" {
		abs, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, err
		}
		if r, err := filepath.EvalSymlinks(abs); err == nil {
			abs = r
		}
		root = abs
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, &fs.PathError{Op: "collect", Path: root, Err: errors.New("not a directory")}
	}

	ws := &walkState{
		opts:    opts,
		root:    root,
		visited: map[string]struct{}{root: {}},
		logger:  logger,
	}
	ws.walkDir(root)

	files := sortutil.UniqueByRel(root, ws.files)
	logger.Debug("collected", "candidates", len(files))
	return files, nil
}

func (ws *walkState) walkDir(dir string) {
	entries, err := retry.Do(ws.opts.Attempts, func(int) ([]os.DirEntry, error) {
		return os.ReadDir(dir)
	})
	if err != nil {
		ws.logger.Warn("cannot read directory", "dir", dir, "err", err)
		ws.opts.Classifier.Record(dir, exclude.ReasonError)
		return
	}
	for _, d := range entries {
		ws.visit(filepath.Join(dir, d.Name()), d)
	}
}

func (ws *walkState) visit(path string, d fs.DirEntry) {
	switch {
	case isSymlink(d):
		ws.handleLink(path)
	case d.IsDir():
		ws.handleDir(path)
	case d.Type().IsRegular():
		ws.handleFile(path)
	}
}

func (ws *walkState) handleDir(path string) {
	dec := ws.opts.Classifier.Classify(path)
	if dec.Excluded() {
		return
	}
	if _, seen := ws.visited[dec.Path]; seen {
		return
	}
	ws.visited[dec.Path] = struct{}{}
	ws.walkDir(path)
}

func (ws *walkState) handleFile(path string) {
	dec := ws.opts.Classifier.Classify(path)
	if dec.Excluded() {
		return
	}
	ws.files = append(ws.files, dec.Path)
}

// handleLink skips links unless following is enabled. Followed links to
// directories are walked like directories; links to anything but a regular
// file or directory are ignored.
func (ws *walkState) handleLink(path string) {
	if !ws.opts.FollowSymlinks {
		ws.logger.Debug("skipping symlink", "path", path)
		return
	}
	target, err := retry.Do(ws.opts.Attempts, func(int) (string, error) {
		return filepath.EvalSymlinks(path)
	})
	if err != nil {
		ws.logger.Warn("cannot resolve symlink", "path", path, "err", err)
		ws.opts.Classifier.Record(path, exclude.ReasonError)
		return
	}
	st, err := os.Stat(target)
	if err != nil {
		ws.logger.Warn("cannot stat symlink target", "path", path, "err", err)
		ws.opts.Classifier.Record(path, exclude.ReasonError)
		return
	}
	switch {
	case st.IsDir():
		ws.handleDir(path)
	case st.Mode().IsRegular():
		ws.handleFile(path)
	}
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}
