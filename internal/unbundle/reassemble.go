package unbundle

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"bfiles/internal/bundle"
	"bfiles/internal/diff"
)

// maxOverlapDiffBytes bounds the diff logged for a mismatched overlap.
const maxOverlapDiffBytes = 4096

// ReassemblyErrorKind classifies a per-file reconstruction failure.
type ReassemblyErrorKind int

const (
	MixedEntries ReassemblyErrorKind = iota + 1
	MissingChunks
	NoEntries
)

func (k ReassemblyErrorKind) String() string {
	switch k {
	case MixedEntries:
		return "mixed chunk and whole-file entries"
	case MissingChunks:
		return "missing chunks"
	case NoEntries:
		return "no entries"
	}
	return "unknown"
}

// ReassemblyError aborts reconstruction of one path only.
type ReassemblyError struct {
	Path string
	Kind ReassemblyErrorKind
	Msg  string
}

func (e *ReassemblyError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("reassemble %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("reassemble %s: %s: %s", e.Path, e.Kind, e.Msg)
}

// Group is every content-bearing entry of one relative path, in bundle order.
type Group struct {
	RelPath string
	Entries []bundle.ParsedEntry
}

// Size is the declared size of the file, -1 when unknown.
func (g Group) Size() int64 {
	if len(g.Entries) == 0 {
		return -1
	}
	return g.Entries[0].Size()
}

// GroupEntries groups entries by relative path, ordered by first appearance.
func GroupEntries(entries []bundle.ParsedEntry) []Group {
	idx := map[string]int{}
	var out []Group
	for _, e := range entries {
		i, ok := idx[e.RelPath]
		if !ok {
			i = len(out)
			idx[e.RelPath] = i
			out = append(out, Group{RelPath: e.RelPath})
		}
		out[i].Entries = append(out[i].Entries, e)
	}
	return out
}

// Reassembler rebuilds file content from parsed entries.
type Reassembler struct {
	Logger *log.Logger
}

func (r Reassembler) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard)
	}
	return r.Logger
}

// Content returns the original bytes of g. A whole-file entry is returned
// as written; chunks are joined with their declared overlaps removed. The
// newline the writer appends to unterminated content is dropped when the
// result is exactly one byte longer than the declared size.
func (r Reassembler) Content(g Group) ([]byte, error) {
	if len(g.Entries) == 0 {
		return nil, &ReassemblyError{Path: g.RelPath, Kind: NoEntries}
	}
	chunks := 0
	for _, e := range g.Entries {
		if e.IsChunk {
			chunks++
		}
	}
	var body []byte
	switch {
	case chunks == 0:
		if len(g.Entries) > 1 {
			r.logger().Warn("multiple whole-file entries, using the first", "path", g.RelPath, "count", len(g.Entries))
		}
		body = append([]byte(nil), g.Entries[0].Content...)
	case chunks != len(g.Entries):
		return nil, &ReassemblyError{Path: g.RelPath, Kind: MixedEntries,
			Msg: fmt.Sprintf("%d of %d entries are chunks", chunks, len(g.Entries))}
	default:
		var err error
		if body, err = r.join(g); err != nil {
			return nil, err
		}
	}
	if size := g.Size(); size >= 0 && int64(len(body)) == size+1 && bytes.HasSuffix(body, []byte("\n")) {
		body = body[:len(body)-1]
	}
	return body, nil
}

func (r Reassembler) join(g Group) ([]byte, error) {
	entries := append([]bundle.ParsedEntry(nil), g.Entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ChunkIndex < entries[j].ChunkIndex })
	total := entries[0].ChunkTotal
	if len(entries) != total {
		return nil, &ReassemblyError{Path: g.RelPath, Kind: MissingChunks,
			Msg: fmt.Sprintf("expected %d, got %d", total, len(entries))}
	}
	for i, e := range entries {
		if e.ChunkIndex != i+1 || e.ChunkTotal != total {
			return nil, &ReassemblyError{Path: g.RelPath, Kind: MissingChunks,
				Msg: fmt.Sprintf("chunk %d/%d out of sequence", e.ChunkIndex, e.ChunkTotal)}
		}
	}

	acc := append([]byte(nil), entries[0].Content...)
	for _, e := range entries[1:] {
		acc = r.appendChunk(g.RelPath, acc, e)
	}
	r.logger().Debug("reassembled", "path", g.RelPath, "chunks", len(entries), "bytes", len(acc))
	return acc, nil
}

// appendChunk adds e to acc, skipping the first k bytes of e when they repeat
// the tail of acc. The tail is compared as written first, then with the
// synthetic trailing newline removed.
func (r Reassembler) appendChunk(path string, acc []byte, e bundle.ParsedEntry) []byte {
	k := e.OverlapPrev()
	next := e.Content
	if k == 0 {
		return append(acc, next...)
	}
	if tailMatches(acc, next, k) {
		return append(acc, next[k:]...)
	}
	if stripped, ok := bytes.CutSuffix(acc, []byte("\n")); ok && tailMatches(stripped, next, k) {
		return append(stripped, next[k:]...)
	}

	logger := r.logger()
	logger.Warn("chunk overlap mismatch, appending chunk whole", "path", path, "chunk", e.ChunkIndex, "overlap", k)
	if logger.GetLevel() <= log.DebugLevel {
		prev := acc[max(0, len(acc)-k):]
		head := next[:min(k, len(next))]
		if patch, _ := diff.Unified("previous tail", "chunk head", prev, head, diff.Options{MaxBytes: maxOverlapDiffBytes, Quote: true}); patch != "" {
			logger.Debug("overlap diff", "path", path, "chunk", e.ChunkIndex, "diff", patch)
		}
	}
	return append(acc, next...)
}

func tailMatches(acc, next []byte, k int) bool {
	if len(acc) < k || len(next) < k {
		return false
	}
	return bytes.Equal(acc[len(acc)-k:], next[:k])
}
