// Package content turns candidate paths into FileRecords: it stats, reads,
// hashes and token-counts each file and settles its bundle operation.
package content

import (
	"path/filepath"
	"time"
)

// Operation is the terminal state of a file in a bundle.
type Operation int

const (
	OpIncluded Operation = iota + 1
	OpEmpty
	OpDuplicate
	OpExcluded
	OpSkipped
	OpError
)

var opCodes = map[Operation]string{
	OpIncluded:  "+",
	OpEmpty:     "0",
	OpDuplicate: "d",
	OpExcluded:  "x",
	OpSkipped:   "-",
	OpError:     "!",
}

var opNames = map[Operation]string{
	OpIncluded:  "included",
	OpEmpty:     "empty",
	OpDuplicate: "duplicate",
	OpExcluded:  "excluded",
	OpSkipped:   "skipped",
	OpError:     "error",
}

// Code is the single-character wire code of op.
func (op Operation) Code() string { return opCodes[op] }

func (op Operation) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "unknown"
}

// HasBody reports whether entries with this operation carry a content block.
func (op Operation) HasBody() bool { return op == OpIncluded || op == OpEmpty }

// ParseOperation maps a wire code back to its Operation.
func ParseOperation(code string) (Operation, bool) {
	for op, c := range opCodes {
		if c == code {
			return op, true
		}
	}
	return 0, false
}

// FileRecord describes one file, or one chunk of a file, as it will appear
// in the bundle. Records are values; transitions return modified copies.
type FileRecord struct {
	Path        string // absolute resolved path
	RelPath     string // slash path relative to the scan root
	Size        int64
	ModTime     time.Time
	MIMESubtype string
	Hash        string
	Op          Operation

	TokenCount int
	Tokenized  bool // TokenCount is meaningful

	ChunkIndex       int // 1-based, 0 when not chunked
	ChunkTotal       int
	OverlapBytesPrev int

	DuplicateOf      string // RelPath of the first file with the same hash
	EncodingFallback bool   // content was decoded as ISO-8859-1
	Err              error  // cause of OpError
}

// WithOp returns a copy in state op.
func (r FileRecord) WithOp(op Operation) FileRecord {
	r.Op = op
	return r
}

// WithError returns a copy in the error state.
func (r FileRecord) WithError(err error) FileRecord {
	r.Op = OpError
	r.Err = err
	return r
}

// WithTokens returns a copy carrying a token count.
func (r FileRecord) WithTokens(n int) FileRecord {
	r.TokenCount = n
	r.Tokenized = true
	return r
}

// AsChunk returns the record of chunk index of total.
func (r FileRecord) AsChunk(index, total, tokens, overlapBytes int) FileRecord {
	r.ChunkIndex = index
	r.ChunkTotal = total
	r.OverlapBytesPrev = overlapBytes
	return r.WithTokens(tokens)
}

// IsChunk reports whether this record is one window of a chunked file.
func (r FileRecord) IsChunk() bool { return r.ChunkTotal > 0 }

// Name is the base name of the file.
func (r FileRecord) Name() string { return filepath.Base(r.Path) }
