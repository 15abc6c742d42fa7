package bundle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bfiles/internal/content"
)

// Wire markers.
const (
	PreambleLine1   = "Attention: The following text is a 'bfiles' bundle, containing multiple delimited files with metadata."
	PreambleLine2   = "Parse and analyze the content between '<<< BOF <<<' and '>>> EOF >>>' for each '### FILE...' entry."
	StartPrefix     = "--- START OF BFILE "
	EndPrefix       = "--- END OF BFILE "
	MarkerSuffix    = " ---"
	GeneratedPrefix = "bfiles bundle generated on: "
	ConfigPrefix    = "Config: "
	CommentPrefix   = "Comment: "
	HeaderEnd       = "---"
	BOF             = "<<< BOF <<<"
	EOF             = ">>> EOF >>>"
	SummaryStart    = "### BUNDLE SUMMARY ###"
	SummaryEnd      = "### END BUNDLE SUMMARY ###"
)

// Metadata keys.
const (
	KeyChecksum    = "checksum"
	KeyModified    = "modified"
	KeyOp          = "op"
	KeyOriginal    = "original"
	KeyOverlapPrev = "overlap_prev"
	KeySize        = "size"
	KeyTokens      = "tokens"
	KeyType        = "type"
)

// checksumPrefixLen is how many digest characters an entry shows.
const checksumPrefixLen = 12

// KV is one metadata pair.
type KV struct {
	Key   string
	Value string
}

// Metadata maps rec to its metadata pairs, sorted by key. The output depends
// only on rec.
func Metadata(rec content.FileRecord) []KV {
	var kvs []KV
	if rec.Hash != "" {
		sum := rec.Hash
		if len(sum) > checksumPrefixLen {
			sum = sum[:checksumPrefixLen] + "..."
		}
		kvs = append(kvs, KV{KeyChecksum, sum})
	}
	if !rec.ModTime.IsZero() {
		kvs = append(kvs, KV{KeyModified, rec.ModTime.UTC().Truncate(time.Second).Format(time.RFC3339)})
	}
	kvs = append(kvs, KV{KeyOp, rec.Op.Code()})
	if rec.Op == content.OpDuplicate && rec.DuplicateOf != "" {
		kvs = append(kvs, KV{KeyOriginal, rec.DuplicateOf})
	}
	if rec.IsChunk() && rec.ChunkIndex > 1 && rec.OverlapBytesPrev > 0 {
		kvs = append(kvs, KV{KeyOverlapPrev, strconv.Itoa(rec.OverlapBytesPrev)})
	}
	kvs = append(kvs, KV{KeySize, strconv.FormatInt(rec.Size, 10)})
	if rec.Tokenized {
		kvs = append(kvs, KV{KeyTokens, strconv.Itoa(rec.TokenCount)})
	}
	if rec.MIMESubtype != "" {
		kvs = append(kvs, KV{KeyType, rec.MIMESubtype})
	}
	return kvs
}

// FormatMetadata joins pairs as "k=v; k=v".
func FormatMetadata(kvs []KV) string {
	parts := make([]string, len(kvs))
	for i, kv := range kvs {
		parts[i] = kv.Key + "=" + kv.Value
	}
	return strings.Join(parts, "; ")
}

// EntryHeader renders the "### FILE ..." line of rec under number num.
func EntryHeader(num int, rec content.FileRecord) string {
	suffix := ""
	if rec.IsChunk() {
		suffix = fmt.Sprintf(" (Chunk %d/%d)", rec.ChunkIndex, rec.ChunkTotal)
	}
	return fmt.Sprintf("### FILE %d: %s%s | %s ###", num, rec.RelPath, suffix, FormatMetadata(Metadata(rec)))
}
