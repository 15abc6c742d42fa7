// Package hashutil computes content digests for duplicate detection.
package hashutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

var constructors = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"blake2b": func() hash.Hash {
		h, _ := blake2b.New512(nil) // only fails for oversized keys
		return h
	},
	"blake3": func() hash.Hash { return blake3.New() },
}

// Supported reports whether algo names a known algorithm (case-insensitive).
func Supported(algo string) bool {
	_, ok := constructors[strings.ToLower(algo)]
	return ok
}

// Algorithms lists the supported algorithm names in sorted order.
func Algorithms() []string {
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Sum returns the lowercase hex digest of data under algo.
func Sum(data []byte, algo string) (string, error) {
	newHash, ok := constructors[strings.ToLower(algo)]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm %q", algo)
	}
	h := newHash()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
