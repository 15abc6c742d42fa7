// Package chunk splits token sequences into overlapping windows for files
// that exceed the configured token budget.
package chunk

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNoChunks is returned when splitting yields nothing to write.
var ErrNoChunks = errors.New("no chunks produced")

// ErrInvalidWindow rejects size/overlap pairs that cannot advance.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Window is one slice of a token sequence.
type Window struct {
	Index  int // 1-based
	Total  int
	Tokens []int
	// OverlapBytesPrev is the UTF-8 byte length of this window's leading
	// overlap tokens, which repeat the tail of the previous window. It is
	// zero for the first window.
	OverlapBytesPrev int
}

// Decoder turns tokens back into text.
type Decoder interface {
	Decode(tokens []int) (string, error)
}

// ShouldChunk reports whether a file of tokenCount tokens exceeds limit.
// A limit of 0 disables chunking.
func ShouldChunk(tokenCount, limit int) bool {
	return limit > 0 && tokenCount > limit
}

// Split cuts tokens into windows of at most size tokens. Each window after
// the first starts overlap tokens before the end of the previous one.
//
// Window edges only fall where the decoded text is on a UTF-8 rune
// boundary, so every window decodes to valid text. An edge that would split
// a rune moves to the nearest boundary, which can change a window's length
// or its overlap. When overlap is positive every later window still repeats
// at least one whole rune of its predecessor, even if that stretches a
// window past size.
func Split(tokens []int, size, overlap int, dec Decoder) ([]Window, error) {
	if size < 1 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size %d overlap %d", ErrInvalidWindow, size, overlap)
	}
	if len(tokens) == 0 {
		return nil, ErrNoChunks
	}
	offs, text, err := tokenOffsets(tokens, dec)
	if err != nil {
		return nil, err
	}
	n := len(tokens)
	clean := func(k int) bool {
		return k == 0 || k == n || offs[k] >= len(text) || utf8.RuneStart(text[offs[k]])
	}
	forward := func(k int) int {
		for !clean(k) {
			k++
		}
		return k
	}

	var out []Window
	for pos, prevEnd := 0, 0; ; {
		end := min(pos+size, n)
		for end > pos && !clean(end) {
			end--
		}
		if end == pos {
			end = forward(pos + size)
		}
		next := end
		if end < n && overlap > 0 {
			var ok bool
			if next, ok = overlapStart(pos, end, end-overlap, clean); !ok {
				next, end = end, forward(end+1)
			}
		}
		w := Window{Index: len(out) + 1, Tokens: tokens[pos:end]}
		if len(out) > 0 {
			w.OverlapBytesPrev = offs[prevEnd] - offs[pos]
		}
		out = append(out, w)
		if end == n {
			break
		}
		pos, prevEnd = next, end
	}
	for i := range out {
		out[i].Total = len(out)
	}
	return out, nil
}

// overlapStart picks a rune boundary strictly inside (pos, end) for the next
// window to start at, as close to want as possible and preferring a longer
// overlap.
func overlapStart(pos, end, want int, clean func(int) bool) (int, bool) {
	want = min(max(want, pos+1), end-1)
	for k := want; k > pos; k-- {
		if clean(k) {
			return k, true
		}
	}
	for k := want + 1; k < end; k++ {
		if clean(k) {
			return k, true
		}
	}
	return 0, false
}

// tokenOffsets decodes tokens one at a time. offs[k] is the byte offset in
// text where token k starts; offs[len(tokens)] is len(text).
func tokenOffsets(tokens []int, dec Decoder) ([]int, []byte, error) {
	offs := make([]int, len(tokens)+1)
	var text []byte
	for i, tk := range tokens {
		s, err := dec.Decode(tokens[i : i+1])
		if err != nil {
			return nil, nil, fmt.Errorf("decode token %d: %w", tk, err)
		}
		offs[i] = len(text)
		text = append(text, s...)
	}
	offs[len(tokens)] = len(text)
	return offs, text, nil
}

// Text decodes a window's tokens.
func (w Window) Text(dec Decoder) (string, error) {
	return dec.Decode(w.Tokens)
}
