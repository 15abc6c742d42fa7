// Package textutil holds the byte-level text rules of the bundle format:
// newline termination, control-character policy and fallback decoding.
package textutil

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// EnsureTrailingLF appends a single \n if not already present.
func EnsureTrailingLF(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		return b
	}
	out := make([]byte, len(b), len(b)+1)
	copy(out, b)
	return append(out, '\n')
}

var controlNames = [0x20]string{
	"NUL", "SOH", "STX", "ETX", "EOT", "ENQ", "ACK", "BEL",
	"BS", "TAB", "LF", "VT", "FF", "CR", "SO", "SI",
	"DLE", "DC1", "DC2", "DC3", "DC4", "NAK", "SYN", "ETB",
	"CAN", "EM", "SUB", "ESC", "FS", "GS", "RS", "US",
}

// IsDangerous reports whether c is an ASCII control byte other than the
// whitespace controls \t \n \v \f \r.
func IsDangerous(c byte) bool {
	return c < 0x20 && (c < 0x09 || c > 0x0D)
}

// ControlName returns the mnemonic of an ASCII control byte ("ESC", "NUL").
func ControlName(c byte) string {
	if c >= 0x20 {
		return ""
	}
	return controlNames[c]
}

// DangerousOffsets returns the offsets of up to limit dangerous bytes in b.
// A limit of 0 or less returns every offset.
func DangerousOffsets(b []byte, limit int) []int {
	var out []int
	for i, c := range b {
		if !IsDangerous(c) {
			continue
		}
		out = append(out, i)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Sanitize replaces every dangerous byte with "[NAME]" and leaves all other
// bytes untouched. It returns the new content and the number of replacements.
func Sanitize(b []byte) ([]byte, int) {
	n := 0
	var buf bytes.Buffer
	buf.Grow(len(b))
	for _, c := range b {
		if IsDangerous(c) {
			buf.WriteByte('[')
			buf.WriteString(controlNames[c])
			buf.WriteByte(']')
			n++
			continue
		}
		buf.WriteByte(c)
	}
	if n == 0 {
		return b, 0
	}
	return buf.Bytes(), n
}

// DecodeText returns b as UTF-8 text. Input that is not valid UTF-8 is decoded
// as ISO-8859-1, which maps every byte, and fallback is reported as true.
func DecodeText(b []byte) (text []byte, fallback bool, err error) {
	if utf8.Valid(b) {
		return b, false, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return nil, true, err
	}
	return out, true, nil
}

// DecodeLines decodes b one "\n"-terminated line at a time. Lines that are
// valid UTF-8 are kept as they are; the rest are decoded as ISO-8859-1.
// It returns the text and the number of lines that needed the fallback.
func DecodeLines(b []byte) (text []byte, fallbacks int, err error) {
	if utf8.Valid(b) {
		return b, 0, nil
	}
	dec := charmap.ISO8859_1.NewDecoder()
	out := make([]byte, 0, len(b)+len(b)/8)
	for len(b) > 0 {
		line := b
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			line = b[:i+1]
		}
		b = b[len(line):]
		if utf8.Valid(line) {
			out = append(out, line...)
			continue
		}
		conv, err := dec.Bytes(line)
		if err != nil {
			return nil, fallbacks, err
		}
		out = append(out, conv...)
		fallbacks++
	}
	return out, fallbacks, nil
}
