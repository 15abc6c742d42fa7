package textutil

import (
	"bytes"
	"testing"
)

func TestEnsureTrailingLF(t *testing.T) {
	cases := map[string]string{
		"":      "\n",
		"a":     "a\n",
		"a\n":   "a\n",
		"a\n\n": "a\n\n",
		"a\r\n": "a\r\n",
	}
	for in, want := range cases {
		if got := string(EnsureTrailingLF([]byte(in))); got != want {
			t.Fatalf("EnsureTrailingLF(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureTrailingLFDoesNotAlias(t *testing.T) {
	src := make([]byte, 1, 8)
	src[0] = 'a'
	out := EnsureTrailingLF(src)
	out[0] = 'b'
	if src[0] != 'a' {
		t.Fatalf("input was modified")
	}
}

func TestSanitizeReplacesOnlyDangerousBytes(t *testing.T) {
	in := []byte("a\x00b\x1b[31m\tc\r\n\x0b\x0c\x7f")
	got, n := Sanitize(in)
	want := "a[NUL]b[ESC][31m\tc\r\n\x0b\x0c\x7f"
	if string(got) != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
	if n != 2 {
		t.Fatalf("replacements = %d, want 2", n)
	}
}

func TestSanitizeCleanInputIsUnchanged(t *testing.T) {
	in := []byte("plain\ttext\n")
	got, n := Sanitize(in)
	if n != 0 || !bytes.Equal(got, in) {
		t.Fatalf("unexpected change: %q (%d)", got, n)
	}
}

func TestDangerousOffsets(t *testing.T) {
	in := []byte("\x01\x02ok\x03")
	if got := DangerousOffsets(in, 0); len(got) != 3 || got[2] != 4 {
		t.Fatalf("offsets = %v", got)
	}
	if got := DangerousOffsets(in, 2); len(got) != 2 {
		t.Fatalf("limited offsets = %v", got)
	}
	if got := DangerousOffsets([]byte("tab\there\n\r\f\v"), 0); len(got) != 0 {
		t.Fatalf("whitespace flagged as dangerous: %v", got)
	}
	if ControlName(0x1b) != "ESC" {
		t.Fatalf("ControlName(0x1b) = %q", ControlName(0x1b))
	}
}

func TestDecodeTextFallsBackToLatin1(t *testing.T) {
	text, fallback, err := DecodeText([]byte("caf\xe9"))
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	if !fallback || string(text) != "café" {
		t.Fatalf("got %q fallback=%v", text, fallback)
	}
	text, fallback, _ = DecodeText([]byte("café"))
	if fallback || string(text) != "café" {
		t.Fatalf("valid utf-8 changed: %q fallback=%v", text, fallback)
	}
}

func TestDecodeLinesKeepsValidLines(t *testing.T) {
	in := []byte("café\ncaf\xe9\ncrème")
	text, n, err := DecodeLines(in)
	if err != nil {
		t.Fatalf("DecodeLines: %v", err)
	}
	if want := "café\ncafé\ncrème"; string(text) != want {
		t.Fatalf("got %q, want %q", text, want)
	}
	if n != 1 {
		t.Fatalf("fallback lines = %d, want 1", n)
	}
	text, n, _ = DecodeLines([]byte("plain\n"))
	if n != 0 || string(text) != "plain\n" {
		t.Fatalf("valid input changed: %q (%d)", text, n)
	}
}
