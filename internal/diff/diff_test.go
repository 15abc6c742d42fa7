package diff

import (
	"strings"
	"testing"
)

func TestUnifiedEqualIsEmpty(t *testing.T) {
	body, oversize := Unified("a", "b", []byte("same\n"), []byte("same\n"), Options{})
	if body != "" || oversize {
		t.Fatalf("equal spans should produce no diff, got %q", body)
	}
}

func TestUnifiedQuotesControlBytes(t *testing.T) {
	body, _ := Unified("prev", "next", []byte("CC\n"), []byte("XX\x1b"), Options{Quote: true})
	for _, want := range []string{"--- prev", "+++ next", `-"CC\n"`, `+"XX\x1b"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("diff missing %q:\n%s", want, body)
		}
	}
}

func TestUnifiedOversize(t *testing.T) {
	body, oversize := Unified("a", "b", []byte("xxxx"), []byte("yyyy"), Options{MaxBytes: 4})
	if !oversize || !strings.Contains(body, "omitted") {
		t.Fatalf("expected placeholder, got %q oversize=%v", body, oversize)
	}
}
