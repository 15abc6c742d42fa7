package safepath

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveAcceptsNestedRelativePaths(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "src/./pkg/a.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(root, "src", "pkg", "a.go")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if _, err := Resolve(root, "a/../b.txt"); err != nil {
		t.Fatalf("inner .. should be allowed: %v", err)
	}
}

func TestResolveRejects(t *testing.T) {
	root := t.TempDir()
	cases := []struct {
		rel  string
		want error
	}{
		{"", ErrEmpty},
		{".", ErrEmpty},
		{"/etc/passwd", ErrAbsolute},
		{"C:/Windows/x", ErrAbsolute},
		{"../outside.txt", ErrEscapes},
		{"a/../../outside.txt", ErrEscapes},
		{"..", ErrEscapes},
		{`..\evil.txt`, ErrEscapes},
	}
	for _, tc := range cases {
		_, err := Resolve(root, tc.rel)
		if !errors.Is(err, tc.want) {
			t.Errorf("Resolve(%q) = %v, want %v", tc.rel, err, tc.want)
		}
		if Contained(root, tc.rel) {
			t.Errorf("Contained(%q) = true", tc.rel)
		}
	}
}

func TestResolveRejectsSymlinkedParentLeavingRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := Resolve(root, "link/x.txt"); !errors.Is(err, ErrEscapes) {
		t.Fatalf("expected escape rejection, got %v", err)
	}
}
