package sortutil

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestStablePathSortDoesNotModifyInput(t *testing.T) {
	in := []string{"b", "a"}
	out := StablePathSort(in)
	if in[0] != "b" || out[0] != "a" {
		t.Fatalf("in=%v out=%v", in, out)
	}
}

func TestRelKey(t *testing.T) {
	root := filepath.FromSlash("/work/proj")
	if got := RelKey(root, filepath.FromSlash("/work/proj/src/a.go")); got != "src/a.go" {
		t.Fatalf("inside root: %q", got)
	}
	if got := RelKey(root, filepath.FromSlash("/other/x.go")); got != "/other/x.go" {
		t.Fatalf("outside root: %q", got)
	}
}

func TestUniqueByRelOrdersAndDedupes(t *testing.T) {
	root := filepath.FromSlash("/r")
	in := []string{
		filepath.FromSlash("/r/b.txt"),
		filepath.FromSlash("/r/a/z.txt"),
		filepath.FromSlash("/r/b.txt"),
		filepath.FromSlash("/r/a.txt"),
	}
	want := []string{
		filepath.FromSlash("/r/a.txt"),
		filepath.FromSlash("/r/a/z.txt"),
		filepath.FromSlash("/r/b.txt"),
	}
	if got := UniqueByRel(root, in); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
