package walkwalk

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"bfiles/internal/exclude"
	"bfiles/internal/sortutil"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func rels(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = sortutil.RelKey(root, p)
	}
	return out
}

func collect(t *testing.T, root string, opts Options, ex exclude.Options) ([]string, *exclude.Classifier) {
	t.Helper()
	ex.Root = root
	c := exclude.New(ex)
	opts.Classifier = c
	res, err := Collect(opts)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return res, c
}

func TestCollectOrdersAndPrunes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.txt":                 "b",
		"a/z.txt":               "z",
		"a.txt":                 "a",
		"node_modules/pkg/x.js": "x",
		".hidden":               "h",
	})
	res, c := collect(t, root, Options{}, exclude.Options{Excludes: []string{".*", "node_modules"}})
	want := []string{"a.txt", "a/z.txt", "b.txt"}
	if got := rels(c.Root(), res); !reflect.DeepEqual(got, want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	n := c.Counts()
	if n.ConfigDirs != 1 || n.ConfigFiles != 1 {
		t.Fatalf("counts = %+v (excluded dir must not be entered)", n)
	}
}

func TestCollectSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"real.txt": "r", "dir/in.txt": "i"})
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken")); err != nil {
		t.Fatal(err)
	}

	res, c := collect(t, root, Options{}, exclude.Options{})
	if got := rels(c.Root(), res); !reflect.DeepEqual(got, []string{"dir/in.txt", "real.txt"}) {
		t.Fatalf("no-follow candidates = %v", got)
	}
	if c.Counts().Errors != 0 {
		t.Fatalf("broken link counted without following: %+v", c.Counts())
	}

	res, c = collect(t, root, Options{FollowSymlinks: true}, exclude.Options{})
	if got := rels(c.Root(), res); !reflect.DeepEqual(got, []string{"dir/in.txt", "real.txt"}) {
		t.Fatalf("follow candidates = %v (link should resolve to real.txt)", got)
	}
	if c.Counts().Errors != 1 {
		t.Fatalf("broken link should be one error: %+v", c.Counts())
	}
}

func TestCollectRejectsFileRoot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"f.txt": "f"})
	c := exclude.New(exclude.Options{Root: root})
	if _, err := Collect(Options{Root: filepath.Join(root, "f.txt"), Classifier: c}); err == nil {
		t.Fatalf("expected error for file root")
	}
}
