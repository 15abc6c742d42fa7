package unbundle

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"bfiles/internal/bundle"
	"bfiles/internal/chunk"
	"bfiles/internal/config"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"a.txt":          "hello\n",
		"copy/a.txt":     "hello\n",
		"no_newline.txt": "tail without newline",
		"empty.txt":      "",
		"nested/deep.md": "# title\n\nbody\n",
		"big.txt":        strings.Repeat("0123456789", 7) + "xyz",
	}
	for rel, body := range files {
		writeFile(t, filepath.Join(src, filepath.FromSlash(rel)), body)
	}
	cfg := config.Default()
	cfg.RootDir = src
	cfg.OutputFile = filepath.Join(t.TempDir(), "round.txt")
	cfg.UseGitignore = false
	cfg.ChunkSize = 16
	cfg.ChunkOverlap = 4
	b, err := bundle.New(cfg, bundle.Options{Tokenizer: chunk.ByteTokenizer{}})
	if err != nil {
		t.Fatalf("bundle.New: %v", err)
	}
	stats, err := b.Run()
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if stats.ChunkedFiles != 1 || stats.Duplicates != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	dst := filepath.Join(t.TempDir(), "restored")
	res, err := ParseAndExtract(b.Config().OutputFile, dst, Options{})
	if err != nil {
		t.Fatalf("ParseAndExtract: %v", err)
	}
	if res.Failed != 0 || res.Unsafe != 0 || res.Duplicates != 1 {
		t.Fatalf("result = %+v", res)
	}
	for rel, want := range files {
		if got := readFile(t, filepath.Join(dst, filepath.FromSlash(rel))); got != want {
			t.Fatalf("%s: got %q want %q", rel, got, want)
		}
	}
}

func TestRoundTripMultibyte(t *testing.T) {
	cases := []struct {
		name    string
		tok     string
		size    int
		overlap int
		body    string
	}{
		{"bytes", chunk.ByteEncoding, 8, 2, "aé b é c é d é e é f é\n"},
		{"cl100k_base", chunk.DefaultEncoding, 5, 1, strings.Repeat("你好世界，测试🙂🚀 ", 5) + "\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := chunk.New(tc.tok)
			if err != nil {
				t.Skipf("tokenizer unavailable: %v", err)
			}
			src := t.TempDir()
			files := map[string]string{
				"split.txt": tc.body,
				"other.txt": "café\n",
			}
			for rel, body := range files {
				writeFile(t, filepath.Join(src, rel), body)
			}
			cfg := config.Default()
			cfg.RootDir = src
			cfg.OutputFile = filepath.Join(t.TempDir(), "mb.txt")
			cfg.UseGitignore = false
			cfg.Tokenizer = tc.tok
			cfg.ChunkSize = tc.size
			cfg.ChunkOverlap = tc.overlap
			b, err := bundle.New(cfg, bundle.Options{Tokenizer: tok})
			if err != nil {
				t.Fatalf("bundle.New: %v", err)
			}
			stats, err := b.Run()
			if err != nil {
				t.Fatalf("bundle: %v", err)
			}
			if stats.ChunkedFiles != 1 || stats.Chunks < 2 {
				t.Fatalf("stats = %+v", stats)
			}
			raw, err := os.ReadFile(b.Config().OutputFile)
			if err != nil {
				t.Fatalf("read bundle: %v", err)
			}
			if !utf8.Valid(raw) {
				t.Fatalf("bundle is not valid UTF-8")
			}

			dst := filepath.Join(t.TempDir(), "restored")
			res, err := ParseAndExtract(b.Config().OutputFile, dst, Options{})
			if err != nil {
				t.Fatalf("ParseAndExtract: %v", err)
			}
			if res.Failed != 0 {
				t.Fatalf("result = %+v", res)
			}
			for rel, want := range files {
				if got := readFile(t, filepath.Join(dst, rel)); got != want {
					t.Fatalf("%s: got %q want %q", rel, got, want)
				}
			}
		})
	}
}

func writeBundle(t *testing.T, name string, entries string) string {
	t.Helper()
	body := "--- START OF BFILE " + name + " ---\n---\n\n" + entries
	p := filepath.Join(t.TempDir(), name)
	writeFile(t, p, body)
	return p
}

func TestExtractRejectsEscapingPaths(t *testing.T) {
	p := writeBundle(t, "evil.txt",
		"### FILE 1: ../outside.txt | op=+; size=2 ###\n<<< BOF <<<\nx\n>>> EOF >>>\n\n"+
			"### FILE 2: /etc/abs.txt | op=+; size=2 ###\n<<< BOF <<<\ny\n>>> EOF >>>\n\n"+
			"### FILE 3: ok/inside.txt | op=+; size=2 ###\n<<< BOF <<<\nz\n>>> EOF >>>\n\n")
	dst := filepath.Join(t.TempDir(), "out")
	res, err := ParseAndExtract(p, dst, Options{})
	if err != nil {
		t.Fatalf("ParseAndExtract: %v", err)
	}
	if res.Unsafe != 2 || res.Written != 1 {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "outside.txt")); err == nil {
		t.Fatalf("escaping entry was written")
	}
	if got := readFile(t, filepath.Join(dst, "ok", "inside.txt")); got != "z\n" {
		t.Fatalf("inside.txt = %q", got)
	}
}

func TestExtractMissingChunksSkipsOnlyThatFile(t *testing.T) {
	p := writeBundle(t, "partial.txt",
		"### FILE 1: big.txt (Chunk 1/3) | op=+; size=9 ###\n<<< BOF <<<\nabc\n>>> EOF >>>\n\n"+
			"### FILE 1: big.txt (Chunk 3/3) | op=+; size=9 ###\n<<< BOF <<<\nghi\n>>> EOF >>>\n\n"+
			"### FILE 2: fine.txt | op=+; size=5 ###\n<<< BOF <<<\nfine\n>>> EOF >>>\n\n")
	dst := t.TempDir()
	res, err := ParseAndExtract(p, dst, Options{})
	if err != nil {
		t.Fatalf("ParseAndExtract: %v", err)
	}
	if res.Failed != 1 || res.Written != 1 {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dst, "big.txt")); err == nil {
		t.Fatalf("incomplete file was written")
	}
}

func TestExtractParseFailureWritesNothing(t *testing.T) {
	p := writeBundle(t, "broken.txt",
		"### FILE 1: a.txt | op=+; size=2 ###\n<<< BOF <<<\na\n>>> EOF >>>\n\n"+
			"### FILE 2: b.txt | op=+; size=2 ###\nb\n")
	dst := filepath.Join(t.TempDir(), "out")
	if _, err := ParseAndExtract(p, dst, Options{}); err == nil {
		t.Fatalf("expected parse failure")
	}
	if _, err := os.Stat(dst); err == nil {
		t.Fatalf("output root should not exist after a failed parse")
	}
}

func TestExtractExistingAndForce(t *testing.T) {
	p := writeBundle(t, "b.txt", "### FILE 1: a.txt | op=+; size=4 ###\n<<< BOF <<<\nnew\n>>> EOF >>>\n\n")
	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "a.txt"), "old\n")

	res, err := ParseAndExtract(p, dst, Options{})
	if err != nil {
		t.Fatalf("ParseAndExtract: %v", err)
	}
	if res.Existing != 1 || readFile(t, filepath.Join(dst, "a.txt")) != "old\n" {
		t.Fatalf("existing file should be kept: %+v", res)
	}
	if _, err := ParseAndExtract(p, dst, Options{Force: true}); err != nil {
		t.Fatalf("ParseAndExtract force: %v", err)
	}
	if got := readFile(t, filepath.Join(dst, "a.txt")); got != "new\n" {
		t.Fatalf("forced overwrite got %q", got)
	}
}

func TestExtractDryRunAndList(t *testing.T) {
	p := writeBundle(t, "demo.txt",
		"### FILE 1: big.txt (Chunk 1/2) | op=+; size=6 ###\n<<< BOF <<<\nabcd\n>>> EOF >>>\n\n"+
			"### FILE 1: big.txt (Chunk 2/2) | op=+; overlap_prev=2; size=6 ###\n<<< BOF <<<\ncdef\n>>> EOF >>>\n\n"+
			"### FILE 0: dup.txt | op=d; original=big.txt; size=6 ###\n\n")
	dst := filepath.Join(t.TempDir(), "never")
	res, err := ParseAndExtract(p, dst, Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("dry run files = %v", res.Files)
	}
	if _, err := os.Stat(dst); err == nil {
		t.Fatalf("dry run created the output root")
	}

	var out bytes.Buffer
	res, err = ParseAndExtract(p, dst, Options{ListOnly: true, Out: &out})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "  [+] big.txt (2 chunks) (Size: 6)\n  [d] dup.txt (Size: 6)\n\nListed 2 unique file paths from bundle.\n"
	if out.String() != want || res.Paths != 2 {
		t.Fatalf("list output:\n%s", out.String())
	}
}

func TestDefaultOutputDir(t *testing.T) {
	cases := map[string]string{
		"out.txt":    "out_unbundled",
		"x.bfiles":   "x_unbundled",
		"plain":      "plain_unbundled",
		"arch.bf.md": "arch.bf_unbundled",
	}
	for name, want := range cases {
		got := DefaultOutputDir(filepath.Join("/data", "bundle.txt"), name)
		if got != filepath.Join("/data", want) {
			t.Fatalf("%s: got %s", name, got)
		}
	}
	if got := DefaultOutputDir(filepath.Join("/data", "b.txt"), ""); got != filepath.Join("/data", "b_unbundled") {
		t.Fatalf("fallback got %s", got)
	}
}
