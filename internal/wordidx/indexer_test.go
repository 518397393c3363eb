package wordidx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"archmap/internal/safeio"
)

func TestBuildCollectsIdentLikeWords(t *testing.T) {
	src := []byte("foo bar_1 3baz\n\"quoted\" _lead")
	idx := Build(src)

	got := map[string]bool{}
	for _, w := range idx.Words {
		got[w.Text] = true
	}
	for _, want := range []string{"foo", "bar_1", "baz", "quoted", "_lead"} {
		if !got[want] {
			t.Fatalf("missing word %q in %v", want, idx.Words)
		}
	}
	// "3baz" starts with a digit; only the trailing ident survives.
	if got["3baz"] {
		t.Fatalf("numeric-led token should not be indexed")
	}
}

func TestBuildLineNumbers(t *testing.T) {
	idx := Build([]byte("one\ntwo three\n\nfour"))
	if lines := idx.Find("four"); len(lines) != 1 || lines[0] != 4 {
		t.Fatalf("expected four at line 4, got %v", lines)
	}
	if lines := idx.Find("three"); len(lines) != 1 || lines[0] != 2 {
		t.Fatalf("expected three at line 2, got %v", lines)
	}
	if lines := idx.Find("absent"); lines != nil {
		t.Fatalf("expected no match, got %v", lines)
	}
}

func TestAggIndexOverScan(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.go":     "package a\nimport handler\n",
		"b/b.go":   "package b\nfunc handler() {}\n",
		"skip.txt": "handler handler",
	}
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := safeio.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	agg := New().Root(dir).Allow("go").Workers(2).FS(fs).Start(ctx)
	if err := agg.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	if n := len(agg.Files(ctx)); n != 2 {
		t.Fatalf("expected 2 indexed files, got %d", n)
	}
	refs := agg.Find(ctx, "handler")
	if len(refs) != 2 {
		t.Fatalf("expected handler in both .go files, got %v", refs)
	}
}

func TestBuilderWithoutRootsFails(t *testing.T) {
	ctx := context.Background()
	agg := New().Start(ctx)
	if err := agg.Wait(ctx); err == nil {
		t.Fatalf("expected error when no roots configured")
	}
}
