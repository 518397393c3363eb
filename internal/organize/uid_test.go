package organize

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":       "hello-world",
		"pkg/sub-dir":       "pkg-sub-dir",
		"  trimmed  ":       "trimmed",
		"--weird__chars!!":  "weird-chars",
		"":                  "",
		"日本語 label":         "label",
		"multi   spaces":    "multi-spaces",
		"v2.0 (experiment)": "v2-0-experiment",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateKeepsIdentifiersASCII(t *testing.T) {
	gen := NewUIDGenerator()
	for _, label := range []string{"日本語", "ドキュメント", "résumé", "api"} {
		uid := gen.GenerateForKey("dir:"+label, label)
		for _, r := range uid {
			if r > 127 {
				t.Fatalf("uid for %q contains non-ASCII rune: %q", label, uid)
			}
		}
		if uid == "" {
			t.Fatalf("uid for %q is empty", label)
		}
	}
}

func TestGenerateUniqueForSameLabel(t *testing.T) {
	gen := NewUIDGenerator()
	a := gen.Generate("api")
	b := gen.Generate("api")
	if a == b {
		t.Fatalf("expected distinct uids for repeated label, got %q twice", a)
	}
	if !strings.HasPrefix(a, "api-") || !strings.HasPrefix(b, "api-") {
		t.Fatalf("uids should keep the slug prefix: %q %q", a, b)
	}
}

func TestGenerateForKeyIsStable(t *testing.T) {
	gen := NewUIDGenerator()
	first := gen.GenerateForKey("dir:internal/api", "api")
	second := gen.GenerateForKey("dir:internal/api", "api")
	if first != second {
		t.Fatalf("same key must return the same uid: %q vs %q", first, second)
	}
	other := gen.GenerateForKey("dir:cmd/api", "api")
	if other == first {
		t.Fatalf("different keys must not share a uid")
	}
}

func TestGenerateEmptyLabelFallsBack(t *testing.T) {
	gen := NewUIDGenerator()
	uid := gen.Generate("")
	if !strings.HasPrefix(uid, "cluster-") {
		t.Fatalf("empty label should fall back to cluster slug, got %q", uid)
	}
}

func TestNewUIDGeneratorReservesExisting(t *testing.T) {
	gen := NewUIDGenerator("api-12345678")
	uid := gen.Generate("api")
	if uid == "api-12345678" {
		// Only a problem if the hash happens to collide with the reserved uid;
		// the generator must then append a counter.
		t.Fatalf("reserved uid reused: %q", uid)
	}
}
