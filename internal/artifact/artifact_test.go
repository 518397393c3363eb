package artifact

import (
	"context"
	"errors"
	"testing"
)

func testStoreRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.Put(ctx, "r1", "scan.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "r1", "scan.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("unexpected content: %s", got)
	}

	if _, err := s.Get(ctx, "r1", "missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Put(ctx, "r1", "render.json", []byte("{}")); err != nil {
		t.Fatalf("put: %v", err)
	}
	names, err := s.List(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "render.json" || names[1] != "scan.json" {
		t.Fatalf("unexpected listing: %v", names)
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	testStoreRoundTrip(t, s)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	testStoreRoundTrip(t, NewMemoryStore())
}

func TestDiskStoreRejectsPathSeparators(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Put(context.Background(), "r1", "../escape.json", nil); err == nil {
		t.Fatalf("expected rejection of separator in name")
	}
	if err := s.Put(context.Background(), "../r1", "a.json", nil); err == nil {
		t.Fatalf("expected rejection of separator in run_id")
	}
}

func TestDiskStoreListMissingRun(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	names, err := s.List(context.Background(), "nope")
	if err != nil || names != nil {
		t.Fatalf("missing run must list empty, got %v %v", names, err)
	}
}

func TestNewS3StoreRejectsIncompleteConfig(t *testing.T) {
	cases := []S3Config{
		{},
		{Endpoint: "minio:9000", AccessKey: "a"},
		{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s"},
	}
	for _, cfg := range cases {
		if _, err := NewS3Store(cfg); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}

func TestObjectKeyNormalization(t *testing.T) {
	if got := objectKey(" r1 ", " /a.json "); got != "r1/a.json" {
		t.Fatalf("unexpected key %q", got)
	}
}
