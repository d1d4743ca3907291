package linkcache

import (
	"path/filepath"
	"testing"
)

func TestStoreAndLookupRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.sqlite")
	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	digest, err := Digest([]byte(".function: main\nend\n.end\n"))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	if _, ok, err := c.Lookup(digest); err != nil {
		t.Fatalf("lookup: %v", err)
	} else if ok {
		t.Fatal("expected a cache miss before any Store")
	}

	want := []byte{1, 2, 3, 4}
	if err := c.Store(digest, want); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok, err := c.Lookup(digest)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit after Store")
	}
	if string(got) != string(want) {
		t.Errorf("Lookup = %v, want %v", got, want)
	}
}

func TestLookupMissesAcrossIncompatibleVersions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.sqlite")
	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	digest, _ := Digest([]byte("source"))
	saved := EngineVersion
	EngineVersion = "v0.1.0"
	defer func() { EngineVersion = saved }()

	if err := c.Store(digest, []byte{9}); err != nil {
		t.Fatalf("store: %v", err)
	}

	EngineVersion = "v0.2.0"
	if _, ok, err := c.Lookup(digest); err != nil {
		t.Fatalf("lookup: %v", err)
	} else if ok {
		t.Error("expected a cache miss across a minor version bump")
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	a, err := Digest([]byte("same source"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Digest([]byte("same source"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("Digest is not deterministic: %q vs %q", a, b)
	}
	c, err := Digest([]byte("different source"))
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("Digest collided for different source text")
	}
}
