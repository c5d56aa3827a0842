package idgen

import (
	"strings"
	"testing"
)

func TestGenerator_UniqueAndPrefixed(t *testing.T) {
	g, err := New(1, "RUN")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := g.Next()
		if !strings.HasPrefix(id, "RUN-") {
			t.Fatalf("id %q missing prefix", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNew_InvalidNode(t *testing.T) {
	if _, err := New(4096, ""); err == nil {
		t.Fatal("expected error for node id out of range")
	}
}
