package idgen

import (
	"regexp"
	"testing"
)

func TestGenerate(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(Prefix) + `[a-zA-Z0-9]{10}$`)
	for range 100 {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Generate() = %q, want match for %q", id, pattern)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := range count {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
