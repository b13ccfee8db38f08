package shuffle

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestSliceLeavesInputUnmodified(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	for range 50 {
		out := Slice(in)
		if len(out) != 4 {
			t.Fatalf("expected 4 elements, got %d", len(out))
		}
		for i, v := range []string{"a", "b", "c", "d"} {
			if in[i] != v {
				t.Fatalf("input mutated: %v", in)
			}
		}
	}
}

func TestSlicePreservesElements(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7}
	out := Slice(in)
	seen := make(map[int]bool, len(out))
	for _, v := range out {
		seen[v] = true
	}
	for _, v := range in {
		if !seen[v] {
			t.Fatalf("element %d missing from %v", v, out)
		}
	}
}

func TestSliceUniformity(t *testing.T) {
	// All 6 permutations of a 3-element slice should appear with roughly
	// equal frequency. With 60000 trials the expected count per permutation
	// is 10000; a 10% band is far beyond any plausible random wobble.
	r := rand.New(rand.NewSource(1))
	const trials = 60000
	counts := make(map[string]int, 6)
	for range trials {
		out := SliceWith(r, []string{"a", "b", "c"})
		counts[fmt.Sprint(out)]++
	}
	if len(counts) != 6 {
		t.Fatalf("expected 6 permutations, saw %d: %v", len(counts), counts)
	}
	for perm, n := range counts {
		if n < 9000 || n > 11000 {
			t.Fatalf("permutation %s appeared %d times, want ~10000", perm, n)
		}
	}
}
