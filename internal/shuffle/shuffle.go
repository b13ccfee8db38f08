// Package shuffle provides the order-randomizing primitive used wherever
// positions must be unpredictable: answer options and candidate pools.
package shuffle

import (
	"math/rand"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	rng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Slice returns a new slice with the elements of in permuted uniformly at
// random (Fisher-Yates). The input is left unmodified.
func Slice[T any](in []T) []T {
	mu.Lock()
	defer mu.Unlock()
	return SliceWith(rng, in)
}

// SliceWith is Slice with a caller-supplied random source, for
// deterministic tests.
func SliceWith[T any](r *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
