package testing

import (
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/intern"
	"github.com/ValentinKolb/hashcons/lib/shape"
)

// RunStoreBenchmarks runs all benchmarks for a store backed by the collector the factory creates
func RunStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Hit", func(b *testing.B) {
			benchmarkHit(b, newEnv(b, factory, nil))
		})

		b.Run("Miss", func(b *testing.B) {
			benchmarkMiss(b, newEnv(b, factory, nil))
		})

		b.Run("Contended", func(b *testing.B) {
			benchmarkContended(b, newEnv(b, factory, nil))
		})

		b.Run("Lookup", func(b *testing.B) {
			benchmarkLookup(b, newEnv(b, factory, nil))
		})

		b.Run("Kind", func(b *testing.B) {
			benchmarkKind(b, newEnv(b, factory, nil))
		})

		b.Run("Churn", func(b *testing.B) {
			benchmarkChurn(b, newEnv(b, factory, nil))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

const benchmarkShapes = 1 << 14

// populate interns benchmarkShapes shapes and keeps them alive
func populate(env *Env, tag shape.Tag) []*intern.Object {
	objs := make([]*intern.Object, benchmarkShapes)
	for i := range objs {
		objs[i] = env.Store.Intern(tag, shape.Words(uint64(i), uint64(i)>>3), 0, nil)
		env.Hold(objs[i])
	}
	return objs
}

// Benchmark for Intern of existing shapes
func benchmarkHit(b *testing.B, env *Env) {
	populate(env, 1)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		key := make(shape.Key, 2)
		i := rand.Intn(benchmarkShapes)
		for pb.Next() {
			i = (i + 1) & (benchmarkShapes - 1)
			key[0], key[1] = uint64(i), uint64(i)>>3
			env.Store.Intern(1, key, 0, nil)
		}
	})
}

// Benchmark for Intern of new shapes
func benchmarkMiss(b *testing.B, env *Env) {
	var counter atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		key := make(shape.Key, 1)
		for pb.Next() {
			key[0] = counter.Add(1)
			env.Store.Intern(2, key, 0, nil)
		}
	})
}

// Benchmark for Intern of a single shape from all goroutines
func benchmarkContended(b *testing.B, env *Env) {
	obj := env.Store.Intern(3, shape.Words(1, 2), 0, nil)
	env.Hold(obj)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		key := shape.Words(1, 2)
		for pb.Next() {
			env.Store.Intern(3, key, 0, nil)
		}
	})
}

// Benchmark for Lookup of existing and missing shapes
func benchmarkLookup(b *testing.B, env *Env) {
	populate(env, 4)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		key := make(shape.Key, 2)
		i := rand.Intn(2 * benchmarkShapes)
		for pb.Next() {
			i = (i + 1) & (2*benchmarkShapes - 1)
			key[0], key[1] = uint64(i), uint64(i)>>3
			env.Store.Lookup(4, key)
		}
	})
}

// Benchmark for the typed API
func benchmarkKind(b *testing.B, env *Env) {
	pairs := intern.NewKind(env.Store, 5, false, func(p pair) uint64 {
		return p.a ^ p.b
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := uint64(rand.Intn(benchmarkShapes))
		for pb.Next() {
			i = (i + 1) & (benchmarkShapes - 1)
			pairs.Make(pair{i, i + 1})
		}
	})
}

// Benchmark for interning short-lived shapes while the collector reclaims them
func benchmarkChurn(b *testing.B, env *Env) {
	explicit := gc.Supports(env.Collector, gc.CapExplicitCollect)
	var ops atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		key := make(shape.Key, 1)
		for pb.Next() {
			n := ops.Add(1)
			key[0] = n % (4 * benchmarkShapes)
			env.Store.Intern(6, key, 0, nil)
			if explicit && n%benchmarkShapes == 0 {
				env.Collect()
			}
		}
	})
}
