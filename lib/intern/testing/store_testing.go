package testing

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/intern"
	"github.com/ValentinKolb/hashcons/lib/shape"
)

// RunStoreTests runs a comprehensive test suite for a store backed by the
// collector the factory creates.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Uniqueness", func(t *testing.T) {
			testUniqueness(t, newEnv(t, factory, nil))
		})

		t.Run("ConcurrentConvergence", func(t *testing.T) {
			testConcurrentConvergence(t, newEnv(t, factory, nil))
		})

		t.Run("Lookup", func(t *testing.T) {
			testLookup(t, newEnv(t, factory, nil))
		})

		t.Run("Kind", func(t *testing.T) {
			testKind(t, newEnv(t, factory, nil))
		})

		t.Run("HeldSurvivesCollect", func(t *testing.T) {
			testHeldSurvivesCollect(t, newEnv(t, factory, nil))
		})

		t.Run("PostCollectionNonUniqueness", func(t *testing.T) {
			testPostCollectionNonUniqueness(t, newEnv(t, factory, nil))
		})

		t.Run("ResizeCorrectness", func(t *testing.T) {
			testResizeCorrectness(t, newEnv(t, factory, func(opts *intern.Options) {
				opts.NumShards = 2
			}))
		})

		t.Run("LoadBand", func(t *testing.T) {
			testLoadBand(t, newEnv(t, factory, nil))
		})

		t.Run("IdempotentSweep", func(t *testing.T) {
			testIdempotentSweep(t, newEnv(t, factory, nil))
		})

		t.Run("OrderedDisclaim", func(t *testing.T) {
			testOrderedDisclaim(t, newEnv(t, factory, nil))
		})

		t.Run("OrderedDisclaimChain", func(t *testing.T) {
			testOrderedDisclaimChain(t, newEnv(t, factory, nil))
		})

		t.Run("ExactReclaimCount", func(t *testing.T) {
			testExactReclaimCount(t, newEnv(t, factory, nil))
		})

		t.Run("SweeperPurges", func(t *testing.T) {
			testSweeperPurges(t, newEnv(t, factory, func(opts *intern.Options) {
				opts.SweepInterval = 5 * time.Millisecond
			}))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// newEnv creates an env with test options, modify (optional) adjusts them
func newEnv(t testing.TB, factory StoreFactory, modify func(opts *intern.Options)) *Env {
	opts := intern.DefaultOptions()
	opts.Name = "conformance"
	opts.NumShards = 4
	opts.SweepInterval = time.Hour
	if modify != nil {
		modify(opts)
	}
	env := factory(opts)
	t.Cleanup(env.Close)
	return env
}

// Checks if the collector supports the specified capabilities
// Skip the test if it is not supported
func requireCapability(t testing.TB, env *Env, caps gc.Capability) {
	if !gc.Supports(env.Collector, caps) {
		t.Skip()
	}
}

// internID interns a shape and drops the reference to the representative
//
//go:noinline
func internID(s *intern.Store, tag shape.Tag, key shape.Key) uint64 {
	return s.Intern(tag, key, 0, nil).ID()
}

// isLive reports whether the shape has a live representative without retaining it
//
//go:noinline
func isLive(s *intern.Store, tag shape.Tag, key shape.Key) bool {
	_, ok := s.Lookup(tag, key)
	return ok
}

// eventually calls cond after every collection until it returns true
func eventually(t *testing.T, env *Env, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s", what)
		}
		env.Collect()
	}
}

type pair struct {
	a, b uint64
}

func (p pair) AppendWords(dst shape.Key) shape.Key {
	return append(dst, p.a, p.b)
}

type node struct {
	children []*intern.Object
}

func (n node) Refs() []*intern.Object {
	return n.children
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testUniqueness(t *testing.T, env *Env) {
	s := env.Store

	a := s.Intern(1, shape.Words(1, 2), 0, nil)
	if b := s.Intern(1, shape.Words(1, 2), 0, nil); a != b {
		t.Errorf("Expected the same representative for equal shapes")
	}
	if c := s.Intern(2, shape.Words(1, 2), 0, nil); c == a {
		t.Errorf("Expected different representatives for different tags")
	}
	if d := s.Intern(1, shape.Words(1, 3), 0, nil); d == a {
		t.Errorf("Expected different representatives for different keys")
	}
	if e := s.Intern(1, shape.Words(1, 2, 0), 0, nil); e == a {
		t.Errorf("Expected different representatives for different key widths")
	}
}

func testConcurrentConvergence(t *testing.T, env *Env) {
	s := env.Store

	const goroutines = 8
	var inits atomic.Int32
	results := make([]*intern.Object, goroutines)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = s.Intern(5, shape.Words(0x1, 0x2), 0, func(shape.Key, []byte) any {
				inits.Add(1)
				return nil
			})
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Errorf("goroutine %d returned a different representative", i)
		}
	}
	if n := inits.Load(); n != 1 {
		t.Errorf("Expected one initializer call, got %d", n)
	}
}

func testLookup(t *testing.T, env *Env) {
	s := env.Store

	if _, ok := s.Lookup(9, shape.Words(9)); ok {
		t.Errorf("Expected Lookup to miss before Intern")
	}
	obj := s.Intern(9, shape.Words(9), 0, nil)
	if got, ok := s.Lookup(9, shape.Words(9)); !ok || got != obj {
		t.Errorf("Expected Lookup to find the interned representative")
	}
}

func testKind(t *testing.T, env *Env) {
	pairs := intern.NewKind(env.Store, 20, false, func(p pair) uint64 {
		return p.a + p.b
	})

	h := pairs.Make(pair{3, 4})
	if h != pairs.Make(pair{3, 4}) {
		t.Errorf("Expected equal handles for equal keys")
	}
	if h.Value() != 7 {
		t.Errorf("Expected value 7, got %d", h.Value())
	}
	if got, ok := pairs.Lookup(pair{3, 4}); !ok || got != h {
		t.Errorf("Expected Lookup to find the handle")
	}
}

func testHeldSurvivesCollect(t *testing.T, env *Env) {
	s := env.Store

	obj := s.Intern(1, shape.Words(42), 0, nil)
	env.Hold(obj)
	defer env.Release(obj)

	for i := 0; i < 3; i++ {
		env.Collect()
		if got := s.Intern(1, shape.Words(42), 0, nil); got != obj {
			t.Fatalf("pass %d: held representative was replaced", i)
		}
	}
	if obj.Reclaimed() {
		t.Errorf("Held representative should not be reclaimed")
	}
}

func testPostCollectionNonUniqueness(t *testing.T, env *Env) {
	s := env.Store
	key := shape.Words(7, 7)

	first := internID(s, 1, key)
	eventually(t, env, "the representative is reclaimed", func() bool {
		return !isLive(s, 1, key)
	})

	if second := internID(s, 1, key); second == first {
		t.Errorf("Expected a new representative after reclamation, got id %d again", first)
	}
}

func testResizeCorrectness(t *testing.T, env *Env) {
	s := env.Store

	const n = 3000
	objs := make([]*intern.Object, n)
	for i := range objs {
		objs[i] = s.Intern(3, shape.Words(uint64(i), ^uint64(i)), 0, nil)
	}

	info := s.Info(false)
	if info.Resizes == 0 {
		t.Errorf("Expected at least one resize")
	}
	for i, obj := range objs {
		got, ok := s.Lookup(3, shape.Words(uint64(i), ^uint64(i)))
		if !ok || got != obj {
			t.Fatalf("shape %d lost or duplicated", i)
		}
	}
	if info.Live != n {
		t.Errorf("Expected %d live representatives, got %d", n, info.Live)
	}
}

// checkLoadBand verifies the load factor of every shard after an adjust point
func checkLoadBand(t *testing.T, s *intern.Store) {
	t.Helper()
	opts := s.Options()
	for _, si := range s.Info(true).PerShard {
		if si.LoadFactor > opts.MaxLoad {
			t.Errorf("shard %d: load factor %.2f above %.2f", si.Index, si.LoadFactor, opts.MaxLoad)
		}
		if si.LoadFactor < opts.MinLoad && si.Capacity != opts.MinBuckets {
			t.Errorf("shard %d: load factor %.2f below %.2f with %d buckets", si.Index, si.LoadFactor, opts.MinLoad, si.Capacity)
		}
	}
}

func testLoadBand(t *testing.T, env *Env) {
	s := env.Store

	const n = 4000
	kept := make([]*intern.Object, 0, n/10)
	for i := 0; i < n; i++ {
		if i%10 == 0 {
			obj := s.Intern(4, shape.Words(uint64(i)), 0, nil)
			env.Hold(obj)
			kept = append(kept, obj)
		} else {
			internID(s, 4, shape.Words(uint64(i)))
		}
	}
	defer func() {
		for _, obj := range kept {
			env.Release(obj)
		}
	}()

	eventually(t, env, "unreferenced representatives are reclaimed", func() bool {
		return s.Info(false).Live == len(kept)
	})

	s.Sweep()
	checkLoadBand(t, s)

	if info := s.Info(false); info.Stale != 0 {
		t.Errorf("Expected no stale slots after Sweep, got %d", info.Stale)
	}
	for _, obj := range kept {
		if got, ok := s.Lookup(4, obj.Key()); !ok || got != obj {
			t.Fatalf("representative %s lost by resize", obj)
		}
	}
}

func testIdempotentSweep(t *testing.T, env *Env) {
	s := env.Store

	kept := make([]*intern.Object, 0, 100)
	for i := 0; i < 1000; i++ {
		obj := s.Intern(6, shape.Words(uint64(i)), 0, nil)
		if i%10 == 0 {
			env.Hold(obj)
			kept = append(kept, obj)
		}
	}
	defer func() {
		for _, obj := range kept {
			env.Release(obj)
		}
	}()
	env.Collect()

	s.Sweep()
	first := s.Info(true)
	s.Sweep()
	second := s.Info(true)

	for i := range first.PerShard {
		a, b := first.PerShard[i], second.PerShard[i]
		// a runtime collector may reclaim more in between, so only growth of the table is an error
		if b.Capacity > a.Capacity || b.Slots > a.Slots {
			t.Errorf("shard %d grew on a repeated sweep: %+v -> %+v", i, a, b)
		}
	}
	if gc.Supports(env.Collector, gc.CapExplicitCollect) && first.Purged != second.Purged {
		t.Errorf("Second sweep purged %d more slots", second.Purged-first.Purged)
	}
}

func testOrderedDisclaim(t *testing.T, env *Env) {
	requireCapability(t, env, gc.CapOrdered|gc.CapExplicitCollect)
	s := env.Store

	s.RegisterKind(31, true)
	child := s.Intern(30, shape.Words(1), 0, nil)
	parent := s.Intern(31, shape.Words(1), 0, func(shape.Key, []byte) any {
		return node{children: []*intern.Object{child}}
	})

	env.Collect()
	if !parent.Reclaimed() || child.Reclaimed() {
		t.Fatalf("Expected the parent reclaimed and the child alive (parent=%t, child=%t)",
			parent.Reclaimed(), child.Reclaimed())
	}

	env.Collect()
	if !child.Reclaimed() {
		t.Errorf("Expected the child to be reclaimed by the next pass")
	}
}

func testOrderedDisclaimChain(t *testing.T, env *Env) {
	requireCapability(t, env, gc.CapOrdered|gc.CapExplicitCollect)
	s := env.Store

	s.RegisterKind(33, true)
	grandchild := s.Intern(32, shape.Words(10), 0, nil)
	child := s.Intern(32, shape.Words(11), 0, func(shape.Key, []byte) any {
		return node{children: []*intern.Object{grandchild}}
	})
	parent := s.Intern(33, shape.Words(12), 0, func(shape.Key, []byte) any {
		return node{children: []*intern.Object{child}}
	})

	env.Collect()
	if !parent.Reclaimed() {
		t.Error("Expected the ordered parent to be reclaimed by the first pass")
	}
	if child.Reclaimed() || grandchild.Reclaimed() {
		t.Fatalf("Expected child and grandchild to survive the first pass (child=%t, grandchild=%t)",
			child.Reclaimed(), grandchild.Reclaimed())
	}
	for _, ref := range child.Value().(node).Refs() {
		if ref.Reclaimed() {
			t.Errorf("Surviving child refers to reclaimed representative %s", ref)
		}
	}
	if got, ok := s.Lookup(32, shape.Words(10)); !ok || got != grandchild {
		t.Error("Grandchild should still be the live representative")
	}
}

func testExactReclaimCount(t *testing.T, env *Env) {
	requireCapability(t, env, gc.CapVeto|gc.CapExplicitCollect)
	s := env.Store

	for i := 0; i < 50; i++ {
		s.Intern(7, shape.Words(uint64(i)), 0, nil)
	}
	env.Collect()

	info := s.Info(false)
	if info.Reclaims != 50 || info.Live != 0 {
		t.Errorf("Expected 50 reclaims and no live representatives, got %d/%d", info.Reclaims, info.Live)
	}
	if info.Stale != 50 {
		t.Errorf("Expected 50 stale slots before sweeping, got %d", info.Stale)
	}
}

func testSweeperPurges(t *testing.T, env *Env) {
	s := env.Store

	for i := 0; i < 200; i++ {
		internID(s, 8, shape.Words(uint64(i)))
	}

	eventually(t, env, "the sweeper purged all slots", func() bool {
		time.Sleep(5 * time.Millisecond)
		info := s.Info(false)
		return info.Slots == 0
	})

	if purged := s.Info(false).Purged; purged != 200 {
		t.Errorf("Expected 200 purged slots, got %d", purged)
	}
}
