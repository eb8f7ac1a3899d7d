package intern

import (
	"testing"

	"github.com/ValentinKolb/hashcons/lib/shape"
)

func TestNextPow2(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 2: 2, 3: 4, 16: 16, 17: 32, 1000: 1024}
	for n, want := range cases {
		if got := nextPow2(n); got != want {
			t.Errorf("nextPow2(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestCapacityFor(t *testing.T) {
	s, _ := newHeapStore(t, testOptions(), 0)

	// MinBuckets 16, band [0.5, 2.0]
	cases := map[int]int{0: 16, 32: 16, 33: 32, 64: 32, 65: 64, 1000: 512}
	for n, want := range cases {
		if got := s.capacityFor(n); got != want {
			t.Errorf("capacityFor(%d) = %d, want %d", n, got, want)
		}
	}
}

// checkLoadBand verifies the load factor bound of every shard after an adjust point
func checkLoadBand(t *testing.T, s *Store) {
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

// TestResizeCorrectness tests that growing a shard neither loses nor duplicates representatives
func TestResizeCorrectness(t *testing.T) {
	opts := testOptions()
	opts.NumShards = 1
	s, _ := newHeapStore(t, opts, 0)

	const n = 2000
	objs := make([]*Object, n)
	for i := range objs {
		objs[i] = s.Intern(1, shape.Words(uint64(i), uint64(i)*7), 0, nil)

		// inline adjust keeps the upper bound after every insert
		sh := s.shards[0]
		if float64(sh.slots) > opts.MaxLoad*float64(len(sh.buckets)) {
			t.Fatalf("after insert %d: %d slots in %d buckets", i, sh.slots, len(sh.buckets))
		}
	}

	info := s.Info(true)
	if info.Resizes == 0 || info.PerShard[0].Capacity <= opts.MinBuckets {
		t.Errorf("Expected the shard to grow, got %d resizes and %d buckets", info.Resizes, info.PerShard[0].Capacity)
	}
	if info.Slots != n || info.Live != n {
		t.Errorf("Expected %d slots, got %d (%d live)", n, info.Slots, info.Live)
	}

	ids := make(map[uint64]struct{}, n)
	for i, obj := range objs {
		if got, ok := s.Lookup(1, shape.Words(uint64(i), uint64(i)*7)); !ok || got != obj {
			t.Fatalf("shape %d lost or duplicated by resize", i)
		}
		ids[obj.ID()] = struct{}{}
	}
	if len(ids) != n {
		t.Errorf("Expected %d distinct ids, got %d", n, len(ids))
	}

	s.Sweep()
	checkLoadBand(t, s)
	if info := s.Info(false); info.ChainLength.Count == 0 || info.AdjustNanos.Count == 0 {
		t.Error("Adjust should record chain length and duration samples")
	}
}

// TestLoadBandAfterCollection tests shrinking after most representatives were reclaimed
func TestLoadBandAfterCollection(t *testing.T) {
	s, heap := newHeapStore(t, testOptions(), 0)

	const n = 4000
	kept := make(map[int]*Object)
	for i := range n {
		obj := s.Intern(1, shape.Words(uint64(i)), 0, nil)
		if i%10 == 0 {
			heap.Root(obj)
			kept[i] = obj
		}
	}

	before := s.Info(false).Capacity
	if stats := heap.Collect(); stats.Reclaimed != n-len(kept) {
		t.Fatalf("Expected %d reclaimed representatives, got %+v", n-len(kept), stats)
	}

	s.Sweep()
	checkLoadBand(t, s)

	info := s.Info(false)
	if info.Capacity >= before {
		t.Errorf("Expected shards to shrink from %d buckets, got %d", before, info.Capacity)
	}
	if info.Stale != 0 || info.Live != len(kept) {
		t.Errorf("Expected %d live and no stale slots, got %d/%d", len(kept), info.Live, info.Stale)
	}

	for i, obj := range kept {
		if got, ok := s.Lookup(1, shape.Words(uint64(i))); !ok || got != obj {
			t.Fatalf("shape %d lost by resize", i)
		}
	}
}

// TestIdempotentSweep tests that sweeping twice without inserts or collections changes nothing
func TestIdempotentSweep(t *testing.T) {
	s, heap := newHeapStore(t, testOptions(), 0)

	for i := range 1000 {
		obj := s.Intern(2, shape.Words(uint64(i)), 0, nil)
		if i%3 == 0 {
			heap.Root(obj)
		}
	}
	heap.Collect()

	s.Sweep()
	first := s.Info(true)

	s.Sweep()
	second := s.Info(true)

	if first.Purged != second.Purged || first.Resizes != second.Resizes {
		t.Errorf("Second sweep purged or resized: %d/%d -> %d/%d", first.Purged, first.Resizes, second.Purged, second.Resizes)
	}
	for i := range first.PerShard {
		if first.PerShard[i] != second.PerShard[i] {
			t.Errorf("shard %d changed: %+v -> %+v", i, first.PerShard[i], second.PerShard[i])
		}
	}
}

func TestAdjustDetectsCorruption(t *testing.T) {
	s, _ := newHeapStore(t, testOptions(), 0)

	obj := s.Intern(1, shape.Words(1), 0, nil)
	idx := s.shardIndex(obj.hash)

	obj.hash ^= 1
	mustPanic(t, "hash mismatch", func() {
		s.Adjust(idx)
	})
	obj.hash ^= 1

	mustPanic(t, "index out of range", func() {
		s.Adjust(len(s.shards))
	})
}
