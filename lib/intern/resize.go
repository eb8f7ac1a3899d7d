package intern

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Adjust and resize
// --------------------------------------------------------------------------

// adjust purges all stale slots of the shard and resizes its bucket array if the
// load factor left the configured band.
//
// Thread-safety: The caller must hold the shard's write lock.
func (s *Store) adjust(sh *shard) {
	start := time.Now()

	survivors := 0
	for i := range sh.buckets {
		chain := 0
		link := &sh.buckets[i]
		for sl := *link; sl != nil; sl = *link {
			obj := sl.ref.Value()
			if dead(obj) {
				s.unlink(sh, link, sl)
				continue
			}
			if obj.hash != sl.hash {
				panic(fmt.Sprintf("intern: corrupted slot in bucket %d: slot hash %#016x, object %d hash %#016x",
					i, sl.hash, obj.id, obj.hash))
			}
			survivors++
			chain++
			link = &sl.next
		}
		if chain > 0 {
			s.metrics.chainLength.Update(int64(chain))
		}
	}
	sh.slots = survivors
	sh.inserts = 0

	capacity := len(sh.buckets)
	load := float64(survivors) / float64(capacity)
	if load > s.opts.MaxLoad || (load < s.opts.MinLoad && capacity > s.opts.MinBuckets) {
		if newCapacity := s.capacityFor(survivors); newCapacity != capacity {
			s.rehash(sh, newCapacity)
			s.metrics.resizes.Inc()
		}
	}

	s.metrics.adjustNanos.Update(time.Since(start).Nanoseconds())
}

// capacityFor returns the smallest power of two >= MinBuckets that holds n slots
// without exceeding MaxLoad. Since 2*MinLoad <= MaxLoad the result also satisfies
// MinLoad unless it is MinBuckets.
func (s *Store) capacityFor(n int) int {
	capacity := s.opts.MinBuckets
	for float64(n) > s.opts.MaxLoad*float64(capacity) {
		capacity <<= 1
	}
	return capacity
}

// rehash moves every slot into a new bucket array using the cached hashes
//
// Thread-safety: The caller must hold the shard's write lock.
func (s *Store) rehash(sh *shard, capacity int) {
	buckets := make([]*slot, capacity)
	mask := uint64(capacity - 1)
	for _, head := range sh.buckets {
		for sl := head; sl != nil; {
			next := sl.next
			idx := sl.hash & mask
			sl.next = buckets[idx]
			buckets[idx] = sl
			sl = next
		}
	}
	Logger.Debugf("%s: shard resized from %d to %d buckets (%d slots)", s.opts.Name, len(sh.buckets), capacity, sh.slots)
	sh.buckets = buckets
}

// Adjust purges and, if needed, resizes the shard with index i
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Adjust(i int) {
	if i < 0 || i >= len(s.shards) {
		panic(fmt.Sprintf("intern: shard index %d out of range [0, %d)", i, len(s.shards)))
	}
	sh := s.shards[i]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s.adjust(sh)
}

// Sweep adjusts every shard
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Sweep() {
	for i := range s.shards {
		s.Adjust(i)
	}
}
