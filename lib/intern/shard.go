package intern

import (
	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Shard and slot structures
// --------------------------------------------------------------------------

// slot is one entry of a collision chain. It never keeps its object alive.
type slot struct {
	hash uint64          // cached hash of the object's shape
	ref  gc.Weak[Object] // weak reference to the representative
	next *slot           // next slot in the chain
}

// shard is an independently locked part of the table
type shard struct {
	mu      *xsync.RBMutex
	buckets []*slot // len is a power of two
	slots   int     // linked slots, stale ones included
	inserts int     // inserts since the last adjust
}

// newShard creates a shard with the given number of buckets
func newShard(capacity int) *shard {
	return &shard{
		mu:      xsync.NewRBMutex(),
		buckets: make([]*slot, capacity),
	}
}

// bucket returns the bucket index of hash (low bits)
func (sh *shard) bucket(hash uint64) int {
	return int(hash & uint64(len(sh.buckets)-1))
}

// shardIndex returns the index of the shard responsible for hash (high bits)
func (s *Store) shardIndex(hash uint64) int {
	return int(hash >> s.shardShift)
}

// shardFor returns the shard responsible for hash
func (s *Store) shardFor(hash uint64) *shard {
	return s.shards[s.shardIndex(hash)]
}

// dead reports whether the slot's object is gone or reclaimed
func dead(obj *Object) bool {
	return obj == nil || obj.witness.has(flagReclaimed)
}

// matches reports whether obj represents the shape (tag, key)
func matches(obj *Object, tag shape.Tag, key shape.Key) bool {
	return obj.tag == tag && obj.key.Equal(key)
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

// lookupShared searches the shard for a live representative of (tag, key).
// Dead slots are skipped, the chain is never modified.
//
// Thread-safety: This method acquires the shard's read lock.
func (s *Store) lookupShared(sh *shard, hash uint64, tag shape.Tag, key shape.Key) *Object {
	t := sh.mu.RLock()
	defer sh.mu.RUnlock(t)

	for sl := sh.buckets[sh.bucket(hash)]; sl != nil; sl = sl.next {
		if sl.hash != hash {
			continue
		}
		obj := sl.ref.Value()
		if dead(obj) || !matches(obj, tag, key) {
			continue
		}
		if s.markLive(obj) {
			return obj
		}
	}
	return nil
}

// lookupExclusive searches the shard like lookupShared but unlinks every dead
// slot it passes.
//
// Thread-safety: The caller must hold the shard's write lock.
func (s *Store) lookupExclusive(sh *shard, hash uint64, tag shape.Tag, key shape.Key) *Object {
	link := &sh.buckets[sh.bucket(hash)]
	for sl := *link; sl != nil; sl = *link {
		obj := sl.ref.Value()
		if !dead(obj) && sl.hash == hash && matches(obj, tag, key) {
			if s.markLive(obj) {
				return obj
			}
			// lost against a collector pass, the slot is stale now
		} else if !dead(obj) {
			link = &sl.next
			continue
		}

		s.unlink(sh, link, sl)
	}
	return nil
}

// unlink removes sl (referenced by link) from its chain
//
// Thread-safety: The caller must hold the shard's write lock.
func (s *Store) unlink(sh *shard, link **slot, sl *slot) {
	*link = sl.next
	sl.ref.Clear()
	sl.next = nil
	sh.slots--
	s.metrics.purged.Inc()
}

// --------------------------------------------------------------------------
// Insert
// --------------------------------------------------------------------------

// insertNew creates the representative of (tag, key) and links it at the head
// of its bucket. It must only be called after lookupExclusive missed.
//
// Thread-safety: The caller must hold the shard's write lock.
func (s *Store) insertNew(sh *shard, hash uint64, tag shape.Tag, key shape.Key, extraSize int, init Initializer) *Object {
	for {
		obj := &Object{
			tag:  tag,
			hash: hash,
			id:   s.nextID.Add(1),
			key:  key.Clone(),
		}
		if extraSize > 0 {
			obj.extra = make([]byte, extraSize)
		}

		// nobody can reference the object yet, keep it alive until it is linked
		obj.witness.pin()

		size := objectHeaderSize + key.SizeBytes() + extraSize
		if err := s.collector.Alloc(tag, size, obj, hash); err != nil {
			s.allocFailed(size, err)
		}

		if init != nil {
			obj.value = init(obj.key, obj.extra)
		}
		obj.witness.setFlags(flagReady)

		idx := sh.bucket(hash)
		sh.buckets[idx] = &slot{
			hash: hash,
			ref:  s.collector.MakeWeak(obj),
			next: sh.buckets[idx],
		}
		sh.slots++
		sh.inserts++

		obj.witness.unpin(s.collector.Generation())
		if s.markLive(obj) {
			if float64(sh.slots) > s.opts.MaxLoad*float64(len(sh.buckets)) || sh.inserts >= len(sh.buckets) {
				s.adjust(sh)
			}
			return obj
		}

		// a pass started between unpin and markLive reclaimed the object before
		// it was handed out, the stale slot is purged by the next traversal
		Logger.Debugf("representative %d reclaimed before it was returned, retrying", obj.id)
	}
}

// markLive stamps obj with the current generation. If a pass starts while
// marking, obj is stamped again with the new generation so that the pass
// vetoes its reclamation. Returns false if obj has been reclaimed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) markLive(obj *Object) bool {
	gen := s.collector.Generation()
	for {
		if !obj.witness.mark(gen) {
			return false
		}
		next := s.collector.Generation()
		if next == gen {
			return true
		}
		gen = next
	}
}
