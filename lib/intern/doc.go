/*
Package intern implements a sharded structural intern table (hash-consing).

For every shape, a tag plus a fixed-width key of machine words, the Store holds at
most one live representative (*Object). Callers with structurally equal shapes
receive the same pointer, so pointer comparison replaces structural comparison.

The table references its representatives only weakly. Reclamation is decided by a
collector (see package gc): the managed Heap collects explicitly from roots, the
Runtime collector follows the Go garbage collector.

# Liveness

Every Object carries a witness word holding the generation in which it was last
handed out and a reclaimed flag. A lookup stamps the current collector generation
before it returns an object; the disclaim callback of a pass reclaims only objects
stamped before the pass started and vetoes all others. Both sides use a CAS on the
same word, so a lookup and a pass never both win.

Stale slots of reclaimed objects are unlinked lazily by the next write-locked
traversal of their bucket, by an explicit Sweep, or by the background sweeper.

# Sharding

The high bits of the hash select the shard, the low bits the bucket. Each shard
has its own reader-biased lock (xsync.RBMutex): hits only take the read lock,
every chain mutation takes the write lock.

# Resizing

A shard's bucket array is kept within the load band [MinLoad, MaxLoad] at every
adjust point. Adjust runs inline when a shard exceeds MaxLoad or has seen as many
inserts as it has buckets, and when the shard is swept.

# Usage

	heap := gc.NewHeap(&gc.HeapOptions[intern.Object]{Tracer: intern.Trace})
	store := intern.NewStore(intern.DefaultOptions(), heap)
	defer store.Close()

	pairs := intern.NewKind(store, 1, false, func(p Pair) string { return p.String() })
	a := pairs.Make(Pair{1, 2})
	b := pairs.Make(Pair{1, 2})
	// a == b
*/
package intern
