// Package util provides the supporting data structures of the intern store.
//
// The package contains:
//   - eventqueue: a lock-free multi-producer single-consumer queue, used to hand
//     reclaim notifications from collector callbacks to the store's sweeper
//   - dirtyheap: a keyed min-heap of dirty shards ordered by the generation in which
//     they first accumulated stale slots, so the sweeper can process the oldest first
//   - statistics: distribution metrics used to report how evenly shapes spread
//     across shards
//
// Only EventQueue is safe for concurrent use, DirtyHeap must be owned by a single
// goroutine (the sweeper).
package util
