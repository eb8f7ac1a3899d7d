package util

import (
	"container/heap"
	"strconv"
)

// DirtyItem is a dirty shard and the generation in which it first became dirty
type DirtyItem struct {
	Shard      int    // Shard index
	Generation uint64 // Generation of the oldest unswept reclamation
	Pending    int    // Number of reclamations reported since the last sweep
	index      int    // Index in the heap, maintained by the heap package
}

func (i *DirtyItem) String() string {
	return "{Shard: " + strconv.Itoa(i.Shard) + ", Generation: " + strconv.FormatUint(i.Generation, 10) +
		", Pending: " + strconv.Itoa(i.Pending) + "}"
}

// DirtyHeap is a min-heap of dirty shards ordered by generation with key-based access.
//
//   - O(log n) for MarkDirty of a new shard and PopOldest
//   - O(1) for Contains and Get
//
// The heap is not thread-safe, it is owned by the sweeper goroutine.
type DirtyHeap struct {
	items  []*DirtyItem
	shards map[int]*DirtyItem
}

// NewDirtyHeap creates a new empty heap
func NewDirtyHeap() *DirtyHeap {
	return &DirtyHeap{
		items:  make([]*DirtyItem, 0),
		shards: make(map[int]*DirtyItem),
	}
}

// Len returns the number of dirty shards (part of heap.Interface)
func (d *DirtyHeap) Len() int { return len(d.items) }

// Less orders by generation, ties are broken by the number of pending reclamations (part of heap.Interface)
func (d *DirtyHeap) Less(i, j int) bool {
	if d.items[i].Generation != d.items[j].Generation {
		return d.items[i].Generation < d.items[j].Generation
	}
	return d.items[i].Pending > d.items[j].Pending
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (d *DirtyHeap) Swap(i, j int) {
	d.items[i], d.items[j] = d.items[j], d.items[i]
	d.items[i].index = i
	d.items[j].index = j
}

// Push adds an item (part of heap.Interface, use MarkDirty instead)
func (d *DirtyHeap) Push(x interface{}) {
	item := x.(*DirtyItem)
	item.index = len(d.items)
	d.items = append(d.items, item)
	d.shards[item.Shard] = item
}

// Pop removes the last item (part of heap.Interface, use PopOldest instead)
func (d *DirtyHeap) Pop() interface{} {
	old := d.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	d.items = old[:n-1]
	delete(d.shards, item.Shard)
	return item
}

// MarkDirty records a reclamation in the shard.
// An already dirty shard keeps its (older) generation and counts one more pending reclamation.
func (d *DirtyHeap) MarkDirty(shard int, generation uint64) {
	if item, ok := d.shards[shard]; ok {
		item.Pending++
		if generation < item.Generation {
			item.Generation = generation
		}
		heap.Fix(d, item.index)
		return
	}

	heap.Push(d, &DirtyItem{
		Shard:      shard,
		Generation: generation,
		Pending:    1,
	})
}

// PopOldest removes and returns the shard that has been dirty the longest
func (d *DirtyHeap) PopOldest() (DirtyItem, bool) {
	if len(d.items) == 0 {
		return DirtyItem{}, false
	}
	return *heap.Pop(d).(*DirtyItem), true
}

// Remove forgets a shard (e.g. after it was swept by some other path)
func (d *DirtyHeap) Remove(shard int) bool {
	item, ok := d.shards[shard]
	if !ok {
		return false
	}
	heap.Remove(d, item.index)
	return true
}

// Contains checks if a shard is dirty
func (d *DirtyHeap) Contains(shard int) bool {
	_, ok := d.shards[shard]
	return ok
}

// Get returns the dirty state of a shard without removing it
func (d *DirtyHeap) Get(shard int) (DirtyItem, bool) {
	item, ok := d.shards[shard]
	if !ok {
		return DirtyItem{}, false
	}
	return *item, true
}
