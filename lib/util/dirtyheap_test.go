package util

import "testing"

// TestDirtyHeapOrder tests that shards are popped oldest first
func TestDirtyHeapOrder(t *testing.T) {
	d := NewDirtyHeap()

	d.MarkDirty(3, 50)
	d.MarkDirty(1, 100)
	d.MarkDirty(2, 10)

	if d.Len() != 3 {
		t.Fatalf("Expected 3 dirty shards, got %d", d.Len())
	}

	for _, expected := range []int{2, 3, 1} {
		item, ok := d.PopOldest()
		if !ok {
			t.Fatal("PopOldest should return an item")
		}
		if item.Shard != expected {
			t.Errorf("Expected shard %d, got %s", expected, item.String())
		}
	}

	if _, ok := d.PopOldest(); ok {
		t.Error("Heap should be empty")
	}
}

// TestDirtyHeapMarkAgain tests that marking a dirty shard keeps the oldest generation
func TestDirtyHeapMarkAgain(t *testing.T) {
	d := NewDirtyHeap()

	d.MarkDirty(1, 10)
	d.MarkDirty(1, 20)
	d.MarkDirty(1, 5)

	item, ok := d.Get(1)
	if !ok {
		t.Fatal("Shard 1 should be dirty")
	}
	if item.Generation != 5 || item.Pending != 3 {
		t.Errorf("Expected generation 5 with 3 pending, got %s", item.String())
	}

	if d.Len() != 1 {
		t.Errorf("Expected 1 dirty shard, got %d", d.Len())
	}
}

// TestDirtyHeapTieBreak tests that among equal generations the busiest shard comes first
func TestDirtyHeapTieBreak(t *testing.T) {
	d := NewDirtyHeap()

	d.MarkDirty(1, 7)
	d.MarkDirty(2, 7)
	d.MarkDirty(2, 7)

	item, _ := d.PopOldest()
	if item.Shard != 2 {
		t.Errorf("Expected shard 2 with more pending reclamations, got %s", item.String())
	}
}

// TestDirtyHeapRemove tests key based removal
func TestDirtyHeapRemove(t *testing.T) {
	d := NewDirtyHeap()
	d.MarkDirty(1, 1)
	d.MarkDirty(2, 2)

	if !d.Remove(1) {
		t.Error("Remove of a dirty shard should succeed")
	}
	if d.Remove(1) {
		t.Error("Remove of a clean shard should fail")
	}
	if d.Contains(1) || !d.Contains(2) {
		t.Error("Only shard 2 should be dirty")
	}
}
