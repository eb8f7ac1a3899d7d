package gc

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor runs GC cycles until cond holds or the timeout expires
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// allocDropped admits an object and returns only its weak reference
func allocDropped(t *testing.T, r *Runtime[node]) Weak[node] {
	n := &node{id: 1}
	if err := r.Alloc(3, 64, n, 99); err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	return r.MakeWeak(n)
}

// TestRuntimeReclaim tests that unreachable objects are reported and their weak references cleared
func TestRuntimeReclaim(t *testing.T) {
	r := NewRuntime[node](nil)
	defer r.Close()

	var notified atomic.Int64
	var hint atomic.Uint64
	r.RegisterDisclaim(3, func(c Candidate[node]) bool {
		if c.Object != nil {
			t.Error("Runtime candidates should be post mortem")
		}
		hint.Store(c.Hint)
		notified.Add(1)
		return false
	}, false)

	w := allocDropped(t, r)

	if !waitFor(func() bool { return w.Value() == nil && notified.Load() == 1 }) {
		t.Fatal("Object should be reclaimed and reported")
	}

	if hint.Load() != 99 {
		t.Errorf("Expected hint 99, got %d", hint.Load())
	}

	if !waitFor(func() bool { return r.UsedBytes() == 0 }) {
		t.Errorf("Expected 0 used bytes, got %d", r.UsedBytes())
	}
}

// TestRuntimeGeneration tests that the generation advances with GC cycles
func TestRuntimeGeneration(t *testing.T) {
	r := NewRuntime[node](nil)
	defer r.Close()

	start := r.Generation()
	if !waitFor(func() bool { return r.Generation() >= start+2 }) {
		t.Errorf("Generation should advance with GC cycles, still at %d", r.Generation())
	}
}

// TestRuntimeLimit tests the soft byte limit
func TestRuntimeLimit(t *testing.T) {
	r := NewRuntime[node](&RuntimeOptions{LimitBytes: 100})
	defer r.Close()

	kept := &node{id: 1}
	if err := r.Alloc(1, 64, kept, 0); err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	if err := r.Alloc(1, 64, &node{id: 2}, 0); !errors.Is(err, ErrExhausted) {
		t.Errorf("Expected ErrExhausted, got %v", err)
	}

	if r.UsedBytes() != 64 {
		t.Errorf("A failed Alloc should not be accounted, got %d", r.UsedBytes())
	}

	runtime.KeepAlive(kept)
}

// TestRuntimeWeakClear tests clearing a runtime weak reference
func TestRuntimeWeakClear(t *testing.T) {
	r := NewRuntime[node](nil)
	defer r.Close()

	n := &node{id: 1}
	w := r.MakeWeak(n)
	if w.Value() != n {
		t.Error("Weak reference should resolve while the object is alive")
	}

	w.Clear()
	if w.Value() != nil {
		t.Error("Cleared weak reference should return nil")
	}
	runtime.KeepAlive(n)
}
