package intern

import (
	"sync"
	"testing"
)

func TestWitnessMark(t *testing.T) {
	var w witness

	if !w.mark(3) {
		t.Fatal("mark of a fresh witness should succeed")
	}
	if gen, _ := w.load(); gen != 3 {
		t.Errorf("Expected generation 3, got %d", gen)
	}

	// the stamp never decreases
	w.mark(1)
	if gen, _ := w.load(); gen != 3 {
		t.Errorf("Expected generation to stay at 3, got %d", gen)
	}

	// flags survive marking
	w.setFlags(flagReady)
	w.mark(5)
	gen, flags := w.load()
	if gen != 5 || flags != flagReady {
		t.Errorf("Expected generation 5 with ready flag, got %d/%#x", gen, flags)
	}
}

func TestWitnessReclaim(t *testing.T) {
	var w witness
	w.mark(2)

	if w.reclaim(2) {
		t.Error("reclaim by a pass of the stamped generation should be vetoed")
	}
	if w.reclaim(1) {
		t.Error("reclaim by an older pass should be vetoed")
	}
	if w.has(flagReclaimed) {
		t.Fatal("vetoed reclaim should not set the reclaimed flag")
	}

	if !w.reclaim(3) {
		t.Fatal("reclaim by a newer pass should succeed")
	}
	if w.mark(4) {
		t.Error("mark after reclaim should fail")
	}
	if !w.reclaim(9) {
		t.Error("reclaim of a reclaimed witness should report success")
	}
}

func TestWitnessPin(t *testing.T) {
	var w witness
	w.pin()
	w.setFlags(flagReady)

	if w.reclaim(1 << 40) {
		t.Error("pinned witness should veto every pass")
	}

	w.unpin(7)
	gen, flags := w.load()
	if gen != 7 || flags != flagReady {
		t.Errorf("Expected generation 7 with ready flag after unpin, got %d/%#x", gen, flags)
	}
	if !w.reclaim(8) {
		t.Error("unpinned witness should be reclaimable by a newer pass")
	}
}

// TestWitnessRace tests that a concurrent mark and reclaim never both win
func TestWitnessRace(t *testing.T) {
	for i := 0; i < 2000; i++ {
		var w witness
		var marked, reclaimed bool

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			marked = w.mark(1)
		}()
		go func() {
			defer wg.Done()
			reclaimed = w.reclaim(1)
		}()
		wg.Wait()

		if marked == reclaimed {
			t.Fatalf("iteration %d: exactly one side should win (marked=%t, reclaimed=%t)", i, marked, reclaimed)
		}
	}
}
