package intern

import (
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Liveness witness
// --------------------------------------------------------------------------

// The witness word packs the generation stamp and status flags.
// Layout: [Generation:56][Flags:8]
const (
	flagBits = 8
	flagMask = 1<<flagBits - 1

	flagReady     uint64 = 1 << 0 // the initializer has run
	flagReclaimed uint64 = 1 << 1 // a collector pass reclaimed the object

	// pinnedGeneration keeps an object under construction alive in every pass
	pinnedGeneration = 1<<(64-flagBits) - 1
)

// witness records whether an object survived the latest collector pass.
//
// The witness word is the single point where a lookup handing out an object
// and a collector pass reclaiming it are ordered: mark and reclaim both CAS the
// same word and exactly one of them wins.
type witness struct {
	word atomic.Uint64
}

// load returns the generation stamp and the flags
func (w *witness) load() (uint64, uint64) {
	word := w.word.Load()
	return word >> flagBits, word & flagMask
}

// has reports whether all given flags are set
func (w *witness) has(flags uint64) bool {
	return w.word.Load()&flags == flags
}

// setFlags sets flags without touching the generation
func (w *witness) setFlags(flags uint64) {
	w.word.Or(flags & flagMask)
}

// pin stamps an object that is not yet visible to anybody
func (w *witness) pin() {
	w.word.Store(pinnedGeneration << flagBits)
}

// unpin replaces the pinned stamp with gen, preserving the flags
func (w *witness) unpin(gen uint64) {
	for {
		old := w.word.Load()
		if w.word.CompareAndSwap(old, gen<<flagBits|old&flagMask) {
			return
		}
	}
}

// mark stamps the object with gen. The stamp never decreases and the flags are preserved.
// Returns false if the object has already been reclaimed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *witness) mark(gen uint64) bool {
	for {
		old := w.word.Load()
		if old&flagReclaimed != 0 {
			return false
		}
		if old>>flagBits >= gen {
			return true
		}
		if w.word.CompareAndSwap(old, gen<<flagBits|old&flagMask) {
			return true
		}
	}
}

// reclaim marks the object as reclaimed by the pass with generation passGen.
// Returns false (veto) if the object has been marked since the pass started.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (w *witness) reclaim(passGen uint64) bool {
	for {
		old := w.word.Load()
		if old&flagReclaimed != 0 {
			return true
		}
		if old>>flagBits >= passGen {
			return false
		}
		if w.word.CompareAndSwap(old, old|flagReclaimed) {
			return true
		}
	}
}
