package shape

import (
	"math/bits"
	"testing"
)

// TestHashDeterministic tests that every registered hash function is deterministic
// and depends on the seed, the tag and the key
func TestHashDeterministic(t *testing.T) {
	for _, name := range HashNames() {
		t.Run(name, func(t *testing.T) {
			fn, ok := LookupHash(name)
			if !ok {
				t.Fatalf("hash %s should be registered", name)
			}

			key := Words(0x1, 0x2)
			h := fn(42, 5, key)

			if fn(42, 5, key.Clone()) != h {
				t.Error("Equal inputs should produce equal hashes")
			}

			if fn(43, 5, key) == h {
				t.Error("Different seeds should produce different hashes")
			}

			if fn(42, 6, key) == h {
				t.Error("Different tags should produce different hashes")
			}

			if fn(42, 5, Words(0x2, 0x1)) == h {
				t.Error("Word order should affect the hash")
			}

			// keys wider than the stack buffer must hash as well
			wide := make(Key, 3*stackWords)
			for i := range wide {
				wide[i] = uint64(i)
			}
			if fn(42, 5, wide) != fn(42, 5, wide.Clone()) {
				t.Error("Wide keys should hash deterministically")
			}
		})
	}
}

// TestHashDispersion tests that consecutive keys spread over the high bits,
// which are used for shard selection
func TestHashDispersion(t *testing.T) {
	const (
		samples   = 4096
		topBits   = 4
		partition = 1 << topBits
	)

	for _, name := range HashNames() {
		t.Run(name, func(t *testing.T) {
			fn, _ := LookupHash(name)

			counts := make([]int, partition)
			for i := 0; i < samples; i++ {
				counts[fn(7, 1, Words(uint64(i)))>>(64-topBits)]++
			}

			// every partition should get at least a quarter of its fair share
			for p, c := range counts {
				if c < samples/partition/4 {
					t.Errorf("partition %d only got %d of %d samples", p, c, samples)
				}
			}
		})
	}
}

// TestLookupUnknownHash tests that unknown names are reported
func TestLookupUnknownHash(t *testing.T) {
	if _, ok := LookupHash("md5"); ok {
		t.Error("md5 should not be a registered hash function")
	}

	if _, ok := LookupHash(DefaultHash); !ok {
		t.Error("the default hash function should be registered")
	}
}

// TestAvalanche tests that flipping one input bit flips many output bits
func TestAvalanche(t *testing.T) {
	for i := 0; i < 64; i++ {
		diff := bits.OnesCount64(Avalanche(0) ^ Avalanche(1<<i))
		if diff < 8 {
			t.Errorf("flipping bit %d only changed %d output bits", i, diff)
		}
	}
}

// TestGenerateSeed tests that two seeds differ
func TestGenerateSeed(t *testing.T) {
	if GenerateSeed() == GenerateSeed() {
		t.Error("Two generated seeds should differ")
	}
}
