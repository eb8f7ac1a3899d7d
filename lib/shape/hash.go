package shape

import (
	"crypto/rand"
	"encoding/binary"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// --------------------------------------------------------------------------
// Hash function registry
// --------------------------------------------------------------------------

// HashFunc mixes a seed, a tag and all words of a key into a 64-bit hash.
// The result must be deterministic for equal inputs.
type HashFunc func(seed uint64, tag Tag, key Key) uint64

const (
	HashXXH3   = "xxh3"   // zeebo/xxh3, seeded
	HashXXHash = "xxhash" // cespare/xxhash/v2, seeded digest
	HashFNV1a  = "fnv1a"  // FNV-1a over the word bytes with a final avalanche

	// DefaultHash is used when no (or an unknown) hash function name is configured
	DefaultHash = HashXXH3
)

var hashFuncs = map[string]HashFunc{
	HashXXH3:   HashXXH3Words,
	HashXXHash: HashXXHashWords,
	HashFNV1a:  HashFNV1aWords,
}

// LookupHash returns the hash function registered under name
func LookupHash(name string) (HashFunc, bool) {
	fn, ok := hashFuncs[name]
	return fn, ok
}

// HashNames returns the names of all available hash functions (sorted)
func HashNames() []string {
	names := make([]string, 0, len(hashFuncs))
	for name := range hashFuncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Hash implementations
// --------------------------------------------------------------------------

// stackWords is the number of words (tag included) that are encoded without a heap allocation
const stackWords = 16

// appendBytes writes the tag followed by all key words as little endian bytes
func appendBytes(dst []byte, tag Tag, key Key) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(tag))
	for _, w := range key {
		dst = binary.LittleEndian.AppendUint64(dst, w)
	}
	return dst
}

// HashXXH3Words hashes with the seeded XXH3 64-bit variant
func HashXXH3Words(seed uint64, tag Tag, key Key) uint64 {
	var buf [stackWords * 8]byte
	return xxh3.HashSeed(appendBytes(buf[:0], tag, key), seed)
}

// HashXXHashWords hashes with a seeded XXH64 digest
func HashXXHashWords(seed uint64, tag Tag, key Key) uint64 {
	var buf [stackWords * 8]byte
	var d xxhash.Digest
	d.ResetWithSeed(seed)
	_, _ = d.Write(appendBytes(buf[:0], tag, key))
	return d.Sum64()
}

// HashFNV1aWords generates a hash value for a tag and key with a seed.
// FNV-1a alone disperses the high bits poorly for short inputs, so the
// result is passed through a 64-bit finalizer.
func HashFNV1aWords(seed uint64, tag Tag, key Key) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	// Start with the offset combined with our seed for uniqueness
	hash := uint64(offset64) ^ seed

	mixWord := func(w uint64) {
		for i := 0; i < 8; i++ {
			hash ^= w & 0xff
			hash *= prime64
			w >>= 8
		}
	}

	mixWord(uint64(tag))
	for _, w := range key {
		mixWord(w)
	}

	return Avalanche(hash)
}

// Avalanche is the 64-bit finalizer of MurmurHash3 (every input bit affects every output bit)
func Avalanche(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// --------------------------------------------------------------------------
// Seeds
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for the hash distribution of one store
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time, only used if the system has no entropy source
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}
