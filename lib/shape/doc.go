// Package shape defines what makes two interned values "the same": a small
// integer Tag naming the kind of value and a Key of machine words encoding the
// payload that determines identity.
//
// The package focuses on:
//   - Canonical keys: a Key is compared word for word, so an encoding must write
//     every word deterministically. Go words carry no padding, struct payloads are
//     flattened into words by an Encoder.
//   - Hashing: a HashFunc mixes a seed, the tag and all key words into one 64-bit
//     value with good dispersion over the full word. The intern table selects the
//     shard from the high bits and the bucket from the low bits of this value.
//   - Named hash functions: "xxh3" (default), "xxhash" and "fnv1a" can be chosen
//     at process start via LookupHash. The choice affects distribution quality only,
//     never correctness.
//
// All functions in this package are pure and safe for concurrent use.
package shape
