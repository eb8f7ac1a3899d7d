// Package testing provides a reusable conformance suite and benchmarks for
// intern stores, run against every collector implementation.
//
//	func Test(t *testing.T) {
//		interntesting.RunStoreTests(t, "Heap", interntesting.HeapFactory)
//	}
package testing
