package intern_test

import (
	"testing"

	interntesting "github.com/ValentinKolb/hashcons/lib/intern/testing"
)

func Test(t *testing.T) {
	interntesting.RunStoreTests(t, "Heap", interntesting.HeapFactory)
	interntesting.RunStoreTests(t, "Runtime", interntesting.RuntimeFactory)
}

func Benchmark(b *testing.B) {
	interntesting.RunStoreBenchmarks(b, "Heap", interntesting.HeapFactory)
	interntesting.RunStoreBenchmarks(b, "Runtime", interntesting.RuntimeFactory)
}
