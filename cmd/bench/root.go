package bench

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/hashcons/cmd/util"
	"github.com/ValentinKolb/hashcons/lib/common"
	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/intern"
	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for intern stores",
		Long:    `Runs a set of in-process workloads (hit, miss, contended, lookup, kind, churn) against a freshly created store for each workload and prints the throughput.`,
		RunE:    run,
		PreRunE: processBenchConfig,
	}
	benchConfig       *common.Config
	benchNumThreads   = 10
	benchKeySpread    = 1 << 14
	benchCollectEvery = 1 << 14
	benchSkip         = make([]string, 0)
)

func init() {
	util.SetupStoreFlags(BenchCmd)

	// add flags
	key := "skip"
	BenchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. miss,churn)"))
	key = "threads"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per GOMAXPROCS to use for the benchmark"))
	key = "keys"
	BenchCmd.Flags().Int(key, 1<<14, util.WrapString("How many different shapes to use for the hit, lookup and kind tests"))
	key = "collect-every"
	BenchCmd.Flags().Int(key, 1<<14, util.WrapString("Operations between two explicit collections in the churn test (heap collector only)"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	conf, err := util.ProcessStoreConfig(cmd)
	if err != nil {
		return err
	}
	benchConfig = conf

	// Read the configuration from the command line flags and environment variables
	benchKeySpread = viper.GetInt("keys")
	benchNumThreads = viper.GetInt("threads")
	benchCollectEvery = viper.GetInt("collect-every")
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	if benchKeySpread <= 0 || benchNumThreads <= 0 || benchCollectEvery <= 0 {
		return fmt.Errorf("keys, threads and collect-every must be positive")
	}
	return nil
}

// workload is one benchmark
type workload struct {
	name string
	fn   func(b *testing.B, s *intern.Store)
}

var workloads = []workload{
	{"hit", benchHit},
	{"miss", benchMiss},
	{"contended", benchContended},
	{"lookup", benchLookup},
	{"kind", benchKind},
	{"churn", benchChurn},
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for intern stores")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(benchConfig.String())
	fmt.Printf("Threads: %d x GOMAXPROCS (%d)\n", benchNumThreads, runtime.GOMAXPROCS(0))
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	var benchErr error

	for _, w := range workloads {
		if shouldSkip(w.name) {
			results[w.name] = testing.BenchmarkResult{}
			printResult(w.name, testing.BenchmarkResult{})
			continue
		}

		result := testing.Benchmark(func(b *testing.B) {
			s, err := benchConfig.NewStore()
			if err != nil {
				benchErr = err
				b.SkipNow()
			}
			b.Cleanup(func() {
				s.Close()
				s.Collector().Close()
			})

			b.SetParallelism(benchNumThreads)
			w.fn(b, s)
		})
		if benchErr != nil {
			return benchErr
		}

		results[w.name] = result
		printResult(w.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, benchConfig); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Workloads
// --------------------------------------------------------------------------

// key returns the key of shape i
func key(dst shape.Key, i int) shape.Key {
	return append(dst[:0], uint64(i), uint64(i)*0x9e3779b97f4a7c15)
}

// populate interns benchKeySpread shapes of tag and keeps them alive
func populate(s *intern.Store, tag shape.Tag) []*intern.Object {
	heap, _ := s.Collector().(*gc.Heap[intern.Object])

	objs := make([]*intern.Object, benchKeySpread)
	buf := make(shape.Key, 0, 2)
	for i := range objs {
		buf = key(buf, i)
		objs[i] = s.Intern(tag, buf, 0, nil)
		if heap != nil {
			heap.Root(objs[i])
		}
	}
	return objs
}

// collect runs a collection pass
func collect(s *intern.Store) {
	if heap, ok := s.Collector().(*gc.Heap[intern.Object]); ok {
		heap.Collect()
		return
	}
	runtime.GC()
}

func benchHit(b *testing.B, s *intern.Store) {
	objs := populate(s, 1)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		buf := make(shape.Key, 0, 2)
		counter := 0
		for pb.Next() {
			buf = key(buf, counter%benchKeySpread)
			s.Intern(1, buf, 0, nil)
			counter++
		}
	})
	b.StopTimer()
	runtime.KeepAlive(objs)
}

func benchMiss(b *testing.B, s *intern.Store) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		buf := make(shape.Key, 0, 2)
		for pb.Next() {
			buf = key(buf, int(counter.Add(1)))
			s.Intern(2, buf, 0, nil)
		}
	})
}

func benchContended(b *testing.B, s *intern.Store) {
	obj := s.Intern(3, shape.Words(1, 2), 0, nil)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		buf := shape.Words(1, 2)
		for pb.Next() {
			s.Intern(3, buf, 0, nil)
		}
	})
	b.StopTimer()
	runtime.KeepAlive(obj)
}

func benchLookup(b *testing.B, s *intern.Store) {
	objs := populate(s, 4)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		buf := make(shape.Key, 0, 2)
		counter := 0
		for pb.Next() {
			// every second lookup misses
			buf = key(buf, counter%(2*benchKeySpread))
			s.Lookup(4, buf)
			counter++
		}
	})
	b.StopTimer()
	runtime.KeepAlive(objs)
}

// pair is the typed key of the kind test
type pair struct {
	a, b uint64
}

func (p pair) AppendWords(dst shape.Key) shape.Key {
	return append(dst, p.a, p.b)
}

func benchKind(b *testing.B, s *intern.Store) {
	pairs := intern.NewKind(s, 5, false, func(p pair) uint64 {
		return p.a + p.b
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			i := uint64(counter % benchKeySpread)
			pairs.Make(pair{i, i + 1})
			counter++
		}
	})
}

func benchChurn(b *testing.B, s *intern.Store) {
	explicit := gc.Supports(s.Collector(), gc.CapExplicitCollect)
	var ops atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		buf := make(shape.Key, 0, 2)
		for pb.Next() {
			n := ops.Add(1)
			buf = key(buf, int(n%int64(4*benchKeySpread)))
			s.Intern(6, buf, 0, nil)
			if explicit && n%int64(benchCollectEvery) == 0 {
				collect(s)
			}
		}
	})
	b.StopTimer()

	info := s.Info(false)
	util.Logger.Debugf("churn: %d reclaims, %d purged, %d resizes, %d live", info.Reclaims, info.Purged, info.Resizes, info.Live)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range benchSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.Config) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Collector", "Shards", "MinBuckets", "MinLoad", "MaxLoad", "Hash",
		"Threads", "GOMAXPROCS", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results in workload order
	for _, w := range workloads {
		result, ok := results[w.name]
		if !ok {
			continue
		}

		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			w.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			string(config.Collector),
			strconv.Itoa(config.Shards),
			strconv.Itoa(config.MinBuckets),
			strconv.FormatFloat(config.MinLoad, 'f', -1, 64),
			strconv.FormatFloat(config.MaxLoad, 'f', -1, 64),
			config.Hash,
			strconv.Itoa(benchNumThreads),
			strconv.Itoa(runtime.GOMAXPROCS(0)),
			strconv.Itoa(benchKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", w.name, err)
		}
	}

	return nil
}
