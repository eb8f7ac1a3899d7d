package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/ValentinKolb/hashcons/cmd/util"
	"github.com/ValentinKolb/hashcons/lib/common"
	"github.com/ValentinKolb/hashcons/lib/gc"
	"github.com/ValentinKolb/hashcons/lib/intern"
	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Output formats
const (
	FormatJSON       = "json"
	FormatPrometheus = "prometheus"
	FormatAll        = "all"
)

var (
	StatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Populate a store and print its state",
		Long: `Interns a number of shapes into a new store, keeps every n-th of them alive, optionally
runs a collection and a sweep, and prints the store info (JSON) and metrics (Prometheus text format).`,
		PreRunE: processStatsConfig,
		RunE:    run,
	}
	statsConfig *common.Config
	statsParams = params{}
)

// params are the stats command parameters besides the store configuration
type params struct {
	Count     int
	KeepEvery int
	Collect   bool
	Sweep     bool
	PerShard  bool
	Format    string
}

func init() {
	util.SetupStoreFlags(StatsCmd)

	// add flags
	key := "count"
	StatsCmd.Flags().Int(key, 100000, util.WrapString("Number of shapes to intern"))
	key = "keep-every"
	StatsCmd.Flags().Int(key, 10, util.WrapString("Keep every n-th shape alive during the collection (0 = keep none)"))
	key = "collect"
	StatsCmd.Flags().Bool(key, true, util.WrapString("Run a collection after populating the store"))
	key = "sweep"
	StatsCmd.Flags().Bool(key, true, util.WrapString("Adjust all shards after the collection"))
	key = "per-shard"
	StatsCmd.Flags().Bool(key, false, util.WrapString("Include the state of every shard in the JSON output"))
	key = "format"
	StatsCmd.Flags().String(key, FormatAll, util.WrapString("Output format (json, prometheus, all)"))
}

// processStatsConfig reads the configuration from the command line flags and environment variables
func processStatsConfig(cmd *cobra.Command, _ []string) error {
	conf, err := util.ProcessStoreConfig(cmd)
	if err != nil {
		return err
	}
	statsConfig = conf

	statsParams = params{
		Count:     viper.GetInt("count"),
		KeepEvery: viper.GetInt("keep-every"),
		Collect:   viper.GetBool("collect"),
		Sweep:     viper.GetBool("sweep"),
		PerShard:  viper.GetBool("per-shard"),
		Format:    viper.GetString("format"),
	}
	return statsParams.validate()
}

func (p params) validate() error {
	if p.Count < 0 {
		return fmt.Errorf("invalid count %d (must not be negative)", p.Count)
	}
	if p.KeepEvery < 0 {
		return fmt.Errorf("invalid keep-every %d (must not be negative)", p.KeepEvery)
	}
	switch p.Format {
	case FormatJSON, FormatPrometheus, FormatAll:
		return nil
	default:
		return fmt.Errorf("invalid format %q (expected one of: json, prometheus, all)", p.Format)
	}
}

func run(_ *cobra.Command, _ []string) error {
	s, err := statsConfig.NewStore()
	if err != nil {
		return err
	}
	defer s.Collector().Close()
	defer s.Close()

	return report(os.Stdout, s, statsParams)
}

// report populates s according to p and writes the requested output to w
func report(w io.Writer, s *intern.Store, p params) error {
	kept := populate(s, p)
	if p.Collect {
		collect(s)
	}
	if p.Sweep {
		s.Sweep()
	}
	runtime.KeepAlive(kept)

	if p.Format == FormatJSON || p.Format == FormatAll {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.Info(p.PerShard)); err != nil {
			return fmt.Errorf("failed to encode info: %v", err)
		}
	}
	if p.Format == FormatPrometheus || p.Format == FormatAll {
		s.WriteMetrics(w)
	}
	return nil
}

// populate interns p.Count shapes and returns the ones kept alive
func populate(s *intern.Store, p params) []*intern.Object {
	heap, _ := s.Collector().(*gc.Heap[intern.Object])

	var kept []*intern.Object
	key := make(shape.Key, 2)
	for i := 0; i < p.Count; i++ {
		key[0], key[1] = uint64(i), uint64(i%7)
		obj := s.Intern(shape.Tag(i%4), key, 0, nil)
		if p.KeepEvery > 0 && i%p.KeepEvery == 0 {
			kept = append(kept, obj)
			if heap != nil {
				heap.Root(obj)
			}
		}
	}
	util.Logger.Infof("interned %d shapes, keeping %d alive", p.Count, len(kept))
	return kept
}

// collect runs a collection pass and waits for the reclaim notifications
func collect(s *intern.Store) {
	if heap, ok := s.Collector().(*gc.Heap[intern.Object]); ok {
		stats := heap.Collect()
		util.Logger.Infof("collection %d: %d reclaimed, %d vetoed, %d bytes freed",
			stats.Generation, stats.Reclaimed, stats.Vetoed, stats.FreedBytes)
		return
	}

	runtime.GC()
	runtime.GC()
	util.Logger.Infof("runtime collection done (generation %d)", s.Collector().Generation())
}
