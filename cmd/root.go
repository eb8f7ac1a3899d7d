package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ValentinKolb/hashcons/cmd/bench"
	"github.com/ValentinKolb/hashcons/cmd/stats"
	"github.com/ValentinKolb/hashcons/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "hashcons",
		Short: "sharded structural intern store",
		Long: fmt.Sprintf(`hashcons (v%s)

A sharded, concurrent hash-consing table written in Go. Every shape (a tag plus a
fixed-width key) has at most one live representative, representatives are held
weakly and reclaimed by a pluggable collector.

All flags can also be set as environment variables HASHCONS_<FLAG>
(e.g. HASHCONS_SWEEP_INTERVAL=50ms), .env and .env.local are read on startup.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hashcons",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hashcons v%s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(stats.StatsCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
