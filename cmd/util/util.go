package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/hashcons/lib/common"
	"github.com/ValentinKolb/hashcons/lib/intern"
	"github.com/ValentinKolb/hashcons/lib/shape"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cmd")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. HASHCONS_SHARDS)
	EnvPrefix = "hashcons"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the store and collector flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	defaults := intern.DefaultOptions()

	key := "name"
	cmd.PersistentFlags().String(key, defaults.Name, WrapString("Name of the store, used in logs and as metric label"))

	key = "shards"
	cmd.PersistentFlags().Int(key, defaults.NumShards, WrapString("Number of shards, rounded up to a power of two (default is 4*GOMAXPROCS)"))

	key = "min-buckets"
	cmd.PersistentFlags().Int(key, defaults.MinBuckets, WrapString("Initial and minimal number of buckets per shard (power of two)"))

	key = "min-load"
	cmd.PersistentFlags().Float64(key, defaults.MinLoad, WrapString("Lower bound of the load factor (slots per bucket). Shards below it are shrunk when they are adjusted"))

	key = "max-load"
	cmd.PersistentFlags().Float64(key, defaults.MaxLoad, WrapString("Upper bound of the load factor (slots per bucket), must be at least twice the lower bound"))

	key = "hash"
	cmd.PersistentFlags().String(key, defaults.Hash, WrapString(fmt.Sprintf("Hash function (%s). Unknown names fall back to %s with a warning", strings.Join(shape.HashNames(), ", "), shape.DefaultHash)))

	key = "seed"
	cmd.PersistentFlags().Uint64(key, 0, WrapString("Hash seed (0 = random)"))

	key = "sweep-interval"
	cmd.PersistentFlags().Duration(key, defaults.SweepInterval, WrapString("Time between two runs of the background sweeper"))

	key = "sweep-batch"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum number of dirty shards adjusted per sweep (0 = all)"))

	key = "collector"
	cmd.PersistentFlags().String(key, string(common.CollectorHeap), WrapString("Collector backing the store (heap, runtime)"))

	key = "limit"
	cmd.PersistentFlags().Int64(key, 0, WrapString("Upper bound for the bytes accounted by the collector (0 = unlimited)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConfig reads the store configuration from viper and validates it
func GetConfig() (*common.Config, error) {
	collector, err := common.ParseCollectorKind(viper.GetString("collector"))
	if err != nil {
		return nil, err
	}

	conf := &common.Config{
		Name:          viper.GetString("name"),
		Shards:        viper.GetInt("shards"),
		MinBuckets:    viper.GetInt("min-buckets"),
		MinLoad:       viper.GetFloat64("min-load"),
		MaxLoad:       viper.GetFloat64("max-load"),
		Hash:          viper.GetString("hash"),
		Seed:          viper.GetUint64("seed"),
		SweepInterval: viper.GetDuration("sweep-interval"),
		SweepBatch:    viper.GetInt("sweep-batch"),
		Collector:     collector,
		LimitBytes:    viper.GetInt64("limit"),
		LogLevel:      viper.GetString("log-level"),
	}

	if conf.LimitBytes < 0 {
		return nil, fmt.Errorf("invalid limit %d (must not be negative)", conf.LimitBytes)
	}
	if _, err := common.ParseLogLevel(conf.LogLevel); err != nil {
		return nil, err
	}

	return conf, nil
}

// ProcessStoreConfig binds the command flags, reads the configuration and initializes the loggers
func ProcessStoreConfig(cmd *cobra.Command) (*common.Config, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	conf, err := GetConfig()
	if err != nil {
		return nil, err
	}

	if err := common.InitLoggers(conf); err != nil {
		return nil, err
	}
	Logger.Debugf("configuration: %s", conf)

	return conf, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
