// Command annstore manages persistent ANN indexes from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/annstore"
	"github.com/hupe1980/annstore/config"
)

var (
	cfgFile  string
	dir      string
	source   string
	purpose  string
	dim      int
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "annstore",
	Short: "Maintain and query persistent vector similarity indexes",
	Long: `annstore keeps one HNSW graph per (source, purpose, dimension) key in a
storage directory and offers upsert, rebuild and top-k search over it.

Items are read as JSON lines: {"label": 1, "vector": [0.1, 0.2, ...]}`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "", "index directory (overrides config and ANN_STORE_DIR)")
	rootCmd.PersistentFlags().StringVar(&source, "source", "", "embedding source, e.g. the model name")
	rootCmd.PersistentFlags().StringVar(&purpose, "purpose", "", "purpose tag, e.g. RETRIEVAL_DOCUMENT")
	rootCmd.PersistentFlags().IntVar(&dim, "dim", 0, "vector dimension")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newUpsertCmd(),
		newRebuildCmd(),
		newSearchCmd(),
		newExistsCmd(),
		newStatsCmd(),
		newDeleteCmd(),
		newDropCmd(),
	)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		cfg.Dir = dir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func indexKey() (annstore.IndexKey, error) {
	return annstore.NewIndexKey(source, purpose, dim)
}

// withManager opens a Manager from the configuration, runs fn and closes it.
func withManager(ctx context.Context, fn func(m *annstore.Manager, key annstore.IndexKey) error) (err error) {
	key, err := indexKey()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.Options(ctx)
	if err != nil {
		return err
	}

	m, err := annstore.New(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(m, key)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
