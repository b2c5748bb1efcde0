// Command picks lists snapshot files and prints ranked picks, either from
// the configured source directly or through a running picks-server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"stockpicks/internal/config"
	"stockpicks/internal/source"
	"stockpicks/internal/util"
	"stockpicks/pkg/stockpicks"
)

var (
	flagConfig  string
	flagServer  string
	flagJSON    bool
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "picks",
	Short: "Browse daily stock picks",
	Long: `Browse daily stock-pick snapshots and their ranked upside.

Without --server the catalog and snapshots are read straight from the
configured source. With --server they come from a running picks-server.

Examples:
  picks dates
  picks candidates --date 2024-05-01
  picks rank --date 2024-05-01 --json
  picks rank --server http://localhost:8080`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default $PICKS_CONFIG or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "picks-server base URL")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print JSON")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "overall request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles what every subcommand needs.
type env struct {
	cfg    *config.Config
	src    source.Source      // nil in --server mode
	client *stockpicks.Client // nil in local mode
	log    *slog.Logger
	out    io.Writer
}

func setup(cmd *cobra.Command) (*env, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	e := &env{out: cmd.OutOrStdout()}

	if flagServer != "" {
		e.client = stockpicks.NewClient(flagServer)
		e.log = util.Discard()
		return e, ctx, cancel, nil
	}

	if err := config.LoadEnv(); err != nil {
		cancel()
		return nil, nil, nil, err
	}
	path := flagConfig
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	e.cfg = cfg

	// Logs go to stderr so stdout stays clean for --json.
	e.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: util.ParseLevel(cfg.Logging.Level)}))
	e.src, err = source.New(cfg.Source, e.log)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return e, ctx, cancel, nil
}

func (e *env) today() string {
	if e.cfg == nil {
		return ""
	}
	loc, err := util.LoadLocation(e.cfg.Timezone)
	if err != nil {
		e.log.Warn("falling back to local time", "error", err)
		loc = time.Local
	}
	return util.Today(loc)
}

func (e *env) printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = e.out.Write(pretty.Pretty(data))
	return err
}
