package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mutdb/internal/accounts"
	apihttp "mutdb/internal/http"
	"mutdb/internal/model"
	"mutdb/pkg/config"
	"mutdb/pkg/store"
	"mutdb/pkg/types"
)

// rowStore is implemented by the local account service and the HTTP client.
type rowStore interface {
	Upsert(ctx context.Context, rows ...model.Account) error
	Delete(ctx context.Context, ids ...types.RowID) error
	Get(ctx context.Context, id types.RowID) (model.Account, error)
	Scan(ctx context.Context, f model.Filter) ([]model.Account, error)
	Flush(ctx context.Context) error
	Stats(ctx context.Context) (store.Stats, error)
	Close() error
}

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Dir        string
	Remote     string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "mutdb",
		Short:        "Crash-durable mutable store over an in-memory columnar table",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(opts.ConfigPath, opts.Dir)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			initLogger(&cfg, cmd.ErrOrStderr())
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.yaml", "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "store directory (overrides store.path)")
	cmd.PersistentFlags().StringVar(&opts.Remote, "remote", "", "base URL of a running mutdb server")

	cmd.AddCommand(
		newServeCmd(opts),
		newUpsertCmd(opts),
		newDeleteCmd(opts),
		newGetCmd(opts),
		newScanCmd(opts),
		newFlushCmd(opts),
		newStatsCmd(opts),
		newBenchCmd(opts),
	)

	return cmd
}

// open returns the remote client when --remote is set, the local store otherwise.
func (o *rootOptions) open() (rowStore, error) {
	if o.Remote != "" {
		return apihttp.NewClient(o.Remote), nil
	}
	return accounts.Open(o.cfg.Store,
		store.WithLogger(slog.Default()),
	)
}

// withStore opens the store, runs fn and closes the store.
func (o *rootOptions) withStore(fn func(rs rowStore) error) (err error) {
	rs, err := o.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rs.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(rs)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
