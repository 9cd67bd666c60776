package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mutdb/internal/model"
)

func newUpsertCmd(opts *rootOptions) *cobra.Command {
	var row model.Account

	cmd := &cobra.Command{
		Use:     "upsert",
		Short:   "Insert or replace an account",
		Example: `  mutdb upsert --id acc-1 --amount 100 --currency EUR`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(rs rowStore) error {
				if err := rs.Upsert(cmd.Context(), row); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), row)
			})
		},
	}

	cmd.Flags().StringVar(&row.ID, "id", "", "account id")
	cmd.Flags().Int64Var(&row.Amount, "amount", 0, "amount")
	cmd.Flags().StringVar(&row.Currency, "currency", "", "currency code")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete accounts by id; unknown ids are ignored",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(rs rowStore) error {
				if err := rs.Delete(cmd.Context(), args...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d id(s)\n", len(args))
				return nil
			})
		},
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the live account stored under id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(rs rowStore) error {
				row, err := rs.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), row)
			})
		},
	}
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		f                    model.Filter
		minAmount, maxAmount int64
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List live accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min") {
				f.Min = &minAmount
			}
			if cmd.Flags().Changed("max") {
				f.Max = &maxAmount
			}

			return opts.withStore(func(rs rowStore) error {
				rows, err := rs.Scan(cmd.Context(), f)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rows)
			})
		},
	}

	cmd.Flags().StringVar(&f.Currency, "currency", "", "only this currency")
	cmd.Flags().Int64Var(&minAmount, "min", 0, "minimum amount (inclusive)")
	cmd.Flags().Int64Var(&maxAmount, "max", 0, "maximum amount (inclusive)")

	return cmd
}

func newFlushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Rewrite the snapshot and truncate the commit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(rs rowStore) error {
				if err := rs.Flush(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "flushed")
				return nil
			})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(rs rowStore) error {
				stats, err := rs.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}
