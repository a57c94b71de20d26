package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/visionvansh/clipifypost-sub001/services"
	"github.com/visionvansh/clipifypost-sub001/storage"
	"github.com/visionvansh/clipifypost-sub001/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := storage.Migrate(rt.db); err != nil {
				return err
			}
			opts.log.Info("✅ Schema migrated")
			return nil
		},
	}
}

func NewApproveMonthCommand(opts *RootOptions) *cobra.Command {
	var month, actor string

	cmd := &cobra.Command{
		Use:   "approve-month",
		Short: "Approve every reel that entered PENDING during a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.reels.BulkApproveForMonth(cmd.Context(), actor, month)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %d reel(s) for %s\n", n, month)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to approve, YYYY-MM")
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the audit log")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func NewRefreshStatsCommand(opts *RootOptions) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "refresh-stats",
		Short: "Recompute stored monthly stats and promote eligible invites",
		RunE: func(cmd *cobra.Command, args []string) error {
			if month == "" {
				month = utils.MonthOf(time.Now().UTC())
			}
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			updated, err := rt.stats.RefreshMonth(cmd.Context(), month)
			if err != nil {
				return err
			}
			promoted, err := rt.invites.PromotePending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d record(s) updated, %d invite(s) promoted\n", month, updated, promoted)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to refresh, YYYY-MM (default current)")
	return cmd
}

func NewSyncInvitesCommand(opts *RootOptions) *cobra.Command {
	var inviter string

	cmd := &cobra.Command{
		Use:   "sync-invites",
		Short: "Deduplicate invites, refresh usernames, counts and promotions",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			var reports []services.SyncReport
			if inviter != "" {
				r, err := rt.invites.SyncInvites(cmd.Context(), inviter)
				if err != nil {
					return err
				}
				reports = append(reports, *r)
			} else if reports, err = rt.invites.SyncAllInvites(cmd.Context()); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().StringVar(&inviter, "inviter", "", "only reconcile this inviter")
	return cmd
}

func NewExportCommand(opts *RootOptions) *cobra.Command {
	var month, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the monthly payout report as CSV",
		Long:  "Writes the report to --out (\"-\" for stdout) or, without --out, uploads it to object storage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if out == "" {
				url, err := rt.exports.Export(cmd.Context(), month)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			}

			rows, err := rt.exports.MonthlyReport(cmd.Context(), month)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := services.WriteReportCSV(w, rows); err != nil {
				return err
			}
			opts.log.Info("📄 Report written", zap.String("month", month), zap.String("out", out), zap.Int("rows", len(rows)))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to export, YYYY-MM")
	cmd.Flags().StringVar(&out, "out", "", "output file, \"-\" for stdout")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
