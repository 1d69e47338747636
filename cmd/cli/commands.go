package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/offledger/internal/domain"
	"github.com/iho/offledger/internal/infrastructure/auth"
	"github.com/iho/offledger/internal/usecase"
)

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "offledger",
		Short:         "Offline ledger for a single device",
		Long:          `Record credits and debits while offline and reconcile them with the ledger service when connectivity returns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.userID, "user", "", "User id (default $OFFLEDGER_USER_ID)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "Local database path (default $OFFLEDGER_DB_PATH)")
	root.PersistentFlags().StringVar(&flags.serverURL, "url", "", "Ledger service URL (default $OFFLEDGER_SERVER_URL)")
	root.PersistentFlags().StringVar(&flags.token, "token", "", "Bearer token (default $OFFLEDGER_TOKEN)")

	// device commands share one app; token does not need the store
	withApp := func(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(&flags, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return run(cmd, a, args)
		}
	}

	root.AddCommand(
		newInitCmd(withApp),
		newAddCmd(withApp),
		newBalanceCmd(withApp),
		newQueueCmd(withApp),
		newSummaryCmd(withApp),
		newSyncCmd(withApp),
		newWatchCmd(withApp),
		newRetryCmd(withApp),
		newClearFailedCmd(withApp),
		newPurgeCmd(withApp),
		newTokenCmd(&flags),
	)

	return root
}

type appRunner func(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error

func newInitCmd(withApp appRunner) *cobra.Command {
	var (
		opening       string
		createProfile bool
		fetch         bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local wallet",
		Long: `Create the local wallet from an opening balance. With --create-profile the
balance is also opened on the ledger service; with --fetch the authoritative
balance is downloaded instead.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()

			balance, err := decimal.NewFromString(opening)
			if err != nil {
				return fmt.Errorf("invalid opening balance %q: %w", opening, err)
			}

			if createProfile {
				err := a.client.CreateProfile(ctx, a.userID, balance)
				if err != nil && !errors.Is(err, domain.ErrProfileExists) {
					return explain(err)
				}
				fetch = fetch || errors.Is(err, domain.ErrProfileExists)
			}

			if fetch {
				balance, err = a.client.GetBalance(ctx, a.userID)
				if err != nil {
					return explain(err)
				}
			}

			w, err := a.store.SeedWallet(ctx, a.userID, balance)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wallet ready for %s, balance %s\n", w.UserID, w.ShadowBalance.StringFixed(2))
			return nil
		}),
	}

	cmd.Flags().StringVar(&opening, "opening-balance", "0", "Opening balance")
	cmd.Flags().BoolVar(&createProfile, "create-profile", false, "Open the balance on the ledger service too")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Seed from the authoritative balance")

	return cmd
}

func newAddCmd(withApp appRunner) *cobra.Command {
	var (
		description string
		recipient   string
	)

	cmd := &cobra.Command{
		Use:       "add credit|debit AMOUNT",
		Short:     "Record a transaction offline",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.KindCredit), string(domain.KindDebit)},
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.requireWallet(cmd.Context()); err != nil {
				return err
			}

			kind := domain.Kind(strings.ToLower(args[0]))
			if !kind.IsValid() {
				return domain.ErrInvalidKind
			}

			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			input := usecase.CreateTransactionInput{
				UserID:      a.userID,
				Kind:        kind,
				Amount:      amount,
				Description: description,
			}
			if recipient != "" {
				input.RecipientID = &recipient
			}

			t, err := a.store.CreateTransaction(cmd.Context(), input)
			if err != nil {
				return explain(err)
			}

			view, err := a.store.GetShadowBalance(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queued %s %s %s, shadow balance %s\n",
				t.OfflineID, t.Kind, t.Amount.StringFixed(2), view.ShadowBalance.StringFixed(2))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Free-text description")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Counterparty user id")

	return cmd
}

func newBalanceCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the shadow balance",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.requireWallet(cmd.Context()); err != nil {
				return err
			}

			view, err := a.store.GetShadowBalance(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance:          %s\n", view.ShadowBalance.StringFixed(2))
			fmt.Fprintf(out, "Last confirmed:   %s\n", view.CachedBalance.StringFixed(2))
			fmt.Fprintf(out, "Pending debits:   %s\n", view.PendingDebits.StringFixed(2))
			fmt.Fprintf(out, "Pending credits:  %s\n", view.PendingCredits.StringFixed(2))
			fmt.Fprintf(out, "Last sync:        %s\n", formatTime(view.LastSyncSuccess))
			if view.Stale {
				fmt.Fprintln(out, "Warning: balance has not been confirmed recently")
			}
			return nil
		}),
	}
}

func newQueueCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List local entries and their sync status",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			items, err := a.inspector.ListQueue(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			printQueue(cmd.OutOrStdout(), items)
			return nil
		}),
	}
}

func newSummaryCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Summarize the local queue",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			s, err := a.inspector.Summary(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), s, time.Now().UTC())
			return nil
		}),
	}
}

func newSyncCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			res, err := a.engine.SyncOnce(cmd.Context(), a.userID)
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			if res.Empty() {
				fmt.Fprintln(out, "nothing to sync")
				return nil
			}

			fmt.Fprintf(out, "batch %s: %d synced, %d rejected, %d in conflict, balance %s\n",
				res.BatchID, len(res.Synced), len(res.Rejected), len(res.Conflicted), res.NewBalance.StringFixed(2))
			for _, rej := range res.Rejected {
				fmt.Fprintf(out, "  %s: %s\n", rej.OfflineID, rej.Reason)
			}
			return nil
		}),
	}
}

func newWatchCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync in the background until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "syncing %s every %s, press Ctrl+C to stop\n", a.userID, a.cfg.SyncInterval)

			err := a.engine.Run(ctx, a.userID)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return explain(err)
		}),
	}
}

func newRetryCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "retry OFFLINE_ID",
		Short: "Requeue a failed or conflicted entry",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			t, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if t.UserID != a.userID {
				return domain.ErrTransactionNotFound
			}

			t, err = a.store.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s again\n", t.OfflineID, t.SyncStatus)
			return nil
		}),
	}
}

func newClearFailedCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Delete entries parked in conflict",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			n, err := a.store.ClearTerminalFailed(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d conflicted entries\n", n)
			return nil
		}),
	}
}

func newPurgeCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete synced entries past the retention horizon",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			n, err := a.store.PurgeSynced(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged %d synced entries\n", n)
			return nil
		}),
	}
}

func newTokenCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with $JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, userID, ttl, err := tokenSettings(flags)
			if err != nil {
				return err
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(userID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func printQueue(w io.Writer, items []usecase.QueueItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFLINE ID\tKIND\tAMOUNT\tSTATUS\tRETRIES\tCREATED\tDESCRIPTION\tREASON")
	for _, it := range items {
		status := string(it.Status)
		if it.NeedsAttention {
			status += " !"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			it.OfflineID,
			it.Kind,
			it.Amount.StringFixed(2),
			status,
			it.RetryCount,
			it.ClientTimestamp.Format(time.RFC3339),
			truncate(it.Description, 24),
			it.FailureReason,
		)
	}
	_ = tw.Flush()
}

func printSummary(w io.Writer, s *usecase.QueueSummary, now time.Time) {
	fmt.Fprintf(w, "User:             %s\n", s.UserID)
	fmt.Fprintf(w, "Sync phase:       %s\n", s.Phase)
	fmt.Fprintf(w, "Balance:          %s (confirmed %s)\n", s.ShadowBalance.StringFixed(2), s.CachedBalance.StringFixed(2))
	fmt.Fprintf(w, "Outstanding:      %d (debits %s, credits %s)\n", s.Outstanding, s.PendingDebits.StringFixed(2), s.PendingCredits.StringFixed(2))
	for _, status := range []domain.SyncStatus{
		domain.SyncStatusPending,
		domain.SyncStatusSyncing,
		domain.SyncStatusFailed,
		domain.SyncStatusConflict,
		domain.SyncStatusSynced,
	} {
		fmt.Fprintf(w, "  %-14s  %d\n", status, s.Counts[status])
	}
	if s.OldestPending != nil {
		fmt.Fprintf(w, "Oldest pending:   %s ago\n", s.OldestPendingAge(now).Truncate(time.Second))
	}
	fmt.Fprintf(w, "Last sync:        %s\n", formatTime(s.LastSyncSuccess))
	if s.NeedsAttention > 0 {
		fmt.Fprintf(w, "%d entries need attention, see 'offledger queue'\n", s.NeedsAttention)
	}
	if s.Stale {
		fmt.Fprintln(w, "Warning: balance has not been confirmed recently")
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.RFC1123)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
