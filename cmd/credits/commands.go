package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"toonify/internal/domain"
)

// ledger is the subset of the credit ledger the CLI needs.
type ledger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Grant(ctx context.Context, userID string, amount int, reason string) (int, error)
	Transactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error)
}

type opener func(ctx context.Context) (ledger, io.Closer, error)

func Root(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "credits",
		Short:        "inspect and top up user credit balances",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(grant(open), balance(open), history(open))
	return rootCmd
}

func withLedger(cmd *cobra.Command, open opener, fn func(context.Context, ledger) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	l, closer, err := open(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(ctx, l)
}

func requireUser(user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", errors.New("--user is required")
	}
	return user, nil
}

func grant(open opener) *cobra.Command {
	var (
		user   string
		amount int
		reason string
	)
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "add credits to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireUser(user)
			if err != nil {
				return err
			}
			if amount <= 0 {
				return errors.New("--amount must be positive")
			}
			return withLedger(cmd, open, func(ctx context.Context, l ledger) error {
				remaining, err := l.Grant(ctx, id, amount, reason)
				if err != nil {
					return fmt.Errorf("grant credits: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s, balance %d\n", amount, id, remaining)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().IntVar(&amount, "amount", 0, "credits to add")
	cmd.Flags().StringVar(&reason, "reason", "manual grant", "ledger reason")
	return cmd
}

func balance(open opener) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "print a user's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireUser(user)
			if err != nil {
				return err
			}
			return withLedger(cmd, open, func(ctx context.Context, l ledger) error {
				b, err := l.Balance(ctx, id)
				if err != nil {
					return fmt.Errorf("read balance: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d credits\n", id, b)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	return cmd
}

func history(open opener) *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "list a user's recent ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireUser(user)
			if err != nil {
				return err
			}
			return withLedger(cmd, open, func(ctx context.Context, l ledger) error {
				txs, err := l.Transactions(ctx, id, limit)
				if err != nil {
					return fmt.Errorf("list transactions: %w", err)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tAMOUNT\tREASON\tJOB")
				for _, tx := range txs {
					fmt.Fprintf(tw, "%s\t%+d\t%s\t%s\n", tx.CreatedAt.UTC().Format(time.RFC3339), tx.Amount, tx.Reason, tx.ProviderJobID)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "entries to show")
	return cmd
}
