package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var balanceAsOf string

var balanceCmd = &cobra.Command{
	Use:   "balance [account-code]",
	Short: "Show the balance of one account, or a full trial balance",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		asOf := time.Now().UTC()
		if balanceAsOf != "" {
			asOf, err = time.Parse("2006-01-02", balanceAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of: %w", err)
			}
		}

		if len(args) == 1 {
			bal, err := a.agg.Balance(cmd.Context(), args[0], asOf)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", args[0], bal.StringFixed(2))
			return nil
		}

		balances, err := a.agg.TrialBalance(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		codes := make([]string, 0, len(balances))
		for code := range balances {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			name := code
			if acct, err := a.store.GetAccount(cmd.Context(), code); err == nil {
				name = acct.Name
			}
			fmt.Printf("%-10s %-28s %12s\n", code, name, balances[code].StringFixed(2))
		}
		return a.agg.CheckIdentity(cmd.Context(), asOf)
	},
}

func init() {
	balanceCmd.Flags().StringVar(&balanceAsOf, "as-of", "", "Balance as of this date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(balanceCmd)
}
