package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

var (
	reportFrom string
	reportTo   string
	reportAsOf string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate financial statements",
}

// reportPeriod resolves --from/--to, defaulting to the current month.
func reportPeriod() (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	var err error
	if reportFrom != "" {
		from, err = time.Parse("2006-01-02", reportFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if reportTo != "" {
		to, err = time.Parse("2006-01-02", reportTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return from, to, nil
}

func reportDate() (time.Time, error) {
	if reportAsOf == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", reportAsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of: %w", err)
	}
	return t, nil
}

var incomeCmd = &cobra.Command{
	Use:   "income",
	Short: "Accrual-basis income statement for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		from, to, err := reportPeriod()
		if err != nil {
			return err
		}
		st, err := a.engine.IncomeStatement(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

var cashflowCmd = &cobra.Command{
	Use:   "cashflow",
	Short: "Cash-basis cash flow statement for a period",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		from, to, err := reportPeriod()
		if err != nil {
			return err
		}
		st, err := a.engine.CashFlowStatement(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

var balanceSheetCmd = &cobra.Command{
	Use:   "balance-sheet",
	Short: "Cash-basis balance sheet as of a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		asOf, err := reportDate()
		if err != nil {
			return err
		}
		st, err := a.engine.BalanceSheet(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

var trialBalanceCmd = &cobra.Command{
	Use:   "trial-balance",
	Short: "Signed balance of every account, with the identity check",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		asOf, err := reportDate()
		if err != nil {
			return err
		}
		balances, err := a.agg.TrialBalance(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		if err := a.agg.CheckIdentity(cmd.Context(), asOf); err != nil {
			var ce *ledger.ConsistencyError
			if !errors.As(err, &ce) {
				return err
			}
			fmt.Printf("WARNING: %v\n", ce)
		}
		return printJSON(balances)
	},
}

func init() {
	for _, c := range []*cobra.Command{incomeCmd, cashflowCmd} {
		c.Flags().StringVar(&reportFrom, "from", "", "Period start (YYYY-MM-DD, default first of month)")
		c.Flags().StringVar(&reportTo, "to", "", "Period end (YYYY-MM-DD inclusive, default end of month)")
	}
	for _, c := range []*cobra.Command{balanceSheetCmd, trialBalanceCmd} {
		c.Flags().StringVar(&reportAsOf, "as-of", "", "Report date (YYYY-MM-DD, default today)")
	}

	reportCmd.AddCommand(incomeCmd, cashflowCmd, balanceSheetCmd, trialBalanceCmd)
	rootCmd.AddCommand(reportCmd)
}
