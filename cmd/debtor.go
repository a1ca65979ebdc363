package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

var debtorCmd = &cobra.Command{
	Use:   "debtor",
	Short: "Manage debtors",
}

var (
	debtorName   string
	debtorRent   string
	debtorMoveIn string
)

var debtorAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a debtor and open their receivable account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rent, err := decimal.NewFromString(debtorRent)
		if err != nil {
			return fmt.Errorf("invalid --rent: %w", err)
		}
		d := &ledger.Debtor{
			ID:          args[0],
			Name:        debtorName,
			MonthlyRent: rent,
			Active:      true,
		}
		if debtorMoveIn != "" {
			d.MoveIn, err = time.Parse("2006-01-02", debtorMoveIn)
			if err != nil {
				return fmt.Errorf("invalid --move-in: %w", err)
			}
		}

		if err := a.store.CreateDebtor(cmd.Context(), d); err != nil {
			return err
		}
		fmt.Printf("created debtor %s (receivable %s)\n", d.ID, d.AccountCode)
		return nil
	},
}

var debtorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List debtors with their outstanding balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		debtors, err := a.store.ListDebtors(cmd.Context(), false)
		if err != nil {
			return err
		}
		for _, d := range debtors {
			full, err := a.store.GetDebtor(cmd.Context(), d.ID)
			if err != nil {
				return err
			}
			outstanding := decimal.Zero
			for _, o := range full.Outstanding() {
				outstanding = outstanding.Add(o.Remaining())
			}
			fmt.Printf("%-12s %-24s rent %10s owes %10s\n",
				d.ID, d.Name, d.MonthlyRent.StringFixed(2), outstanding.StringFixed(2))
		}
		return nil
	},
}

var debtorShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a debtor's financial summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.store.GetDebtor(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		advances, err := a.store.ListAdvances(cmd.Context(), args[0], false)
		if err != nil {
			return err
		}
		summary, err := a.agg.Summarize(cmd.Context(), d, advances, time.Now().UTC())
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	debtorAddCmd.Flags().StringVar(&debtorName, "name", "", "Debtor name (required)")
	debtorAddCmd.Flags().StringVar(&debtorRent, "rent", "", "Monthly rent (required)")
	debtorAddCmd.Flags().StringVar(&debtorMoveIn, "move-in", "", "Move-in date (YYYY-MM-DD)")
	debtorAddCmd.MarkFlagRequired("name")
	debtorAddCmd.MarkFlagRequired("rent")

	debtorCmd.AddCommand(debtorAddCmd, debtorListCmd, debtorShowCmd)
	rootCmd.AddCommand(debtorCmd)
}
