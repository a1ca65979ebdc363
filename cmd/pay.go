package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	payAmount  string
	payMethod  string
	payDate    string
	payRef     string
	payPreview bool
)

var payCmd = &cobra.Command{
	Use:   "pay <debtor-id>",
	Short: "Record a payment and allocate it to the oldest unpaid months",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		amount, err := decimal.NewFromString(payAmount)
		if err != nil {
			return fmt.Errorf("invalid --amount: %w", err)
		}
		date := time.Now().UTC()
		if payDate != "" {
			date, err = time.Parse("2006-01-02", payDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
		}

		if payPreview {
			plan, err := a.alloc.Preview(cmd.Context(), args[0], amount, payMethod, date, payRef)
			if err != nil {
				return err
			}
			return printJSON(plan)
		}

		plan, entry, err := a.alloc.Allocate(cmd.Context(), args[0], amount, payMethod, date, payRef)
		if err != nil {
			return err
		}
		for _, s := range plan.Slices {
			fmt.Printf("%s %-9s %10s -> %s\n", s.Month, s.Kind, s.Amount.StringFixed(2), s.NewStatus)
		}
		if plan.Advance.IsPositive() {
			fmt.Printf("advance %10s -> %s\n", plan.Advance.StringFixed(2), plan.AdvanceMonth)
		}
		fmt.Printf("posted entry %s\n", entry.TransactionID)
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	payCmd.Flags().StringVar(&payAmount, "amount", "", "Payment amount (required)")
	payCmd.Flags().StringVar(&payMethod, "method", "cash", "Payment method (cash, bank, transfer, mobile_money)")
	payCmd.Flags().StringVar(&payDate, "date", "", "Payment date (YYYY-MM-DD, default today)")
	payCmd.Flags().StringVar(&payRef, "ref", "", "Payment reference for idempotency (generated if empty)")
	payCmd.Flags().BoolVar(&payPreview, "preview", false, "Show the allocation plan without committing")
	payCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(payCmd)
}
