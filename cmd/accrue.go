package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var accrueAsOf string

var accrueCmd = &cobra.Command{
	Use:   "accrue",
	Short: "Post all rent obligations due up to a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		asOf := time.Now().UTC()
		if accrueAsOf != "" {
			asOf, err = time.Parse("2006-01-02", accrueAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of: %w", err)
			}
		}

		posted, err := a.accruals.RunCycle(cmd.Context(), asOf)
		if err != nil {
			return err
		}
		fmt.Printf("posted %d accrual(s)\n", posted)
		return nil
	},
}

func init() {
	accrueCmd.Flags().StringVar(&accrueAsOf, "as-of", "", "Accrue up to this date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(accrueCmd)
}
