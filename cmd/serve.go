package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dormbooks/dormbooks/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := a.cfg.Listen
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := server.New(a.store, a.alloc, a.accruals, a.agg, a.engine, a.chart, a.log, addr)
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
