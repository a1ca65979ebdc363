package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dormbooks/dormbooks/internal/accrual"
	"github.com/dormbooks/dormbooks/internal/allocator"
	"github.com/dormbooks/dormbooks/internal/config"
	"github.com/dormbooks/dormbooks/internal/events"
	"github.com/dormbooks/dormbooks/internal/events/kafka"
	"github.com/dormbooks/dormbooks/internal/ledger"
	"github.com/dormbooks/dormbooks/internal/reports"
	"github.com/dormbooks/dormbooks/internal/store"
)

var (
	flagConfig string
	flagDB     string
)

var rootCmd = &cobra.Command{
	Use:   "dormbooks",
	Short: "Double-entry ledger and payment allocation for student housing",
	Long:  "Student-housing finance engine: double-entry ledger, FIFO payment allocation against monthly obligations, rent accruals, and accrual/cash-basis reporting.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")
}

func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired core for a command invocation.
type app struct {
	cfg      *config.Config
	store    *store.Store
	chart    *ledger.Chart
	agg      *reports.Aggregator
	engine   *reports.Engine
	alloc    *allocator.Allocator
	accruals *accrual.Engine
	pub      events.Publisher
	log      *slog.Logger
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	chart, err := ledger.LoadChart(cfg.ChartPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.SeedChart(cmd.Context(), chart); err != nil {
		st.Close()
		return nil, err
	}

	var pub events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		pub = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	methods := allocator.DefaultMethods()
	for method, code := range cfg.Methods {
		methods[method] = code
	}

	return &app{
		cfg:      cfg,
		store:    st,
		chart:    chart,
		agg:      reports.NewAggregator(st),
		engine:   reports.NewEngine(st, st, chart),
		alloc:    allocator.New(st, methods, pub, log),
		accruals: accrual.New(st, pub, log),
		pub:      pub,
		log:      log,
	}, nil
}

func (a *app) Close() {
	a.pub.Close()
	a.store.Close()
}
