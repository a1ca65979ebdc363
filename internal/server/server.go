package server

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dormbooks/dormbooks/internal/accrual"
	"github.com/dormbooks/dormbooks/internal/allocator"
	"github.com/dormbooks/dormbooks/internal/ledger"
	"github.com/dormbooks/dormbooks/internal/reports"
	"github.com/dormbooks/dormbooks/internal/store"
)

// Server is the JSON surface consumed by the housing office frontend. It is
// a thin shell: all invariants live in the store and the engines.
type Server struct {
	store    *store.Store
	alloc    *allocator.Allocator
	accruals *accrual.Engine
	agg      *reports.Aggregator
	engine   *reports.Engine
	chart    *ledger.Chart
	log      *slog.Logger
	router   chi.Router
	addr     string
}

func New(st *store.Store, alloc *allocator.Allocator, accruals *accrual.Engine, agg *reports.Aggregator, engine *reports.Engine, chart *ledger.Chart, log *slog.Logger, addr string) *Server {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{
		store:    st,
		alloc:    alloc,
		accruals: accruals,
		agg:      agg,
		engine:   engine,
		chart:    chart,
		log:      log,
		router:   r,
		addr:     addr,
	}

	r.Use(s.requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		// Ledger
		r.Post("/entries", s.appendEntry)
		r.Get("/entries", s.listEntries)
		r.Get("/entries/{id}", s.getEntry)
		r.Post("/entries/{id}/reverse", s.reverseEntry)

		// Accounts
		r.Get("/accounts", s.listAccounts)
		r.Get("/accounts/{code}", s.getAccount)
		r.Get("/accounts/{code}/balance", s.accountBalance)

		// Debtors and payments
		r.Post("/debtors", s.createDebtor)
		r.Get("/debtors", s.listDebtors)
		r.Get("/debtors/{id}", s.getDebtor)
		r.Get("/debtors/{id}/summary", s.debtorSummary)
		r.Post("/debtors/{id}/payments/preview", s.previewPayment)
		r.Post("/debtors/{id}/payments", s.commitPayment)
		r.Post("/debtors/{id}/accruals", s.postRent)

		// Accrual cycle
		r.Post("/accruals/run", s.runAccrualCycle)
		r.Post("/accruals/expense", s.postExpense)

		// Reports
		r.Get("/reports/trial-balance", s.trialBalance)
		r.Get("/reports/income-statement", s.incomeStatement)
		r.Get("/reports/cash-flow", s.cashFlowStatement)
		r.Get("/reports/balance-sheet", s.balanceSheet)
	})

	r.Handle("/metrics", promhttp.Handler())

	return s
}

func (s *Server) ListenAndServe() error {
	s.log.Info("dormbooks server listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("dormbooks server listening", "addr", ln.Addr().String())
	return http.Serve(ln, s.router)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
