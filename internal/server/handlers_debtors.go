package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/accrual"
	"github.com/dormbooks/dormbooks/internal/ledger"
)

type createDebtorRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
	MoveIn      string          `json:"move_in"`
}

func (s *Server) createDebtor(w http.ResponseWriter, r *http.Request) {
	var req createDebtorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	d := &ledger.Debtor{
		ID:          req.ID,
		Name:        req.Name,
		MonthlyRent: req.MonthlyRent,
		Active:      true,
	}
	if req.MoveIn != "" {
		t, err := time.Parse("2006-01-02", req.MoveIn)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid move_in: "+err.Error())
			return
		}
		d.MoveIn = t.UTC()
	}

	if err := s.store.CreateDebtor(r.Context(), d); err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) listDebtors(w http.ResponseWriter, r *http.Request) {
	debtors, err := s.store.ListDebtors(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if debtors == nil {
		debtors = []ledger.Debtor{}
	}
	writeJSON(w, http.StatusOK, debtors)
}

func (s *Server) getDebtor(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDebtor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) debtorSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of: "+err.Error())
		return
	}

	d, err := s.store.GetDebtor(r.Context(), id)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	advances, err := s.store.ListAdvances(r.Context(), id, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary, err := s.agg.Summarize(r.Context(), d, advances, asOf)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type paymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Date       string          `json:"date"`
	PaymentRef string          `json:"payment_ref"`
}

func (s *Server) previewPayment(w http.ResponseWriter, r *http.Request) {
	plan, status, err := s.buildPlan(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type commitPaymentRequest struct {
	paymentRequest
	// Plan, when set, commits a previously previewed plan verbatim.
	Plan *ledger.AllocationPlan `json:"plan,omitempty"`
}

func (s *Server) commitPayment(w http.ResponseWriter, r *http.Request) {
	var req commitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	plan := req.Plan
	if plan == nil {
		var err error
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
			return
		}
		plan, err = s.alloc.Preview(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Method, date, req.PaymentRef)
		if err != nil {
			writeError(w, mapError(err), err.Error())
			return
		}
	}

	entry, err := s.alloc.Commit(r.Context(), plan)
	if err != nil {
		if errors.Is(err, ledger.ErrStalePlan) {
			staleCommits.Inc()
		}
		writeError(w, mapError(err), err.Error())
		return
	}
	paymentsAllocated.Inc()
	entriesPosted.WithLabelValues(string(ledger.SourcePayment)).Inc()

	writeJSON(w, http.StatusCreated, map[string]any{
		"plan":  plan,
		"entry": entry,
	})
}

func (s *Server) buildPlan(r *http.Request) (*ledger.AllocationPlan, int, error) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, http.StatusBadRequest, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	plan, err := s.alloc.Preview(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Method, date, req.PaymentRef)
	if err != nil {
		return nil, mapError(err), err
	}
	return plan, http.StatusOK, nil
}

type postRentRequest struct {
	Month string `json:"month"`
}

func (s *Server) postRent(w http.ResponseWriter, r *http.Request) {
	var req postRentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	entry, err := s.accruals.PostRent(r.Context(), chi.URLParam(r, "id"), req.Month)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	entriesPosted.WithLabelValues(string(ledger.SourceInvoice)).Inc()
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) runAccrualCycle(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of: "+err.Error())
		return
	}

	posted, err := s.accruals.RunCycle(r.Context(), asOf)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posted": posted})
}

type postExpenseRequest struct {
	AccountCode string          `json:"account_code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Month       string          `json:"month"`
	DueDay      int             `json:"due_day"`
}

func (s *Server) postExpense(w http.ResponseWriter, r *http.Request) {
	var req postExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	entry, err := s.accruals.PostExpense(r.Context(), accrual.ExpenseParams{
		AccountCode: req.AccountCode,
		Description: req.Description,
		Amount:      req.Amount,
		Month:       req.Month,
		DueDay:      req.DueDay,
	})
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	entriesPosted.WithLabelValues(string(ledger.SourceExpenseAccrual)).Inc()
	writeJSON(w, http.StatusCreated, entry)
}
