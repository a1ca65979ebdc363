package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/ledger"
	"github.com/dormbooks/dormbooks/internal/store"
)

type appendEntryRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	Source      string `json:"source"`
	SourceID    string `json:"source_id"`
	Month       string `json:"month"`
	Lines       []struct {
		AccountCode string          `json:"account_code"`
		Debit       decimal.Decimal `json:"debit"`
		Credit      decimal.Decimal `json:"credit"`
		Description string          `json:"description"`
	} `json:"lines"`
}

func (s *Server) appendEntry(w http.ResponseWriter, r *http.Request) {
	var req appendEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	e := &ledger.Entry{
		Description: req.Description,
		Reference:   req.Reference,
		Source:      ledger.Source(req.Source),
		SourceID:    req.SourceID,
		Month:       req.Month,
	}
	if req.Source == "" {
		e.Source = ledger.SourceManual
	}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
			return
		}
		e.Date = d
	}
	for _, l := range req.Lines {
		e.Lines = append(e.Lines, ledger.Line{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		})
	}

	posted, err := s.store.AppendEntry(r.Context(), e)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	entriesPosted.WithLabelValues(string(posted.Source)).Inc()
	writeJSON(w, http.StatusCreated, posted)
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.EntryFilter{
		AccountCode: q.Get("account_code"),
		Source:      ledger.Source(q.Get("source")),
		Status:      ledger.Status(q.Get("status")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return
		}
		filter.To = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	entries, err := s.store.QueryEntries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) reverseEntry(w http.ResponseWriter, r *http.Request) {
	rev, err := s.store.ReverseEntry(r.Context(), chi.URLParam(r, "id"), time.Now().UTC())
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	entriesPosted.WithLabelValues(string(ledger.SourceReversal)).Inc()
	writeJSON(w, http.StatusCreated, rev)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	filter := store.AccountFilter{Type: ledger.AccountType(r.URL.Query().Get("type"))}
	accounts, err := s.store.ListAccounts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAccount(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of: "+err.Error())
		return
	}

	if _, err := s.store.GetAccount(r.Context(), code); err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	balance, err := s.agg.Balance(r.Context(), code, asOf)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_code": code,
		"as_of":        asOf.Format("2006-01-02"),
		"balance":      balance,
	})
}
