package server

import (
	"net/http"
)

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of: "+err.Error())
		return
	}

	balances, err := s.agg.TrialBalance(r.Context(), asOf)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	if err := s.agg.CheckIdentity(r.Context(), asOf); err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":    asOf.Format("2006-01-02"),
		"balances": balances,
	})
}

func (s *Server) incomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, err := parsePeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: "+err.Error())
		return
	}

	st, err := s.engine.IncomeStatement(r.Context(), from, to)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) cashFlowStatement(w http.ResponseWriter, r *http.Request) {
	from, to, err := parsePeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: "+err.Error())
		return
	}

	st, err := s.engine.CashFlowStatement(r.Context(), from, to)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of: "+err.Error())
		return
	}

	st, err := s.engine.BalanceSheet(r.Context(), asOf)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
