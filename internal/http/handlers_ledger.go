package http

import (
	"net/http"

	"montaxi/internal/storage"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.ledger.ListExpenses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordsJSON(storage.ExpenseTable, expenses)).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordJSON(storage.ExpenseTable, e)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.ledger.CreateExpense(r.Context(), parseExpense(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(recordJSON(storage.ExpenseTable, e)).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.ledger.UpdateExpense(r.Context(), r.PathValue("id"), parseExpense(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordJSON(storage.ExpenseTable, e)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewExpense shows the tax split of a total without saving it.
func (s *Server) handlePreviewExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(taxSplitJSON(s.ledger.PreviewExpense(parseExpense(p)))).Write(w)
}

func (s *Server) handleListRevenues(w http.ResponseWriter, r *http.Request) {
	revenues, err := s.ledger.ListRevenues(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordsJSON(storage.RevenueTable, revenues)).Write(w)
}

func (s *Server) handleGetRevenue(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.GetRevenue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordJSON(storage.RevenueTable, e)).Write(w)
}

func (s *Server) handleCreateRevenue(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.ledger.CreateRevenue(r.Context(), parseRevenue(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(revenueJSON(res)).Write(w)
}

func (s *Server) handleUpdateRevenue(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.ledger.UpdateRevenue(r.Context(), r.PathValue("id"), parseRevenue(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(revenueJSON(res)).Write(w)
}

func (s *Server) handleDeleteRevenue(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteRevenue(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewRevenue computes a weekly sheet with the current rates
// without saving it.
func (s *Server) handlePreviewRevenue(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(revenueJSON(s.ledger.PreviewRevenue(parseRevenue(p)))).Write(w)
}
