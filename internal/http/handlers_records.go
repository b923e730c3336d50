package http

import (
	"net/http"

	"montaxi/internal/storage"
)

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.ledger.ListDrivers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(driversJSON(drivers)).Write(w)
}

func (s *Server) handleDriverNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.ledger.DriverNames(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string][]string{"names": names}).Write(w)
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := s.ledger.GetDriver(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(driverJSON(d)).Write(w)
}

func (s *Server) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.ledger.CreateDriver(r.Context(), parseDriver(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(driverJSON(d)).Write(w)
}

func (s *Server) handleUpdateDriver(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.ledger.UpdateDriver(r.Context(), r.PathValue("id"), parseDriver(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(driverJSON(d)).Write(w)
}

func (s *Server) handleDeleteDriver(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteDriver(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTaxis(w http.ResponseWriter, r *http.Request) {
	taxis, err := s.ledger.ListTaxis(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordsJSON(storage.TaxiTable, taxis)).Write(w)
}

func (s *Server) handleGetTaxi(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.GetTaxi(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordJSON(storage.TaxiTable, t)).Write(w)
}

func (s *Server) handleCreateTaxi(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.CreateTaxi(r.Context(), parseTaxi(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(recordJSON(storage.TaxiTable, t)).Write(w)
}

func (s *Server) handleUpdateTaxi(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.UpdateTaxi(r.Context(), r.PathValue("id"), parseTaxi(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(recordJSON(storage.TaxiTable, t)).Write(w)
}

func (s *Server) handleDeleteTaxi(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTaxi(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
