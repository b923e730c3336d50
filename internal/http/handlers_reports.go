package http

import (
	"bytes"
	"fmt"
	"net/http"

	"montaxi/internal/log"
	"montaxi/internal/report"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, by, err := parseYearAndGranularity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.ledger.Summary(r.Context(), year, by)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(summaryJSON(sum)).Write(w)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.ledger.Audit(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(auditJSON(rows)).Write(w)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.ledger.Years(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string][]string{"years": years}).Write(w)
}

func (s *Server) handleSummaryPDF(w http.ResponseWriter, r *http.Request) {
	year, by, err := parseYearAndGranularity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.ledger.Summary(r.Context(), year, by)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.SummaryPDF(&buf, sum); err != nil {
		writeError(w, r, err)
		return
	}
	s.logRendered(r, "summary.pdf", buf.Len())
	NewResponse().Attachment(contentTypePDF, fmt.Sprintf("summary-%s-%s.pdf", year, by), buf.Bytes()).Write(w)
}

func (s *Server) handleSummaryXLSX(w http.ResponseWriter, r *http.Request) {
	year, by, err := parseYearAndGranularity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.ledger.Summary(r.Context(), year, by)
	if err != nil {
		writeError(w, r, err)
		return
	}
	audit, err := s.ledger.Audit(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.SummaryWorkbook(&buf, sum, audit); err != nil {
		writeError(w, r, err)
		return
	}
	s.logRendered(r, "summary.xlsx", buf.Len())
	NewResponse().Attachment(contentTypeXLSX, fmt.Sprintf("summary-%s-%s.xlsx", year, by), buf.Bytes()).Write(w)
}

func (s *Server) handleRevenueSheetPDF(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.GetRevenue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WeeklySheetPDF(&buf, e); err != nil {
		writeError(w, r, err)
		return
	}
	s.logRendered(r, "sheet.pdf", buf.Len())
	name := safeFilename(fmt.Sprintf("sheet-%s-unit%s.pdf", e.PeriodStart, e.Unit))
	NewResponse().Attachment(contentTypePDF, name, buf.Bytes()).Write(w)
}

func (s *Server) logRendered(r *http.Request, doc string, size int) {
	log.FromContext(r.Context()).DebugContext(r.Context(), "Report rendered",
		log.FieldOperation, log.OpRender, "document", doc, "bytes", size)
}
