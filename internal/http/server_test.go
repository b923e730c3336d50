package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"montaxi/internal/calc"
	"montaxi/internal/services"
	"montaxi/internal/settings"
	"montaxi/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ledger := services.NewLedgerService(memory.New(), settings.Open("", nil), calc.WithholdingOverride, nil, nil)
	srv := NewServer(":0", ledger, nil)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestDriverCRUD(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/drivers", "application/json", `{"last_name":"Tremblay","first_name":"Luc"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}
	created := decode[map[string]string](t, rr)
	id := created["id"]
	if id == "" || created["last_name"] != "Tremblay" || created["display_name"] != "Tremblay Luc" {
		t.Fatalf("created = %v", created)
	}

	rr = do(t, srv, http.MethodPut, "/api/drivers/"+id, "application/x-www-form-urlencoded", "last_name=Tremblay&first_name=Luc&phone=514-555-0101")
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body)
	}
	if got := decode[map[string]string](t, rr); got["phone"] != "514-555-0101" || got["id"] != id {
		t.Errorf("updated = %v", got)
	}

	rr = do(t, srv, http.MethodGet, "/api/drivers", "", "")
	if list := decode[[]map[string]string](t, rr); len(list) != 1 {
		t.Fatalf("list = %v", list)
	}

	if rr = do(t, srv, http.MethodDelete, "/api/drivers/"+id, "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodGet, "/api/drivers/"+id, "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		path  string
		body  string
		field string
	}{
		{"driver without last name", "/api/drivers", `{"first_name":"Luc"}`, "last_name"},
		{"taxi without unit", "/api/taxis", `{"plate":"T1"}`, "unit_number"},
		{"revenue with bad date", "/api/revenues", `{"period_start":"03/03/2025","unit":"12","driver":"X"}`, "period_start"},
		{"expense without amount", "/api/expenses", `{"date":"2025-03-03"}`, "amount"},
		{"malformed json", "/api/drivers", `{"last_name":`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.path, "application/json", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
			}
			if got := decode[map[string]string](t, rr); got["field"] != tt.field {
				t.Errorf("field = %q, want %q", got["field"], tt.field)
			}
		})
	}
}

func TestRevenueLifecycle(t *testing.T) {
	srv := newTestServer(t)
	body := `{"period_start":"2025-03-03","unit":"12","driver":"Tremblay Luc","meter_start":"1 000,00","meter_end":1500,"fuel":"50 $"}`

	rr := do(t, srv, http.MethodPost, "/api/revenues", "application/json", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}
	res := decode[revenueResponse](t, rr)
	if res.Entry["gross"] != "500.00" || res.Entry["net_due_to_owner"] != "286.00" || res.Entry["period_end"] != "2025-03-09" {
		t.Errorf("entry = %v", res.Entry)
	}
	if res.SuggestedWithholding != "36.00" || res.MeterRollback || res.NetStatus != netOwnerDue {
		t.Errorf("flags = %+v", res)
	}

	rr = do(t, srv, http.MethodPost, "/api/revenues", "application/json", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/revenues/"+res.Entry["id"]+"/sheet.pdf", "", "")
	if rr.Code != http.StatusOK || !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("sheet.pdf status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != contentTypePDF {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestDriverNames(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{
		`{"last_name":"Tremblay","first_name":"Jean"}`,
		`{"last_name":"Roy","first_name":"Luc"}`,
		`{"last_name":" Tremblay ","first_name":"Jean"}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/api/drivers", "application/json", body); rr.Code != http.StatusCreated {
			t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/drivers/names", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("names status=%d body=%s", rr.Code, rr.Body)
	}
	got := decode[map[string][]string](t, rr)["names"]
	if strings.Join(got, "|") != "Roy Luc|Tremblay Jean" {
		t.Errorf("names = %q", got)
	}

	for _, d := range decode[[]map[string]string](t, do(t, srv, http.MethodGet, "/api/drivers", "", "")) {
		if d["display_name"] == "" {
			t.Errorf("driver %v has no display_name", d)
		}
	}
}

func TestRevenueDriverCredit(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodPost, "/api/revenues/preview", "application/json",
		`{"period_start":"2025-03-03","unit":"12","driver":"Roy Luc","meter_start":"0","meter_end":"100","card_payments":"200"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status=%d body=%s", rr.Code, rr.Body)
	}
	res := decode[revenueResponse](t, rr)
	if res.NetStatus != netDriverCredit || !strings.HasPrefix(res.Entry["net_due_to_owner"], "-") {
		t.Errorf("preview = %+v", res)
	}
}

func TestRevenuePreviewDoesNotSave(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/revenues/preview", "application/json",
		`{"period_start":"2025-03-03","unit":"12","driver":"X","meter_start":"500","meter_end":"400"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview status=%d body=%s", rr.Code, rr.Body)
	}
	if res := decode[revenueResponse](t, rr); !res.MeterRollback || res.Entry["meter_total"] != "0.00" {
		t.Errorf("preview = %+v", res)
	}
	if list := decode[[]map[string]string](t, do(t, srv, http.MethodGet, "/api/revenues", "", "")); len(list) != 0 {
		t.Errorf("preview stored %d revenues", len(list))
	}
}

func TestExpensePreview(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/expenses/preview", "application/x-www-form-urlencoded", "total=400&taxes_included=on")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	got := decode[taxSplitResponse](t, rr)
	want := taxSplitResponse{AmountExclTax: "347.90", TaxA: "17.40", TaxB: "34.70", AmountInclTax: "400.00"}
	if got != want {
		t.Errorf("split = %+v, want %+v", got, want)
	}
}

func TestSummaryAuditYears(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/revenues", "application/json",
		`{"period_start":"2025-03-03","unit":"12","driver":"X","meter_start":"0","meter_end":"500","fuel":"50"}`)
	do(t, srv, http.MethodPost, "/api/expenses", "application/json",
		`{"date":"2025-05-10","category":"Tires","total":"400","taxes_included":true}`)

	rr := do(t, srv, http.MethodGet, "/api/summary?year=2025&by=quarter", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d body=%s", rr.Code, rr.Body)
	}
	sum := decode[summaryResponse](t, rr)
	if len(sum.Rows) != 2 || sum.Rows[0].Key != "T1" || sum.Rows[1].Key != "T2" {
		t.Fatalf("rows = %+v", sum.Rows)
	}
	if sum.Totals.GarageExpenses != "400.00" {
		t.Errorf("totals = %+v", sum.Totals)
	}

	if rr = do(t, srv, http.MethodGet, "/api/summary?year=2025&by=week", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad granularity status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodGet, "/api/audit?year=25x", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad year status=%d", rr.Code)
	}

	audit := decode[[]auditRowResponse](t, do(t, srv, http.MethodGet, "/api/audit?year=2025", "", ""))
	if len(audit) != 2 || audit[0].Date != "2025-05-10" {
		t.Errorf("audit = %+v", audit)
	}

	years := decode[map[string][]string](t, do(t, srv, http.MethodGet, "/api/years", "", ""))
	if len(years["years"]) == 0 {
		t.Errorf("years = %v", years)
	}

	for _, path := range []string{"/api/reports/summary.pdf?year=2025", "/api/reports/summary.xlsx?year=2025"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
			t.Errorf("%s status=%d", path, rr.Code)
		}
		if !strings.HasPrefix(rr.Header().Get("Content-Disposition"), "attachment;") {
			t.Errorf("%s missing attachment header", path)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPut, "/api/settings", "application/json", `{"pourcent_chauffeur": 50, "categories": ["Tires", "Tires", "Fuel"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rr.Code, rr.Body)
	}
	var doc struct {
		DriverPct  json.Number `json:"driver_pct"`
		CallCost   json.Number `json:"call_cost"`
		Categories []string    `json:"categories"`
	}
	if err := json.Unmarshal(do(t, srv, http.MethodGet, "/api/settings", "", "").Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.DriverPct.String() != "50" || doc.CallCost.String() != "1.05" || len(doc.Categories) != 2 {
		t.Errorf("settings = %+v", doc)
	}

	if rr = do(t, srv, http.MethodPut, "/api/settings", "application/json", `{"driver_pct": 150}`); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid settings status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodPut, "/api/settings", "application/x-www-form-urlencoded", "driver_pct=50"); rr.Code != http.StatusBadRequest {
		t.Errorf("form settings status=%d", rr.Code)
	}
}

func TestSettingsPartialUpdateKeepsOtherValues(t *testing.T) {
	srv := newTestServer(t)

	if rr := do(t, srv, http.MethodPut, "/api/settings", "application/json", `{"categories":["Pneus"],"driver_pct":45}`); rr.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := do(t, srv, http.MethodPut, "/api/settings", "application/json", `{"call_cost":1.10}`); rr.Code != http.StatusOK {
		t.Fatalf("partial put status=%d body=%s", rr.Code, rr.Body)
	}

	var doc struct {
		CallCost   json.Number `json:"call_cost"`
		DriverPct  json.Number `json:"driver_pct"`
		Categories []string    `json:"categories"`
	}
	if err := json.Unmarshal(do(t, srv, http.MethodGet, "/api/settings", "", "").Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.CallCost.String() != "1.1" || doc.DriverPct.String() != "45" {
		t.Errorf("rates = %+v", doc)
	}
	if len(doc.Categories) != 1 || doc.Categories[0] != "Pneus" {
		t.Errorf("categories = %v, want [Pneus]", doc.Categories)
	}
}

func TestMethodNotAllowedAndUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	if rr := do(t, srv, http.MethodPatch, "/api/drivers", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/nothing", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown route status=%d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/taxis", "application/json", `{"unit_number":"12"}`)

	rr := do(t, srv, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`montaxi_http_requests_total{code="201",route="POST /api/taxis"} 1`,
		`montaxi_record_mutations_total{kind="taxi",op="create"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv := newTestServer(t)
	srv.rateLimiter.limit = 2

	for i, want := range []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests} {
		rr := do(t, srv, http.MethodPost, "/api/taxis", "application/json", `{"unit_number":"7"}`)
		if rr.Code != want {
			t.Fatalf("request %d status=%d, want %d", i, rr.Code, want)
		}
	}
	if rr := do(t, srv, http.MethodGet, "/api/taxis", "", ""); rr.Code != http.StatusOK {
		t.Errorf("reads must not be limited, status=%d", rr.Code)
	}
}
