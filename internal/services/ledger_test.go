package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"montaxi/internal/amqp"
	"montaxi/internal/calc"
	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/settings"
	"montaxi/internal/storage/memory"
	"montaxi/internal/summary"
)

type published struct {
	kind core.Kind
	id   string
	op   string
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	closed bool
}

func (m *mockPublisher) PublishRecordChange(_ context.Context, kind core.Kind, id, op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, published{kind, id, op})
	return nil
}

func (m *mockPublisher) Close() error {
	m.closed = true
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T, policy calc.WithholdingPolicy) (*LedgerService, *mockPublisher) {
	t.Helper()
	pub := &mockPublisher{}
	svc := NewLedgerService(memory.New(), settings.Open("", nil), policy, pub, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc, pub
}

func weekInput(start, unit string) RevenueInput {
	return RevenueInput{
		PeriodStart: start,
		Unit:        unit,
		Driver:      "Tremblay Luc",
		RevenueInput: calc.RevenueInput{
			MeterStart: dec("1000"),
			MeterEnd:   dec("1500"),
			Fuel:       dec("50"),
		},
	}
}

func TestLedgerService_CreateRevenue(t *testing.T) {
	svc, pub := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	res, err := svc.CreateRevenue(ctx, weekInput("2025-03-03", "12"))
	if err != nil {
		t.Fatalf("CreateRevenue() error = %v", err)
	}
	e := res.Entry
	if e.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if e.PeriodEnd != "2025-03-09" || e.MonthKey != "2025-03" || e.Year != "2025" || e.Quarter != "T1" {
		t.Errorf("derived dates = %s %s %s %s", e.PeriodEnd, e.MonthKey, e.Year, e.Quarter)
	}
	// 500 gross, 200 to the driver, 36 withheld, 50 fuel.
	if !e.Gross.Equal(dec("500")) || !e.DriverPay.Equal(dec("200")) || !e.WithholdingTax.Equal(dec("36")) {
		t.Errorf("gross/pay/withholding = %s/%s/%s", e.Gross, e.DriverPay, e.WithholdingTax)
	}
	if !e.NetDueToOwner.Equal(dec("286")) {
		t.Errorf("NetDueToOwner = %s, want 286", e.NetDueToOwner)
	}

	stored, err := svc.GetRevenue(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetRevenue() error = %v", err)
	}
	if !stored.NetDueToOwner.Equal(e.NetDueToOwner) {
		t.Errorf("stored net = %s, want %s", stored.NetDueToOwner, e.NetDueToOwner)
	}

	if len(pub.events) != 1 || pub.events[0] != (published{core.KindRevenue, e.ID, amqp.OpCreate}) {
		t.Errorf("published = %+v", pub.events)
	}
	if got := testutil.ToFloat64(svc.mutations.WithLabelValues("revenue", amqp.OpCreate)); got != 1 {
		t.Errorf("mutation counter = %v, want 1", got)
	}
}

func TestLedgerService_CreateRevenueRejectsDuplicateWeek(t *testing.T) {
	svc, pub := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	if _, err := svc.CreateRevenue(ctx, weekInput("2025-03-03", "12")); err != nil {
		t.Fatalf("first CreateRevenue() error = %v", err)
	}
	_, err := svc.CreateRevenue(ctx, weekInput("2025-03-03", "12"))
	if !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("second CreateRevenue() error = %v, want ErrDuplicate", err)
	}
	if _, err := svc.CreateRevenue(ctx, weekInput("2025-03-03", "14")); err != nil {
		t.Fatalf("other unit same week error = %v", err)
	}

	all, _ := svc.ListRevenues(ctx)
	if len(all) != 2 {
		t.Errorf("stored %d revenues, want 2", len(all))
	}
	if len(pub.events) != 2 {
		t.Errorf("published %d events, want 2", len(pub.events))
	}
}

func TestLedgerService_WithholdingPolicy(t *testing.T) {
	in := weekInput("2025-03-03", "12")
	in.ManualWithholding = dec("40")

	tests := []struct {
		policy calc.WithholdingPolicy
		want   string
	}{
		{calc.WithholdingOverride, "40"},
		{calc.WithholdingRecompute, "36"},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			svc, _ := newService(t, tt.policy)
			res, err := svc.CreateRevenue(context.Background(), in)
			if err != nil {
				t.Fatalf("CreateRevenue() error = %v", err)
			}
			if !res.Entry.WithholdingTax.Equal(dec(tt.want)) {
				t.Errorf("WithholdingTax = %s, want %s", res.Entry.WithholdingTax, tt.want)
			}
		})
	}
}

func TestLedgerService_ValidationLeavesStoreUntouched(t *testing.T) {
	svc, pub := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	in := weekInput("03/03/2025", "12")
	if _, err := svc.CreateRevenue(ctx, in); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("CreateRevenue() error = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateDriver(ctx, core.Driver{FirstName: "Luc"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("CreateDriver() error = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateExpense(ctx, ExpenseInput{Date: "2025-03-03"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("CreateExpense() error = %v, want ErrValidation", err)
	}

	revenues, _ := svc.ListRevenues(ctx)
	drivers, _ := svc.ListDrivers(ctx)
	expenses, _ := svc.ListExpenses(ctx)
	if len(revenues)+len(drivers)+len(expenses) != 0 {
		t.Error("expected nothing to be stored")
	}
	if len(pub.events) != 0 {
		t.Errorf("published %d events, want 0", len(pub.events))
	}
}

func TestLedgerService_Expense(t *testing.T) {
	svc, _ := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	e, err := svc.CreateExpense(ctx, ExpenseInput{
		Date:          "2025-04-15",
		Unit:          "12",
		Category:      "Tires",
		Total:         dec("400"),
		TaxesIncluded: true,
	})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	if !e.TaxA.Equal(dec("17.40")) || !e.TaxB.Equal(dec("34.70")) || !e.AmountExclTax.Equal(dec("347.90")) {
		t.Errorf("split = %s + %s + %s", e.AmountExclTax, e.TaxA, e.TaxB)
	}
	if e.Quarter != "T2" || e.MonthKey != "2025-04" {
		t.Errorf("keys = %s %s", e.Quarter, e.MonthKey)
	}

	updated, err := svc.UpdateExpense(ctx, e.ID, ExpenseInput{Date: "2025-04-15", Total: dec("120"), Category: "Parts"})
	if err != nil {
		t.Fatalf("UpdateExpense() error = %v", err)
	}
	if updated.ID != e.ID || !updated.TaxA.IsZero() || !updated.AmountExclTax.Equal(dec("120")) {
		t.Errorf("updated = %+v", updated)
	}
	all, _ := svc.ListExpenses(ctx)
	if len(all) != 1 {
		t.Errorf("stored %d expenses, want 1", len(all))
	}
}

func TestLedgerService_UpdateAndDeleteUnknown(t *testing.T) {
	svc, pub := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	if _, err := svc.UpdateTaxi(ctx, "missing", core.Taxi{UnitNumber: "7"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateTaxi() error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteDriver(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteDriver() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.UpdateRevenue(ctx, "missing", weekInput("2025-03-03", "12")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateRevenue() error = %v, want ErrNotFound", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("published %d events, want 0", len(pub.events))
	}
}

func TestLedgerService_DriverAndTaxiLifecycle(t *testing.T) {
	svc, pub := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	d, err := svc.CreateDriver(ctx, core.Driver{LastName: "Tremblay", FirstName: "Luc"})
	if err != nil {
		t.Fatalf("CreateDriver() error = %v", err)
	}
	taxi, err := svc.CreateTaxi(ctx, core.Taxi{UnitNumber: "12", DefaultDriver: d.DisplayName()})
	if err != nil {
		t.Fatalf("CreateTaxi() error = %v", err)
	}
	taxi.Plate = "T12345"
	if _, err := svc.UpdateTaxi(ctx, taxi.ID, taxi); err != nil {
		t.Fatalf("UpdateTaxi() error = %v", err)
	}
	got, _ := svc.GetTaxi(ctx, taxi.ID)
	if got.Plate != "T12345" || got.DefaultDriver != "Tremblay Luc" {
		t.Errorf("taxi = %+v", got)
	}
	if err := svc.DeleteDriver(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDriver() error = %v", err)
	}

	wantOps := []string{amqp.OpCreate, amqp.OpCreate, amqp.OpUpdate, amqp.OpDelete}
	if len(pub.events) != len(wantOps) {
		t.Fatalf("published %d events, want %d", len(pub.events), len(wantOps))
	}
	for i, op := range wantOps {
		if pub.events[i].op != op {
			t.Errorf("event %d op = %s, want %s", i, pub.events[i].op, op)
		}
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, pub := newService(t, calc.WithholdingOverride)
	pub.err = errors.New("broker down")

	d, err := svc.CreateDriver(context.Background(), core.Driver{LastName: "Roy"})
	if err != nil {
		t.Fatalf("CreateDriver() error = %v", err)
	}
	if _, err := svc.GetDriver(context.Background(), d.ID); err != nil {
		t.Fatalf("driver not stored: %v", err)
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(), settings.Open("", nil), calc.WithholdingOverride, nil, nil)
	if _, err := svc.CreateTaxi(context.Background(), core.Taxi{UnitNumber: "3"}); err != nil {
		t.Fatalf("CreateTaxi() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestLedgerService_SettingsApplyToLaterComputations(t *testing.T) {
	svc, _ := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	first, err := svc.CreateRevenue(ctx, weekInput("2025-03-03", "12"))
	if err != nil {
		t.Fatalf("CreateRevenue() error = %v", err)
	}

	next := svc.Settings()
	next.Rates.DriverPct = dec("50")
	if err := svc.SaveSettings(next); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	preview := svc.PreviewRevenue(weekInput("2025-03-10", "12"))
	if !preview.Entry.DriverPay.Equal(dec("250")) {
		t.Errorf("preview DriverPay = %s, want 250", preview.Entry.DriverPay)
	}
	stored, _ := svc.GetRevenue(ctx, first.Entry.ID)
	if !stored.DriverPay.Equal(dec("200")) {
		t.Errorf("stored DriverPay = %s, want 200", stored.DriverPay)
	}
}

func TestLedgerService_Reporting(t *testing.T) {
	svc, _ := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	if _, err := svc.CreateRevenue(ctx, weekInput("2025-03-03", "12")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateExpense(ctx, ExpenseInput{Date: "2024-11-02", Total: dec("80"), Category: "Other"}); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.Summary(ctx, "2025", summary.ByMonth)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(sum.Rows) != 1 || sum.Rows[0].Key != "2025-03" {
		t.Fatalf("rows = %+v", sum.Rows)
	}
	if !sum.Totals.NetToOwner.Equal(dec("286")) {
		t.Errorf("NetToOwner = %s, want 286", sum.Totals.NetToOwner)
	}

	audit, err := svc.Audit(ctx, "2025")
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(audit) != 1 || audit[0].Source != summary.SourceFuelWash {
		t.Errorf("audit = %+v", audit)
	}

	years, err := svc.Years(ctx)
	if err != nil {
		t.Fatalf("Years() error = %v", err)
	}
	if len(years) != 2 || years[0] != "2025" || years[1] != "2024" {
		t.Errorf("years = %v", years)
	}
}

func TestLedgerService_CloseClosesPublisher(t *testing.T) {
	svc, pub := newService(t, calc.WithholdingOverride)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !pub.closed {
		t.Error("expected publisher to be closed")
	}
}

func TestLedgerService_ReportsRefreshAfterMutation(t *testing.T) {
	svc, _ := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	if _, err := svc.CreateRevenue(ctx, weekInput("2025-03-03", "12")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Summary(ctx, "2025", summary.ByMonth); err != nil {
		t.Fatal(err)
	}
	if svc.reports.Len() != 1 {
		t.Fatalf("expected summary to be cached, Len() = %d", svc.reports.Len())
	}

	if _, err := svc.CreateRevenue(ctx, weekInput("2025-04-07", "12")); err != nil {
		t.Fatal(err)
	}
	sum, err := svc.Summary(ctx, "2025", summary.ByMonth)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Rows) != 2 {
		t.Fatalf("rows = %+v, want March and April", sum.Rows)
	}

	next := svc.Settings()
	next.Categories = append(next.Categories, "Car wash")
	if err := svc.SaveSettings(next); err != nil {
		t.Fatal(err)
	}
	if svc.reports.Len() != 0 {
		t.Errorf("expected settings change to purge reports, Len() = %d", svc.reports.Len())
	}
}

func TestLedgerService_DriverNames(t *testing.T) {
	svc, _ := newService(t, calc.WithholdingOverride)
	ctx := context.Background()

	for _, d := range []core.Driver{
		{LastName: "Tremblay", FirstName: "Jean"},
		{LastName: "Roy", FirstName: "Luc"},
		{LastName: "Tremblay ", FirstName: " Jean"},
	} {
		if _, err := svc.CreateDriver(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	names, err := svc.DriverNames(ctx)
	if err != nil {
		t.Fatalf("DriverNames() error = %v", err)
	}
	if strings.Join(names, "|") != "Roy Luc|Tremblay Jean" {
		t.Errorf("names = %q", names)
	}
}

func TestLedgerService_LogsSavedRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewJSONHandler(&buf, nil)})
	svc := NewLedgerService(memory.New(), settings.Open("", nil), calc.WithholdingOverride, nil, logger)

	taxi, err := svc.CreateTaxi(context.Background(), core.Taxi{UnitNumber: "12"})
	if err != nil {
		t.Fatal(err)
	}

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e map[string]any
		if json.Unmarshal([]byte(line), &e) == nil && e["msg"] == "Record saved" {
			entry = e
		}
	}
	if entry == nil {
		t.Fatalf("no Record saved line in %s", buf.String())
	}
	if entry[log.FieldRecordID] != taxi.ID || entry[log.FieldKind] != string(core.KindTaxi) || entry[log.FieldOperation] != amqp.OpCreate {
		t.Errorf("log entry = %v", entry)
	}
}
