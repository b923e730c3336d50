package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"montaxi/internal/amqp"
	"montaxi/internal/cache"
	"montaxi/internal/calc"
	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/settings"
	"montaxi/internal/storage"
	"montaxi/internal/summary"
)

type (
	// Publisher announces persisted mutations to other processes.
	Publisher interface {
		PublishRecordChange(ctx context.Context, kind core.Kind, id, op string) error
	}

	// SettingsStore provides the current rates and persists new ones.
	SettingsStore interface {
		Current() settings.Settings
		Save(settings.Settings) error
	}
)

// ExpenseInput is an expense as entered: one total and whether it includes taxes.
type ExpenseInput struct {
	Date          string
	Unit          string
	Driver        string
	Category      string
	Details       string
	Total         decimal.Decimal
	TaxesIncluded bool
}

// RevenueInput is a weekly sheet as entered.
type RevenueInput struct {
	PeriodStart string
	Unit        string
	Driver      string
	calc.RevenueInput
}

// RevenueResult pairs the stored entry with the flags of its computation.
type RevenueResult struct {
	Entry     core.RevenueEntry
	Breakdown calc.RevenueBreakdown
}

// LedgerService validates input, computes derived amounts, persists records
// and announces each mutation. Announcements are best effort.
type LedgerService struct {
	store     storage.Store
	settings  SettingsStore
	policy    calc.WithholdingPolicy
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time

	// reports holds summaries and audits; any mutation purges it.
	reports   *cache.LRU[any]
	mutations *prometheus.CounterVec
}

const (
	reportCacheSize = 32
	reportCacheTTL  = 30 * time.Second
)

func NewLedgerService(store storage.Store, st SettingsStore, policy calc.WithholdingPolicy, publisher Publisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		settings:  st,
		policy:    policy,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
		reports:   cache.New[any](reportCacheSize, reportCacheTTL),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "montaxi_record_mutations_total",
			Help: "Persisted record mutations by collection and operation.",
		}, []string{"kind", "op"}),
	}
}

// Collectors exposes the service metrics for registration.
func (s *LedgerService) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.mutations}
}

func (s *LedgerService) Settings() settings.Settings { return s.settings.Current() }

// SaveSettings replaces the rates and categories. Records already stored
// keep the amounts they were computed with.
func (s *LedgerService) SaveSettings(next settings.Settings) error {
	if err := s.settings.Save(next); err != nil {
		return err
	}
	s.reports.Purge()
	return nil
}

// Drivers

func (s *LedgerService) ListDrivers(ctx context.Context) ([]core.Driver, error) {
	return s.store.Drivers().List(ctx)
}

func (s *LedgerService) GetDriver(ctx context.Context, id string) (core.Driver, error) {
	return s.store.Drivers().Get(ctx, id)
}

// DriverNames lists the display names other records refer to drivers by,
// sorted and without duplicates.
func (s *LedgerService) DriverNames(ctx context.Context) ([]string, error) {
	drivers, err := s.store.Drivers().List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(drivers))
	names := make([]string, 0, len(drivers))
	for _, d := range drivers {
		name := d.DisplayName()
		if _, ok := seen[name]; ok || name == "" {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *LedgerService) CreateDriver(ctx context.Context, d core.Driver) (core.Driver, error) {
	d.ID = uuid.New().String()
	return d, s.save(ctx, d.Validate, func() error { return s.store.Drivers().Put(ctx, d) }, core.KindDriver, d.ID, amqp.OpCreate)
}

func (s *LedgerService) UpdateDriver(ctx context.Context, id string, d core.Driver) (core.Driver, error) {
	if _, err := s.store.Drivers().Get(ctx, id); err != nil {
		return core.Driver{}, err
	}
	d.ID = id
	return d, s.save(ctx, d.Validate, func() error { return s.store.Drivers().Put(ctx, d) }, core.KindDriver, id, amqp.OpUpdate)
}

func (s *LedgerService) DeleteDriver(ctx context.Context, id string) error {
	return s.remove(ctx, s.store.Drivers().Delete, core.KindDriver, id)
}

// Taxis

func (s *LedgerService) ListTaxis(ctx context.Context) ([]core.Taxi, error) {
	return s.store.Taxis().List(ctx)
}

func (s *LedgerService) GetTaxi(ctx context.Context, id string) (core.Taxi, error) {
	return s.store.Taxis().Get(ctx, id)
}

func (s *LedgerService) CreateTaxi(ctx context.Context, t core.Taxi) (core.Taxi, error) {
	t.ID = uuid.New().String()
	return t, s.save(ctx, t.Validate, func() error { return s.store.Taxis().Put(ctx, t) }, core.KindTaxi, t.ID, amqp.OpCreate)
}

func (s *LedgerService) UpdateTaxi(ctx context.Context, id string, t core.Taxi) (core.Taxi, error) {
	if _, err := s.store.Taxis().Get(ctx, id); err != nil {
		return core.Taxi{}, err
	}
	t.ID = id
	return t, s.save(ctx, t.Validate, func() error { return s.store.Taxis().Put(ctx, t) }, core.KindTaxi, id, amqp.OpUpdate)
}

func (s *LedgerService) DeleteTaxi(ctx context.Context, id string) error {
	return s.remove(ctx, s.store.Taxis().Delete, core.KindTaxi, id)
}

// Expenses

func (s *LedgerService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.store.Expenses().List(ctx)
}

func (s *LedgerService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.store.Expenses().Get(ctx, id)
}

// PreviewExpense splits the total with the current rates without saving.
func (s *LedgerService) PreviewExpense(in ExpenseInput) calc.TaxSplit {
	return calc.SplitTax(in.Total, in.TaxesIncluded, s.settings.Current().Rates)
}

func (s *LedgerService) buildExpense(in ExpenseInput, id string) core.Expense {
	e := core.Expense{
		ID:       id,
		Date:     strings.TrimSpace(in.Date),
		Unit:     strings.TrimSpace(in.Unit),
		Driver:   strings.TrimSpace(in.Driver),
		Category: strings.TrimSpace(in.Category),
		Details:  strings.TrimSpace(in.Details),
	}
	e = s.PreviewExpense(in).Expense(e)
	e.Stamp()
	return e
}

func (s *LedgerService) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e := s.buildExpense(in, uuid.New().String())
	return e, s.save(ctx, e.Validate, func() error { return s.store.Expenses().Put(ctx, e) }, core.KindExpense, e.ID, amqp.OpCreate)
}

func (s *LedgerService) UpdateExpense(ctx context.Context, id string, in ExpenseInput) (core.Expense, error) {
	if _, err := s.store.Expenses().Get(ctx, id); err != nil {
		return core.Expense{}, err
	}
	e := s.buildExpense(in, id)
	return e, s.save(ctx, e.Validate, func() error { return s.store.Expenses().Put(ctx, e) }, core.KindExpense, id, amqp.OpUpdate)
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id string) error {
	return s.remove(ctx, s.store.Expenses().Delete, core.KindExpense, id)
}

// Revenues

func (s *LedgerService) ListRevenues(ctx context.Context) ([]core.RevenueEntry, error) {
	return s.store.Revenues().List(ctx)
}

func (s *LedgerService) GetRevenue(ctx context.Context, id string) (core.RevenueEntry, error) {
	return s.store.Revenues().Get(ctx, id)
}

// PreviewRevenue computes a weekly sheet with the current rates without saving.
func (s *LedgerService) PreviewRevenue(in RevenueInput) RevenueResult {
	b := calc.ComputeRevenue(in.RevenueInput, s.settings.Current().Rates, s.policy)
	e := b.Entry(core.RevenueEntry{
		PeriodStart: strings.TrimSpace(in.PeriodStart),
		Unit:        strings.TrimSpace(in.Unit),
		Driver:      strings.TrimSpace(in.Driver),
	})
	e.Stamp()
	return RevenueResult{Entry: e, Breakdown: b}
}

func (s *LedgerService) CreateRevenue(ctx context.Context, in RevenueInput) (RevenueResult, error) {
	res := s.PreviewRevenue(in)
	res.Entry.ID = uuid.New().String()
	if err := res.Entry.Validate(); err != nil {
		return res, err
	}

	existing, err := s.store.Revenues().List(ctx)
	if err != nil {
		return res, err
	}
	for _, r := range existing {
		if r.PeriodStart == res.Entry.PeriodStart && r.Unit == res.Entry.Unit {
			return res, fmt.Errorf("week of %s for unit %s: %w", r.PeriodStart, r.Unit, core.ErrDuplicate)
		}
	}

	s.warnRevenue(ctx, res)
	return res, s.save(ctx, res.Entry.Validate, func() error { return s.store.Revenues().Put(ctx, res.Entry) }, core.KindRevenue, res.Entry.ID, amqp.OpCreate)
}

func (s *LedgerService) UpdateRevenue(ctx context.Context, id string, in RevenueInput) (RevenueResult, error) {
	if _, err := s.store.Revenues().Get(ctx, id); err != nil {
		return RevenueResult{}, err
	}
	res := s.PreviewRevenue(in)
	res.Entry.ID = id
	s.warnRevenue(ctx, res)
	return res, s.save(ctx, res.Entry.Validate, func() error { return s.store.Revenues().Put(ctx, res.Entry) }, core.KindRevenue, id, amqp.OpUpdate)
}

func (s *LedgerService) DeleteRevenue(ctx context.Context, id string) error {
	return s.remove(ctx, s.store.Revenues().Delete, core.KindRevenue, id)
}

func (s *LedgerService) warnRevenue(ctx context.Context, res RevenueResult) {
	fields := log.NewFields().WithSheet(res.Entry.Unit, res.Entry.Driver).WithRecord(string(core.KindRevenue), res.Entry.ID)
	if res.Breakdown.MeterRollback {
		s.logger.WarnContext(ctx, "Meter end below meter start, meter total clamped to zero", fields.ToSlice()...)
	}
	if res.Breakdown.NetNegative() {
		s.logger.InfoContext(ctx, "Owner owes the driver for this week", append(fields.ToSlice(), log.FieldAmount, core.FormatAmount(res.Entry.NetDueToOwner))...)
	}
}

// Reporting

// Summary aggregates one year with the current rates for synthetic taxes.
func (s *LedgerService) Summary(ctx context.Context, year string, by summary.Granularity) (summary.Summary, error) {
	key := "summary/" + year + "/" + string(by)
	if v, ok := s.reports.Get(key); ok {
		return v.(summary.Summary), nil
	}
	revenues, expenses, err := s.loadAll(ctx)
	if err != nil {
		return summary.Summary{}, err
	}
	out := summary.Build(year, by, revenues, expenses, s.settings.Current().Rates)
	s.reports.Set(key, out)
	return out, nil
}

func (s *LedgerService) Audit(ctx context.Context, year string) ([]summary.AuditRow, error) {
	key := "audit/" + year
	if v, ok := s.reports.Get(key); ok {
		return v.([]summary.AuditRow), nil
	}
	revenues, expenses, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := summary.Audit(year, revenues, expenses, s.settings.Current().Rates)
	s.reports.Set(key, out)
	return out, nil
}

func (s *LedgerService) Years(ctx context.Context) ([]string, error) {
	revenues, expenses, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return summary.Years(revenues, expenses, s.now()), nil
}

func (s *LedgerService) loadAll(ctx context.Context) ([]core.RevenueEntry, []core.Expense, error) {
	revenues, err := s.store.Revenues().List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load revenues: %w", err)
	}
	expenses, err := s.store.Expenses().List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load expenses: %w", err)
	}
	return revenues, expenses, nil
}

func (s *LedgerService) save(ctx context.Context, validate func() error, put func() error, kind core.Kind, id, op string) error {
	if err := validate(); err != nil {
		return err
	}
	if err := put(); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	s.committed(ctx, kind, id, op)
	return nil
}

func (s *LedgerService) remove(ctx context.Context, del func(context.Context, string) error, kind core.Kind, id string) error {
	if err := del(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	s.committed(ctx, kind, id, amqp.OpDelete)
	return nil
}

func (s *LedgerService) committed(ctx context.Context, kind core.Kind, id, op string) {
	s.reports.Purge()
	s.mutations.WithLabelValues(string(kind), op).Inc()
	log.NewStructuredLogger(s.logger).LogRecordSaved(ctx, op, string(kind), id)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChange(ctx, kind, id, op); err != nil {
		// The record is stored; the mirror catches up on its next full pass.
		s.logger.WarnContext(ctx, "Failed to publish record change",
			log.NewFields().WithRecord(string(kind), id).WithError(err).ToSlice()...)
	}
}

// Close releases the store and the publisher when it can be closed.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
