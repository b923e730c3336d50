package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"montaxi/internal/core"
	"montaxi/internal/storage"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "nested", "montaxi.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_RevenueRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	r := core.RevenueEntry{
		ID: "r1", PeriodStart: "2024-03-04", Unit: "12", Driver: "Roy Luc",
		MeterEnd: decimal.RequireFromString("1200.5"), Gross: decimal.RequireFromString("1250.5"),
		CallCount: 45, DriverPay: decimal.RequireFromString("481.3"),
		NetDueToOwner: decimal.RequireFromString("-12.04"),
	}
	r.Stamp()
	if err := s.Revenues().Put(ctx, r); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Revenues().Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PeriodEnd != "2024-03-10" || got.CallCount != 45 || !got.DriverPay.Equal(r.DriverPay) || !got.NetDueToOwner.Equal(r.NetDueToOwner) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSQLite_PutReplacesAndOrders(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	c := s.Drivers()

	for _, d := range []core.Driver{{ID: "a", LastName: "Roy"}, {ID: "b", LastName: "Gagnon"}, {ID: "a", LastName: "Roy", Note: "night shift"}} {
		if err := c.Put(ctx, d); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	list, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].Note != "night shift" {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Delete(ctx, "a"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.Get(ctx, "a"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSQLite_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), SQLite, path, nil)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		s.Close()
	}
}

func TestPut_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := New(db, MySQL)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `taxis` WHERE id = ?")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `taxis` (`unit_number`, `plate`, `default_driver`, `id`) VALUES (?, ?, ?, ?)")).
		WithArgs("12", "ABC123", "", "t1").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = s.Taxis().Put(context.Background(), core.Taxi{ID: "t1", UnitNumber: "12", Plate: "ABC123"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList_MySQLDecodesDecimals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(storage.ExpenseTable.Columns).
		AddRow("2024-01-05", "2024-01", "2024", "T1", "12", "Roy Luc", "Tires", "", "347.90", "17.40", "34.70", "400.00", "e1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `date`, `month`")).WillReturnRows(rows)

	got, err := New(db, MySQL).Expenses().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || core.FormatAmount(got[0].AmountInclTax) != "400.00" || got[0].Category != "Tires" {
		t.Fatalf("unexpected decode %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "drivers" WHERE id = ?`)).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := New(db, SQLite).Drivers().Delete(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMigrationDSN(t *testing.T) {
	got, err := MySQL.migrationDSN("user:pw@tcp(localhost:3306)/montaxi")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	if !regexp.MustCompile(`multiStatements=true`).MatchString(got) {
		t.Fatalf("expected multiStatements in %s", got)
	}
	if same, _ := SQLite.migrationDSN("x.db"); same != "x.db" {
		t.Fatalf("sqlite dsn changed: %s", same)
	}
}
