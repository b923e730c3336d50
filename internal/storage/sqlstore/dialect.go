package sqlstore

import (
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL engine behind a Store.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

func (d Dialect) driverName() string { return string(d) }

func (d Dialect) quote(ident string) string {
	if d == MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

func (d Dialect) quoteAll(idents []string) string {
	q := make([]string, len(idents))
	for i, id := range idents {
		q[i] = d.quote(id)
	}
	return strings.Join(q, ", ")
}

// migrationDSN adjusts the connection string for migration files that hold
// several statements.
func (d Dialect) migrationDSN(dsn string) (string, error) {
	if d != MySQL {
		return dsn, nil
	}
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}
