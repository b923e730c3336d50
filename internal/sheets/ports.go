// Package sheets defines the spreadsheet mirror port. The mirror is a
// read-only copy of the record store for people who prefer a spreadsheet.
package sheets

import (
	"context"
	"strings"

	"montaxi/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror replaces the whole content of one tab with header and rows.
	Mirror interface {
		ReplaceTab(ctx context.Context, tab string, header []string, rows [][]string) error
	}
)

var tabNames = map[core.Kind]string{
	core.KindDriver:  "Drivers",
	core.KindTaxi:    "Taxis",
	core.KindExpense: "Expenses",
	core.KindRevenue: "Revenues",
}

// TabName returns the tab a collection is mirrored to.
func TabName(prefix string, kind core.Kind) string {
	name, ok := tabNames[kind]
	if !ok {
		name = string(kind)
	}
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		return prefix + " " + name
	}
	return name
}
