// Package settings persists the operator-tunable rates and expense
// categories as a small JSON document. Values missing from the document fall
// back to defaults, and keys written by earlier versions are still read.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"montaxi/internal/core"
	"montaxi/internal/log"
	"montaxi/internal/storage"
)

// Settings is an immutable snapshot handed to every computation.
type Settings struct {
	Rates      core.Rates
	Categories []string
}

// DefaultCategories are offered when the document lists none.
var DefaultCategories = []string{
	"Mechanical repair",
	"Bodywork",
	"Tires",
	"Vehicle insurance",
	"Licence/Permit (SAAQ)",
	"Administrative fees",
	"Parts",
	"Other",
}

func Defaults() Settings {
	return Settings{
		Rates:      core.DefaultRates(),
		Categories: append([]string(nil), DefaultCategories...),
	}
}

func (s Settings) Validate() error {
	if err := s.Rates.Validate(); err != nil {
		return err
	}
	if len(dedupe(s.Categories)) == 0 {
		return core.Invalid("categories", "must list at least one category")
	}
	return nil
}

// keys maps each setting to the names it may appear under, canonical first.
var keys = struct {
	callCost, driverPct, withholdingPct, taxA, taxB, categories []string
}{
	callCost:       []string{"call_cost", "cout_appel"},
	driverPct:      []string{"driver_pct", "pourcent_chauffeur", "pct_chauf"},
	withholdingPct: []string{"withholding_pct", "taux_impot"},
	taxA:           []string{"tax_rate_a", "taux_tps", "tps"},
	taxB:           []string{"tax_rate_b", "taux_tvq", "tvq"},
	categories:     []string{"categories", "cats"},
}

// Decode merges a JSON document over the defaults. Unreadable values keep
// their default.
func Decode(r io.Reader) (Settings, error) {
	return DecodeOver(r, Defaults())
}

// DecodeOver merges a JSON document over base, so a partial document only
// changes the keys it names.
func DecodeOver(r io.Reader, base Settings) (Settings, error) {
	s := base
	s.Categories = append([]string(nil), base.Categories...)
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}

	number := func(names []string, dst *decimal.Decimal) {
		raw, ok := lookup(doc, names)
		if !ok {
			return
		}
		var d decimal.Decimal
		if err := json.Unmarshal(raw, &d); err == nil {
			*dst = d
			return
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
			*dst = core.ParseAmount(text)
		}
	}
	number(keys.callCost, &s.Rates.CallCost)
	number(keys.driverPct, &s.Rates.DriverPct)
	number(keys.withholdingPct, &s.Rates.WithholdingPct)
	number(keys.taxA, &s.Rates.TaxRateA)
	number(keys.taxB, &s.Rates.TaxRateB)

	if raw, ok := lookup(doc, keys.categories); ok {
		var cats []string
		if err := json.Unmarshal(raw, &cats); err == nil {
			if cats = dedupe(cats); len(cats) > 0 {
				s.Categories = cats
			}
		}
	}
	return s, nil
}

func lookup(doc map[string]json.RawMessage, names []string) (json.RawMessage, bool) {
	for _, n := range names {
		if raw, ok := doc[n]; ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

type document struct {
	CallCost       json.Number `json:"call_cost"`
	DriverPct      json.Number `json:"driver_pct"`
	WithholdingPct json.Number `json:"withholding_pct"`
	TaxRateA       json.Number `json:"tax_rate_a"`
	TaxRateB       json.Number `json:"tax_rate_b"`
	Categories     []string    `json:"categories"`
}

// Encode writes the canonical document.
func Encode(w io.Writer, s Settings) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{
		CallCost:       json.Number(s.Rates.CallCost.String()),
		DriverPct:      json.Number(s.Rates.DriverPct.String()),
		WithholdingPct: json.Number(s.Rates.WithholdingPct.String()),
		TaxRateA:       json.Number(s.Rates.TaxRateA.String()),
		TaxRateB:       json.Number(s.Rates.TaxRateB.String()),
		Categories:     dedupe(s.Categories),
	})
}

// Store holds the current settings and the file they live in. Saved changes
// apply to computations started afterwards; stored records are untouched.
type Store struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	current Settings
}

// Open loads path. A missing file means defaults; a corrupt file is logged
// and also means defaults, so the application still starts.
func Open(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{path: path, logger: logger.WithComponent(log.ComponentSettings), current: Defaults()}
	if path == "" {
		return s
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s
	}
	if err != nil {
		s.logger.Warn("Cannot open settings, using defaults", log.FieldError, err, "file", path)
		return s
	}
	defer f.Close()

	loaded, err := Decode(f)
	if err != nil {
		s.logger.Warn("Cannot read settings, using defaults", log.FieldError, err, "file", path)
		return s
	}
	if err := loaded.Validate(); err != nil {
		s.logger.Warn("Invalid settings, using defaults", log.FieldError, err, "file", path)
		return s
	}
	s.current = loaded
	return s
}

// Current returns a snapshot; callers may not share it across a Save.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.current
	cur.Categories = append([]string(nil), s.current.Categories...)
	return cur
}

// Save validates and persists next, then makes it current.
func (s *Store) Save(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	next.Categories = dedupe(next.Categories)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := storage.WriteFileAtomic(s.path, func(w io.Writer) error { return Encode(w, next) }); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	s.current = next
	s.logger.Info("Settings saved", "call_cost", next.Rates.CallCost.String(), "driver_pct", next.Rates.DriverPct.String())
	return nil
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
