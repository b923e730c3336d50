package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"montaxi/internal/log"
	ports "montaxi/internal/sheets"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger

	mu   sync.Mutex
	tabs map[string]bool
}

var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. Extra
// options are appended after the credentials, so tests can point the client
// at a local endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	if creds == nil && len(opts) == 0 {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	all := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if creds != nil {
		all = append(all, goption.WithCredentialsJSON(creds))
	}
	all = append(all, opts...)

	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		tabs:          make(map[string]bool),
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

// ReplaceTab clears tab and writes header plus rows from A1. Values are sent
// RAW so amounts stay the exact text the store holds.
func (c *Client) ReplaceTab(ctx context.Context, tab string, header []string, rows [][]string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	all := quoteTab(tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	values := make([][]any, 0, len(rows)+1)
	values = append(values, toValues(header))
	for _, r := range rows {
		values = append(values, toValues(r))
	}
	rng := all + "!A1"
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", tab, err)
	}

	c.logger.DebugContext(ctx, "Tab replaced", "tab", tab, log.FieldCount, len(rows))
	return nil
}

// ensureTab adds tab to the spreadsheet the first time it is written.
func (c *Client) ensureTab(ctx context.Context, tab string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tabs[tab] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.tabs[sh.Properties.Title] = true
		}
	}
	if c.tabs[tab] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", tab, err)
	}
	c.logger.InfoContext(ctx, "Tab created", "tab", tab)
	c.tabs[tab] = true
	return nil
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func toValues(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
