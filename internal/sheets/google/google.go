// Package google exports month reports to Google Sheets with a service
// account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bolso/internal/core"
	"bolso/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ sheets.MonthExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account. Exactly one of
// CredentialsJSON and CredentialsFile is expected; when both are empty
// GOOGLE_APPLICATION_CREDENTIALS is used.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// NewWithOptions builds a client with explicit API options.
func NewWithOptions(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Bolso"
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: base}, nil
}

func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// SheetTitle names the tab a month is exported to, e.g. "Bolso 2024-03".
func SheetTitle(base string, month core.MonthKey) string {
	return fmt.Sprintf("%s %s", base, month)
}

// ExportMonth replaces the month's tab with the report, creating the tab on
// first export.
func (c *Client) ExportMonth(ctx context.Context, r sheets.Report) (string, error) {
	if err := r.Month.Validate(); err != nil {
		return "", err
	}
	title := SheetTitle(c.sheetBase, r.Month)

	if err := c.ensureSheet(ctx, title); err != nil {
		return "", core.NewRemoteError("sheets ensure tab", err)
	}

	rng := fmt.Sprintf("'%s'!A1", title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, fmt.Sprintf("'%s'", title), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", core.NewRemoteError("sheets clear", err)
	}

	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: sheets.Rows(r)}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return "", core.NewRemoteError("sheets update", err)
	}

	slog.InfoContext(ctx, "Exported month to Google Sheets",
		"month", string(r.Month),
		"sheet", title,
		"rows", resp.UpdatedRows)

	return resp.UpdatedRange, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	return nil
}
