package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"prodboard/internal/core"
	ports "prodboard/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	rowColumns  = "A:G"
	rowWidth    = 7
	metaColumns = "A:D"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	historySheet  string
	requestsSheet string
	metaSheet     string
}

// Ensure interface conformance
var (
	_ ports.Store         = (*Client)(nil)
	_ ports.BatchAppender = (*Client)(nil)
)

// Options selects the spreadsheet, its tabs and the service account used to
// reach it. Blank tab names fall back to History, Requests and Meta.
type Options struct {
	SpreadsheetID      string
	HistorySheet       string
	RequestsSheet      string
	MetaSheet          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		historySheet:  orDefault(opts.HistorySheet, "History"),
		requestsSheet: orDefault(opts.RequestsSheet, "Requests"),
		metaSheet:     orDefault(opts.MetaSheet, "Meta"),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	inline := strings.TrimSpace(opts.ServiceAccountJSON)
	file := strings.TrimSpace(opts.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		credentialsJSON = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ListProduction(ctx context.Context) ([]core.ProductionRow, error) {
	values, err := c.read(ctx, c.historySheet, rowColumns)
	if err != nil {
		return nil, err
	}
	return parseRows(values), nil
}

func (c *Client) ListRequests(ctx context.Context) ([]core.ProductionRow, error) {
	values, err := c.read(ctx, c.requestsSheet, rowColumns)
	if err != nil {
		return nil, err
	}
	return parseRows(values), nil
}

func (c *Client) ListMeta(ctx context.Context) ([]core.MetadataOption, error) {
	values, err := c.read(ctx, c.metaSheet, metaColumns)
	if err != nil {
		return nil, err
	}
	return parseMeta(values), nil
}

// AppendRow appends one row to the tab of its mode and returns the A1
// range that was written.
func (c *Client) AppendRow(ctx context.Context, e core.Entry) (string, error) {
	sheet, err := c.sheetFor(e.Mode)
	if err != nil {
		return "", err
	}
	return c.append(ctx, sheet, [][]any{rowValues(e.Row)})
}

// AppendRows writes every entry with a single append call, which the Sheets
// API applies as a unit. All entries must share one mode.
func (c *Client) AppendRows(ctx context.Context, entries []core.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	mode := entries[0].Mode
	values := make([][]any, 0, len(entries))
	for i, e := range entries {
		if e.Mode != mode {
			return fmt.Errorf("row %d: %w: mixed modes in one append", i+1, core.ErrInvalidMode)
		}
		values = append(values, rowValues(e.Row))
	}
	sheet, err := c.sheetFor(mode)
	if err != nil {
		return err
	}
	_, err = c.append(ctx, sheet, values)
	return err
}

// ReplaceBatch rewrites the tab without the batch's previous rows and with
// the new rows at the end. The tab's own header row and column order are
// kept. New content is written over the top of the tab first and only the
// rows left below it are cleared afterwards, so a failed write leaves the old
// content in place.
func (c *Client) ReplaceBatch(ctx context.Context, b core.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	sheet, err := c.sheetFor(b.Mode)
	if err != nil {
		return err
	}
	values, err := c.read(ctx, sheet, rowColumns)
	if err != nil {
		return err
	}

	cols, body := columns(values, rowHeaders)
	kept := core.WithoutRows(parseRows(values), b.Previous)
	kept = append(kept, b.Rows...)

	out := make([][]any, 0, len(kept)+1)
	if len(body) < len(values) {
		out = append(out, padRow(values[0], rowWidth))
	}
	for _, r := range kept {
		out = append(out, encodeRow(r, cols, rowWidth))
	}

	if len(out) > 0 {
		dst := fmt.Sprintf("%s!A1:G%d", sheet, len(out))
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dst, &gsheet.ValueRange{Values: out}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%w: update %s: %v", core.ErrRemote, dst, err)
		}
	}
	if len(values) <= len(out) {
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:G", sheet, len(out)+1)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear %s: %v", core.ErrRemote, rng, err)
	}
	return nil
}

func (c *Client) sheetFor(m core.Mode) (string, error) {
	switch m {
	case core.ModeRecord:
		return c.historySheet, nil
	case core.ModeRequest:
		return c.requestsSheet, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidMode, m)
}

func (c *Client) read(ctx context.Context, sheet, cols string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrRemote, rng, err)
	}
	return resp.Values, nil
}

func (c *Client) append(ctx context.Context, sheet string, values [][]any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, rowColumns)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: append %s: %v", core.ErrRemote, rng, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

func rowValues(r core.ProductionRow) []any {
	return []any{
		r.Date,
		r.Process.String(),
		r.Type.String(),
		r.Line.String(),
		r.Inch.String(),
		r.Amount.String(),
		r.Item.String(),
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
