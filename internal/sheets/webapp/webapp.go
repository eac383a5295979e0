// Package webapp talks to the spreadsheet web app endpoint: reads are GET
// requests selected by an action query parameter, writes are form posts
// carrying one JSON document in the data field.
package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prodboard/internal/core"
	ports "prodboard/internal/sheets"
)

const (
	ActionHistory  = "getProductionHistory"
	ActionRequests = "getProductionRequests"
	ActionMeta     = "getMeta"
)

var _ ports.Store = (*Client)(nil)

type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the endpoint at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url must be http or https, got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: u.String(),
		http:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type (
	// entryPayload is the body of a single-row write.
	entryPayload struct {
		Date    string `json:"date"`
		Process string `json:"process"`
		Type    string `json:"type"`
		Line    string `json:"line"`
		Inch    string `json:"inch"`
		Amount  string `json:"amount"`
		Item    string `json:"item"`
		Mode    string `json:"mode"`
	}

	// batchPayload is the body of an edit batch. Type carries the mode.
	batchPayload struct {
		Date  string     `json:"date"`
		Type  string     `json:"type"`
		Group string     `json:"group"`
		Rows  []batchRow `json:"rows"`
	}

	batchRow struct {
		Date    string `json:"date"`
		Process string `json:"process"`
		Type    string `json:"type"`
		Line    string `json:"line"`
		Inch    string `json:"inch"`
		Amount  string `json:"amount"`
		Item    string `json:"item"`
	}
)

func (c *Client) ListProduction(ctx context.Context) ([]core.ProductionRow, error) {
	var rows []core.ProductionRow
	if err := c.get(ctx, ActionHistory, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ListRequests(ctx context.Context) ([]core.ProductionRow, error) {
	var rows []core.ProductionRow
	if err := c.get(ctx, ActionRequests, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ListMeta(ctx context.Context) ([]core.MetadataOption, error) {
	var rows []core.MetadataOption
	if err := c.get(ctx, ActionMeta, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AppendRow posts one row. The endpoint does not return a row reference.
func (c *Client) AppendRow(ctx context.Context, e core.Entry) (string, error) {
	r := e.Row
	p := entryPayload{
		Date:    r.Date,
		Process: r.Process.String(),
		Type:    r.Type.String(),
		Line:    r.Line.String(),
		Inch:    r.Inch.String(),
		Amount:  r.Amount.String(),
		Item:    r.Item.String(),
		Mode:    string(e.Mode),
	}
	if err := c.post(ctx, p); err != nil {
		return "", err
	}
	return "", nil
}

// ReplaceBatch posts the whole row list of a scope in one request. The
// endpoint rewrites the scope server side, so Previous is not sent.
func (c *Client) ReplaceBatch(ctx context.Context, b core.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	rows := make([]batchRow, 0, len(b.Rows))
	for _, r := range b.Rows {
		rows = append(rows, batchRow{
			Date:    r.Date,
			Process: r.Process.String(),
			Type:    r.Type.String(),
			Line:    r.Line.String(),
			Inch:    r.Inch.String(),
			Amount:  r.Amount.String(),
			Item:    r.Item.String(),
		})
	}
	return c.post(ctx, batchPayload{
		Date:  b.Date,
		Type:  string(b.Mode),
		Group: string(b.Group),
		Rows:  rows,
	})
}

func (c *Client) get(ctx context.Context, action string, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse remote url: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrRemote, action, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", core.ErrRemote, action, err)
	}
	slog.DebugContext(ctx, "Fetched remote collection", "action", action)
	return nil
}

func (c *Client) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	form := url.Values{"data": {string(data)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: write: %v", core.ErrRemote, err)
	}
	defer resp.Body.Close()
	// Only the status matters; drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("%w: status %d", core.ErrRemote, resp.StatusCode)
}

