package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"prodboard/internal/core"
	"prodboard/internal/dashboard"
	"prodboard/internal/export"
	applog "prodboard/internal/log"
	"prodboard/internal/services"
	"prodboard/internal/sheets/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testMeta = []core.MetadataOption{
	{Category: core.CategoryProcess, Name: "Foaming", Alias: "Foam", Group: core.GroupLeft},
	{Category: core.CategoryProcess, Name: "Finishing", Alias: "Fin", Group: core.GroupRight},
	{Category: core.CategoryType, Name: "PVC", Alias: "PVC"},
	{Category: core.CategoryLine, Name: "Line 1", Alias: "L1"},
}

const testDay = "2024-01-15"

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New([]core.ProductionRow{
		{Date: testDay, Process: "Foaming", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "5", Item: "PVC_L1_2_Foam"},
	}, []core.ProductionRow{
		{Date: testDay, Process: "Foaming", Type: "PVC", Line: "Line 1", Inch: "2", Amount: "10", Item: "PVC_L1_2_Foam"},
	}, testMeta)

	logger := quietLogger()
	board := dashboard.NewBoard(dashboard.Sources{History: store, Requests: store, Meta: store}, time.UTC, logger)
	srv := NewServer(":0", Deps{
		Board:   board,
		Entries: services.NewEntryService(store, board, logger),
		Edits:   services.NewEditService(store, board, logger),
		Store:   store,
		Logger:  logger,
	})
	t.Cleanup(func() { _ = srv.Close() })
	return srv, store
}

func serve(srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func triggers(t *testing.T, rr *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := rr.Header().Get("HX-Trigger")
	require.NotEmpty(t, raw, "missing HX-Trigger")
	var events map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &events))
	return events
}

func entryForm(amount string) url.Values {
	return url.Values{
		"mode":    {"Record"},
		"date":    {testDay},
		"process": {"Foaming"},
		"type":    {"PVC"},
		"line":    {"Line 1"},
		"inch":    {"2"},
		"amount":  {amount},
	}
}

func TestIndexRendersBoard(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, http.MethodGet, "/?date="+testDay, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="board"`)
	assert.Contains(t, body, "PVC_L1_2_Foam")
	assert.Contains(t, body, "5 / 10")
	assert.Contains(t, body, "-5")
	assert.Contains(t, body, "2024-01-14")
	assert.Contains(t, body, "2024-01-16")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = serve(srv, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestIndexOpensModalFromQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, http.MethodGet, "/?date="+testDay+"&modal=edit&mode=Record&group=Left", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="modal-form"`)
	assert.Contains(t, body, `hx-post="/batches"`)
	assert.Contains(t, body, `name="row_date"`)

	// an unknown modal is ignored, the board still renders
	rr = serve(srv, http.MethodGet, "/?modal=bogus", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `id="modal-form"`)
}

func TestBoardNavigationDoesNotFetch(t *testing.T) {
	srv, store := newTestServer(t)

	rr := serve(srv, http.MethodGet, "/ui/board?date="+testDay, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "PVC_L1_2_Foam")

	// written behind the board's back: not visible until a refresh
	_, err := store.AppendRow(context.Background(), core.Entry{
		Row:  core.ProductionRow{Date: "2024-01-16", Item: "PVC_L1_2_Fin", Amount: "4"},
		Mode: core.ModeRecord,
	})
	require.NoError(t, err)

	rr = serve(srv, http.MethodGet, "/ui/board?date=2024-01-16", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "PVC_L1_2_Fin")

	rr = serve(srv, http.MethodPost, "/refresh", url.Values{"date": {"2024-01-16"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "PVC_L1_2_Fin")
}

func TestEntryRows(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, http.MethodGet, "/ui/entry?mode=Request&date="+testDay, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `hx-post="/entries"`)
	assert.Equal(t, 1, strings.Count(rr.Body.String(), `name="process"`))

	form := entryForm("1")
	form.Set("action", "add")
	rr = serve(srv, http.MethodPost, "/ui/entry/rows", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, strings.Count(rr.Body.String(), `name="process"`))

	// the last row stays
	form = entryForm("1")
	form.Set("action", "remove")
	form.Set("index", "0")
	rr = serve(srv, http.MethodPost, "/ui/entry/rows", form)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, 1, strings.Count(rr.Body.String(), `name="process"`))
}

func TestSubmitEntry(t *testing.T) {
	srv, store := newTestServer(t)

	rr := serve(srv, http.MethodPost, "/entries", entryForm("abc"))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="abc"`)
	assert.Contains(t, triggers(t, rr), EventShowNotification)

	rr = serve(srv, http.MethodPost, "/entries", entryForm("3"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	events := triggers(t, rr)
	assert.JSONEq(t, `{"date":"`+testDay+`"}`, string(events[EventBoardRefresh]))
	assert.Contains(t, events, EventModalClosed)

	rows, err := store.ListProduction(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, core.Text("PVC_L1_2_Foam"), rows[1].Item)
	assert.Equal(t, testDay, rows[1].Date)

	rr = serve(srv, http.MethodGet, "/ui/board?date="+testDay, nil)
	assert.Contains(t, rr.Body.String(), "8 / 10")
}

func TestSubmitBatch(t *testing.T) {
	srv, store := newTestServer(t)
	form := url.Values{
		"mode":     {"Record"},
		"group":    {"Left"},
		"date":     {testDay},
		"version":  {"stale"},
		"row_date": {testDay},
		"process":  {"Foaming"},
		"type":     {"PVC"},
		"line":     {"Line 1"},
		"inch":     {"2"},
		"amount":   {"9"},
	}

	rr := serve(srv, http.MethodPost, "/batches", form)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "changed since the form was opened")

	rows, version := srv.edits.Open(core.ModeRecord, core.GroupLeft, testDay)
	require.Len(t, rows, 1)
	form.Set("version", version)

	rr = serve(srv, http.MethodPost, "/batches", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, triggers(t, rr), EventBoardRefresh)

	stored, err := store.ListProduction(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, core.Amount("9"), stored[0].Amount)
}

func TestEditRowsDeleteAll(t *testing.T) {
	srv, _ := newTestServer(t)
	form := url.Values{
		"mode":     {"Record"},
		"group":    {"Left"},
		"date":     {testDay},
		"row_date": {testDay},
		"process":  {"Foaming"},
		"type":     {"PVC"},
		"line":     {"Line 1"},
		"inch":     {"2"},
		"amount":   {"5"},
		"action":   {"delete"},
		"index":    {"0"},
	}

	rr := serve(srv, http.MethodPost, "/ui/edit/rows", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `name="process"`)
	assert.Contains(t, rr.Body.String(), "No rows.")
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := serve(srv, http.MethodGet, "/export.xlsx?date="+testDay, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), export.Filename(testDay))
	assert.NotZero(t, rr.Body.Len())

	rr = serve(srv, http.MethodPost, "/export.xlsx?date="+testDay, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rr.Code, path)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
		assert.Contains(t, []any{"ok", "ready"}, payload["status"], path)
	}

	rr := serve(srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "production_rows_saved_total 0")
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/entries"},
		{http.MethodGet, "/batches"},
		{http.MethodGet, "/refresh"},
		{http.MethodPost, "/ui/board"},
		{http.MethodPost, "/export.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := serve(srv, tt.method, tt.path, url.Values{})
			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		})
	}
}
