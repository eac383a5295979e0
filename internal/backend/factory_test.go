package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodboard/internal/adapters"
	"prodboard/internal/config"
	"prodboard/internal/core"
	gsheet "prodboard/internal/sheets/google"
	"prodboard/internal/sheets/memory"
	"prodboard/internal/sheets/webapp"
)

func quietFactory() *Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateMemoryBackendReadsSeeds(t *testing.T) {
	dir := t.TempDir()
	seed := `[{"Date":"2024-01-15","Process":"Foaming","Type":"PVC","Line":"Line 1","Inch":2,"Amount":5,"Item":"PVC_L1_2_Foam"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_history.json"), []byte(seed), 0644))

	res, err := quietFactory().CreateBackend(context.Background(), Config{Kind: Memory, DataDir: dir})
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, res.Backend)

	hist, err := res.Backend.ListProduction(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, core.Text("2"), hist[0].Inch)

	meta, err := res.Backend.ListMeta(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, meta)
}

func TestCreateSQLiteBackendSeedsMetaWithoutBroker(t *testing.T) {
	dir := t.TempDir()
	res, err := quietFactory().CreateBackend(context.Background(), Config{
		Kind:    SQLite,
		SQLite:  SQLiteConfig{Path: filepath.Join(dir, "prodboard.db")},
		DataDir: dir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })
	require.IsType(t, &adapters.SQLiteAdapter{}, res.Backend)

	meta, err := res.Backend.ListMeta(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, meta)

	_, err = res.Backend.AppendRow(context.Background(), core.Entry{
		Row:  core.ProductionRow{Date: "2024-01-15", Item: "PVC_L1_2_Foam", Amount: "1"},
		Mode: core.ModeRecord,
	})
	require.NoError(t, err)
}

func TestCreateWebAppBackend(t *testing.T) {
	res, err := quietFactory().CreateBackend(context.Background(), Config{
		Kind:   WebApp,
		WebApp: WebAppConfig{URL: "https://script.example.com/exec", Timeout: time.Second},
	})
	require.NoError(t, err)
	require.IsType(t, &webapp.Client{}, res.Backend)
	assert.Nil(t, res.Cleanup)

	_, err = quietFactory().CreateBackend(context.Background(), Config{Kind: WebApp})
	require.Error(t, err)
}

func TestCreateBackendRejectsUnknownType(t *testing.T) {
	_, err := quietFactory().CreateBackend(context.Background(), Config{Kind: "redis"})
	require.Error(t, err)
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:   config.BackendSQLite,
		SQLiteDBPath:  "/tmp/x.db",
		RemoteURL:     "https://example.com",
		RemoteTimeout: 3 * time.Second,
		DataDir:       "seed",
		SyncTarget:    config.BackendWebApp,
	}
	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, SQLite, cfg.Kind)
	assert.Equal(t, "seed", cfg.DataDir)
	assert.Equal(t, "/tmp/x.db", cfg.SQLite.Path)

	target, err := SyncTargetConfig(app)
	require.NoError(t, err)
	assert.Equal(t, WebApp, target.Kind)
	assert.Equal(t, "https://example.com", target.WebApp.URL)
	assert.Equal(t, 3*time.Second, target.WebApp.Timeout)

	app.SyncTarget = config.BackendMemory
	_, err = SyncTargetConfig(app)
	require.Error(t, err)

	_, err = FromAppConfig(nil)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory needs nothing", Config{Kind: Memory}, false},
		{"sqlite without path", Config{Kind: SQLite}, true},
		{"sheets without id", Config{Kind: Sheets}, true},
		{"sheets with id", Config{Kind: Sheets, Sheets: gsheet.Options{SpreadsheetID: "abc"}}, false},
		{"unknown kind", Config{Kind: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
