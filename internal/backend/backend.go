// Package backend builds the store selected by DATA_BACKEND, or the
// worker's SYNC_TARGET.
package backend

import (
	"errors"
	"fmt"
	"time"

	"prodboard/internal/config"
	"prodboard/internal/sheets"
	gsheet "prodboard/internal/sheets/google"
)

// Backend is the store the dashboard reads from and writes to.
type Backend interface {
	sheets.Store
}

// Kind names a backend implementation.
type Kind string

const (
	WebApp Kind = config.BackendWebApp
	SQLite Kind = config.BackendSQLite
	Sheets Kind = config.BackendSheets
	Memory Kind = config.BackendMemory
)

func (k Kind) Valid() bool {
	switch k {
	case WebApp, SQLite, Sheets, Memory:
		return true
	}
	return false
}

// Remote reports whether rows written to k leave the process.
func (k Kind) Remote() bool {
	return k == WebApp || k == Sheets
}

type WebAppConfig struct {
	URL     string
	Timeout time.Duration
}

// SQLiteConfig places the batch log. AMQP fields are optional; without a
// URL batches are stored but never announced.
type SQLiteConfig struct {
	Path         string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type Config struct {
	Kind   Kind
	WebApp WebAppConfig
	SQLite SQLiteConfig
	Sheets gsheet.Options

	// Seed files for the memory backend and for a fresh SQLite metadata table.
	DataDir string
}

var errNilConfig = errors.New("app config is nil")

// FromAppConfig selects the DATA_BACKEND store.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errNilConfig
	}
	return fromApp(app, Kind(app.DataBackend))
}

// SyncTargetConfig selects the SYNC_TARGET store the worker mirrors
// batches to. Only remote stores qualify.
func SyncTargetConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errNilConfig
	}
	cfg, err := fromApp(app, Kind(app.SyncTarget))
	if err != nil {
		return Config{}, err
	}
	if !cfg.Kind.Remote() {
		return Config{}, fmt.Errorf("sync target must be webapp or sheets, got %s", cfg.Kind)
	}
	return cfg, nil
}

func fromApp(app *config.Config, kind Kind) (Config, error) {
	if !kind.Valid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", kind)
	}
	return Config{
		Kind: kind,
		WebApp: WebAppConfig{
			URL:     app.RemoteURL,
			Timeout: app.RemoteTimeout,
		},
		SQLite: SQLiteConfig{
			Path:         app.SQLiteDBPath,
			AMQPURL:      app.AMQPURL,
			AMQPExchange: app.AMQPExchange,
			AMQPQueue:    app.AMQPQueue,
		},
		Sheets: gsheet.Options{
			SpreadsheetID:      app.GoogleSpreadsheetID,
			HistorySheet:       app.GoogleHistorySheet,
			RequestsSheet:      app.GoogleRequestsSheet,
			MetaSheet:          app.GoogleMetaSheet,
			ServiceAccountJSON: app.GoogleServiceAccountJSON,
			ServiceAccountFile: app.GoogleServiceAccountFile,
		},
		DataDir: app.DataDir,
	}, nil
}

// Validate checks the fields the selected kind needs.
func (c Config) Validate() error {
	switch c.Kind {
	case WebApp:
		if c.WebApp.URL == "" {
			return errors.New("remote URL is required for webapp backend")
		}
	case SQLite:
		if c.SQLite.Path == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case Sheets:
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
	case Memory:
	default:
		return fmt.Errorf("invalid backend type: %s", c.Kind)
	}
	return nil
}

func (c Config) dataDir() string {
	if c.DataDir == "" {
		return "data"
	}
	return c.DataDir
}
