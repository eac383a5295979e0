package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	"prodboard/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row or batch id does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sqlx.DB
}

type (
	rowRecord struct {
		ID      int64  `db:"id"`
		Mode    string `db:"mode"`
		Day     string `db:"day"`
		Process string `db:"process"`
		Type    string `db:"type"`
		Line    string `db:"line"`
		Inch    string `db:"inch"`
		Amount  string `db:"amount"`
		Item    string `db:"item"`
		Group   string `db:"grp"`
	}

	metaRecord struct {
		Category string `db:"category"`
		Name     string `db:"name"`
		Alias    string `db:"alias"`
		Group    string `db:"grp"`
	}

	batchRecord struct {
		ID           int64  `db:"id"`
		Mode         string `db:"mode"`
		Day          string `db:"day"`
		Group        string `db:"grp"`
		PreviousJSON string `db:"previous_json"`
		RowsJSON     string `db:"rows_json"`
	}
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertRow = `INSERT INTO production_rows (mode, day, process, type, line, inch, amount, item, grp)
VALUES (:mode, :day, :process, :type, :line, :inch, :amount, :item, :grp)`

const selectRows = `SELECT id, mode, day, process, type, line, inch, amount, item, grp FROM production_rows`

// ListRows returns every row of one mode in insertion order.
func (r *SQLiteRepository) ListRows(ctx context.Context, mode core.Mode) ([]core.ProductionRow, error) {
	var recs []rowRecord
	if err := r.db.SelectContext(ctx, &recs, selectRows+` WHERE mode = ? ORDER BY id`, string(mode)); err != nil {
		return nil, fmt.Errorf("list %s rows: %w", mode, err)
	}
	out := make([]core.ProductionRow, len(recs))
	for i, rec := range recs {
		out[i] = rec.toRow()
	}
	return out, nil
}

// InsertRow stores one entry and returns its id.
func (r *SQLiteRepository) InsertRow(ctx context.Context, e core.Entry) (int64, error) {
	res, err := r.db.NamedExecContext(ctx, insertRow, newRowRecord(e))
	if err != nil {
		return 0, fmt.Errorf("insert row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert row id: %w", err)
	}
	slog.InfoContext(ctx, "Production row saved to SQLite",
		"id", id,
		"mode", e.Mode,
		"date", e.Row.Date,
		"item", e.Row.Item.String())
	return id, nil
}

// InsertRows stores all entries in one transaction.
func (r *SQLiteRepository) InsertRows(ctx context.Context, entries []core.Entry) ([]int64, error) {
	ids := make([]int64, 0, len(entries))
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		for i, e := range entries {
			res, err := tx.NamedExecContext(ctx, insertRow, newRowRecord(e))
			if err != nil {
				return fmt.Errorf("insert row %d: %w", i+1, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("insert row %d id: %w", i+1, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetRow loads a stored row with its mode and group.
func (r *SQLiteRepository) GetRow(ctx context.Context, id int64) (core.Entry, error) {
	var rec rowRecord
	if err := r.db.GetContext(ctx, &rec, selectRows+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Entry{}, fmt.Errorf("row %d: %w", id, ErrNotFound)
		}
		return core.Entry{}, fmt.Errorf("get row %d: %w", id, err)
	}
	return core.Entry{Row: rec.toRow(), Mode: core.Mode(rec.Mode), Group: core.Group(rec.Group)}, nil
}

// ReplaceScope removes the batch's previous rows, inserts the new ones and
// records the batch for mirroring, all in one transaction. It returns the
// id of the recorded batch.
func (r *SQLiteRepository) ReplaceScope(ctx context.Context, b core.Batch) (int64, error) {
	prevJSON, err := json.Marshal(nonNil(b.Previous))
	if err != nil {
		return 0, fmt.Errorf("encode previous rows: %w", err)
	}
	rowsJSON, err := json.Marshal(nonNil(b.Rows))
	if err != nil {
		return 0, fmt.Errorf("encode rows: %w", err)
	}

	var batchID int64
	err = r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range b.Previous {
			_, err := tx.ExecContext(ctx, `DELETE FROM production_rows WHERE id = (
				SELECT id FROM production_rows
				WHERE mode = ? AND day = ? AND process = ? AND type = ? AND line = ?
				  AND inch = ? AND amount = ? AND item = ?
				ORDER BY id LIMIT 1)`,
				string(b.Mode), strings.TrimSpace(p.Date), p.Process.String(), p.Type.String(),
				p.Line.String(), p.Inch.String(), p.Amount.String(), p.Item.String())
			if err != nil {
				return fmt.Errorf("delete previous row: %w", err)
			}
		}
		for i, row := range b.Rows {
			e := core.Entry{Row: row, Mode: b.Mode, Group: b.Group}
			if _, err := tx.NamedExecContext(ctx, insertRow, newRowRecord(e)); err != nil {
				return fmt.Errorf("insert batch row %d: %w", i+1, err)
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO sync_batches (mode, day, grp, previous_json, rows_json) VALUES (?, ?, ?, ?, ?)`,
			string(b.Mode), b.Date, string(b.Group), string(prevJSON), string(rowsJSON))
		if err != nil {
			return fmt.Errorf("record batch: %w", err)
		}
		batchID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Batch saved to SQLite",
		"batch_id", batchID,
		"mode", b.Mode,
		"group", b.Group,
		"date", b.Date,
		"rows", len(b.Rows))
	return batchID, nil
}

// GetBatch loads a recorded batch.
func (r *SQLiteRepository) GetBatch(ctx context.Context, id int64) (core.Batch, error) {
	var rec batchRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT id, mode, day, grp, previous_json, rows_json FROM sync_batches WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Batch{}, fmt.Errorf("batch %d: %w", id, ErrNotFound)
		}
		return core.Batch{}, fmt.Errorf("get batch %d: %w", id, err)
	}
	b := core.Batch{Date: rec.Day, Mode: core.Mode(rec.Mode), Group: core.Group(rec.Group)}
	if err := json.Unmarshal([]byte(rec.PreviousJSON), &b.Previous); err != nil {
		return core.Batch{}, fmt.Errorf("decode batch %d previous rows: %w", id, err)
	}
	if err := json.Unmarshal([]byte(rec.RowsJSON), &b.Rows); err != nil {
		return core.Batch{}, fmt.Errorf("decode batch %d rows: %w", id, err)
	}
	return b, nil
}

// MarkBatchSynced records that a batch reached the remote store.
func (r *SQLiteRepository) MarkBatchSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sync_batches SET synced_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark batch %d synced: %w", id, err)
	}
	return nil
}

// BatchSynced reports whether a batch has already been marked synced.
func (r *SQLiteRepository) BatchSynced(ctx context.Context, id int64) (bool, error) {
	var synced bool
	err := r.db.GetContext(ctx, &synced, `SELECT synced_at IS NOT NULL FROM sync_batches WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("batch %d: %w", id, ErrNotFound)
		}
		return false, fmt.Errorf("batch %d synced state: %w", id, err)
	}
	return synced, nil
}

// PendingBatchIDs lists batches not yet marked synced, oldest first.
func (r *SQLiteRepository) PendingBatchIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM sync_batches WHERE synced_at IS NULL ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list pending batches: %w", err)
	}
	return ids, nil
}

// ListMeta returns the stored metadata rows in insertion order.
func (r *SQLiteRepository) ListMeta(ctx context.Context) ([]core.MetadataOption, error) {
	var recs []metaRecord
	if err := r.db.SelectContext(ctx, &recs, `SELECT category, name, alias, grp FROM meta_options ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list meta: %w", err)
	}
	out := make([]core.MetadataOption, len(recs))
	for i, rec := range recs {
		out[i] = core.MetadataOption{
			Category: core.Category(rec.Category),
			Name:     core.Text(rec.Name),
			Alias:    core.Text(rec.Alias),
			Group:    core.Group(rec.Group),
		}
	}
	return out, nil
}

// ReplaceMeta swaps the whole metadata vocabulary.
func (r *SQLiteRepository) ReplaceMeta(ctx context.Context, opts []core.MetadataOption) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meta_options`); err != nil {
			return fmt.Errorf("clear meta: %w", err)
		}
		for _, o := range opts {
			rec := metaRecord{
				Category: string(o.Category),
				Name:     o.Name.String(),
				Alias:    o.Alias.String(),
				Group:    string(o.Group),
			}
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO meta_options (category, name, alias, grp) VALUES (:category, :name, :alias, :grp)`, rec); err != nil {
				return fmt.Errorf("insert meta %q: %w", rec.Name, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func newRowRecord(e core.Entry) rowRecord {
	r := e.Row
	return rowRecord{
		Mode:    string(e.Mode),
		Day:     strings.TrimSpace(r.Date),
		Process: r.Process.String(),
		Type:    r.Type.String(),
		Line:    r.Line.String(),
		Inch:    r.Inch.String(),
		Amount:  r.Amount.String(),
		Item:    r.Item.String(),
		Group:   string(e.Group),
	}
}

func (rec rowRecord) toRow() core.ProductionRow {
	return core.ProductionRow{
		Date:    rec.Day,
		Process: core.Text(rec.Process),
		Type:    core.Text(rec.Type),
		Line:    core.Text(rec.Line),
		Inch:    core.Text(rec.Inch),
		Amount:  core.Amount(rec.Amount),
		Item:    core.Text(rec.Item),
	}
}

func nonNil(rows []core.ProductionRow) []core.ProductionRow {
	if rows == nil {
		return []core.ProductionRow{}
	}
	return rows
}
