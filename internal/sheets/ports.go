package sheets

import (
	"context"

	"prodboard/internal/core"
)

// Ports for outbound adapters.
type (
	// HistoryReader returns every actual production row.
	HistoryReader interface {
		ListProduction(ctx context.Context) ([]core.ProductionRow, error)
	}

	// RequestReader returns every production request row.
	RequestReader interface {
		ListRequests(ctx context.Context) ([]core.ProductionRow, error)
	}

	// MetaReader returns the raw metadata rows, before grouping.
	MetaReader interface {
		ListMeta(ctx context.Context) ([]core.MetadataOption, error)
	}

	// RowWriter appends a single row to the collection selected by its mode.
	RowWriter interface {
		AppendRow(ctx context.Context, e core.Entry) (rowRef string, err error)
	}

	// BatchAppender appends several rows as one all-or-nothing operation.
	// Stores that cannot guarantee that do not implement it.
	BatchAppender interface {
		AppendRows(ctx context.Context, entries []core.Entry) error
	}

	// BatchWriter replaces every row of one (date, mode, group) scope.
	BatchWriter interface {
		ReplaceBatch(ctx context.Context, b core.Batch) error
	}

	// Store is what the dashboard needs from a backing store.
	Store interface {
		HistoryReader
		RequestReader
		MetaReader
		RowWriter
		BatchWriter
	}
)
