package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"prodboard/internal/adapters"
	"prodboard/internal/amqp"
	gsheet "prodboard/internal/sheets/google"
	"prodboard/internal/sheets/memory"
	"prodboard/internal/sheets/webapp"
	"prodboard/internal/storage"
)

// Result is a ready store. Cleanup, when set, releases its connections.
type Result struct {
	Backend Backend
	Cleanup func() error
}

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateBackend validates cfg and opens the store it names.
func (f *Factory) CreateBackend(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case WebApp:
		return f.webApp(cfg.WebApp)
	case SQLite:
		return f.sqlite(ctx, cfg)
	case Sheets:
		return f.sheets(ctx, cfg.Sheets)
	default:
		return f.memory(cfg.dataDir())
	}
}

func (f *Factory) webApp(cfg WebAppConfig) (*Result, error) {
	client, err := webapp.New(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize web app client: %w", err)
	}
	f.logger.Info("Initialized web app backend", "timeout", cfg.Timeout)
	return &Result{Backend: client}, nil
}

func (f *Factory) sqlite(ctx context.Context, cfg Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	if err := f.seedMeta(ctx, repo, cfg.dataDir()); err != nil {
		_ = repo.Close()
		return nil, err
	}

	// A broker that cannot be reached only disables announcements. The
	// publisher stays a nil interface, not a nil *amqp.Client.
	var (
		broker    *amqp.Client
		publisher adapters.SyncPublisher
	)
	if cfg.SQLite.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.SQLite.AMQPURL, cfg.SQLite.AMQPExchange, cfg.SQLite.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
			broker = nil
		} else {
			publisher = broker
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", cfg.SQLite.Path,
		"amqp_enabled", broker != nil)

	return &Result{
		Backend: adapters.NewSQLiteAdapter(repo, publisher),
		Cleanup: func() error {
			var errs []error
			if broker != nil {
				if err := broker.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			if err := repo.Close(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}

// seedMeta fills an empty metadata table from the memory seed files so a
// fresh database has something to offer in the dropdowns.
func (f *Factory) seedMeta(ctx context.Context, repo *storage.SQLiteRepository, dataDir string) error {
	existing, err := repo.ListMeta(ctx)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	seed, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return fmt.Errorf("load metadata seed: %w", err)
	}
	opts, _ := seed.ListMeta(ctx)
	if err := repo.ReplaceMeta(ctx, opts); err != nil {
		return fmt.Errorf("seed metadata: %w", err)
	}
	f.logger.Info("Seeded metadata", "options", len(opts))
	return nil
}

func (f *Factory) sheets(ctx context.Context, opts gsheet.Options) (*Result, error) {
	client, err := gsheet.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet", opts.SpreadsheetID)
	return &Result{Backend: client}, nil
}

func (f *Factory) memory(dataDir string) (*Result, error) {
	store, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory seed: %w", err)
	}
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return &Result{Backend: store}, nil
}
