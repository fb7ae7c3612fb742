// Package backend builds the remote fetcher and export sink selected by
// configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lifedash/internal/pagination"
	"lifedash/internal/remote/memory"
	"lifedash/internal/remote/postgres"
	"lifedash/internal/remote/rest"
	gsheet "lifedash/internal/sheets/google"
	sheetmem "lifedash/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateFetcher implements Factory.CreateFetcher
func (f *DefaultFactory) CreateFetcher(ctx context.Context, config Config) (*FetcherResult, error) {
	if !config.Remote.IsValid() {
		return nil, fmt.Errorf("invalid remote backend: %s", config.Remote)
	}

	var (
		res *FetcherResult
		err error
	)
	switch config.Remote {
	case PostgresRemote:
		res, err = f.createPostgresFetcher(ctx, config)
	case RESTRemote:
		res, err = f.createRESTFetcher(config)
	case MemoryRemote:
		f.logger.Info("Initialized memory remote backend")
		res = &FetcherResult{Fetcher: memory.New()}
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", config.Remote)
	}
	if err != nil {
		return nil, err
	}
	res.Fetcher = WithTimeout(res.Fetcher, config.FetchTimeout)
	return res, nil
}

func (f *DefaultFactory) createPostgresFetcher(ctx context.Context, config Config) (*FetcherResult, error) {
	pool, err := postgres.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	fetcher := postgres.NewFetcher(pool)
	if err := fetcher.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	f.logger.Info("Initialized postgres remote backend")

	return &FetcherResult{
		Fetcher: fetcher,
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

func (f *DefaultFactory) createRESTFetcher(config Config) (*FetcherResult, error) {
	var opts []rest.Option
	if config.RemoteAPIToken != "" {
		opts = append(opts, rest.WithToken(config.RemoteAPIToken))
	}
	fetcher, err := rest.NewFetcher(config.RemoteAPIURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST fetcher: %w", err)
	}

	f.logger.Info("Initialized REST remote backend",
		"url", config.RemoteAPIURL,
		"authenticated", config.RemoteAPIToken != "")

	return &FetcherResult{Fetcher: fetcher}, nil
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (*ExporterResult, error) {
	switch config.Export {
	case SheetsExport:
		exp, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
		}
		f.logger.Info("Initialized Google Sheets export backend", "sheet", config.GoogleSheetName)
		return &ExporterResult{Exporter: exp}, nil
	case MemoryExport:
		f.logger.Info("Initialized memory export backend")
		return &ExporterResult{Exporter: sheetmem.New()}, nil
	default:
		return nil, fmt.Errorf("invalid export backend: %s", config.Export)
	}
}

// WithTimeout bounds every Fetch call by d. A non-positive d returns next
// unchanged.
func WithTimeout(next pagination.Fetcher, d time.Duration) pagination.Fetcher {
	if d <= 0 {
		return next
	}
	return pagination.FetcherFunc(func(ctx context.Context, req pagination.Request) (pagination.Page, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Fetch(ctx, req)
	})
}
