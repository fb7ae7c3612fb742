package backend

import (
	"context"
	"time"

	"lifedash/internal/pagination"
	"lifedash/internal/sheets"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// FetcherResult is the remote page source handed to every session.
type FetcherResult struct {
	Fetcher pagination.Fetcher
	Cleanup CleanupFunc
}

// ExporterResult is the sink the sync worker writes changes to.
type ExporterResult struct {
	Exporter sheets.RecordExporter
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateFetcher(ctx context.Context, config Config) (*FetcherResult, error)
	CreateExporter(ctx context.Context, config Config) (*ExporterResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Remote RemoteType
	Export ExportType

	// Postgres
	DatabaseURL string

	// REST
	RemoteAPIURL   string
	RemoteAPIToken string

	// Applied to every page fetch; zero leaves the caller's context alone.
	FetchTimeout time.Duration

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// RemoteType names where transaction pages come from.
type RemoteType string

const (
	MemoryRemote   RemoteType = "memory"
	PostgresRemote RemoteType = "postgres"
	RESTRemote     RemoteType = "rest"
)

func (rt RemoteType) String() string {
	return string(rt)
}

// IsValid returns true if the remote type is valid
func (rt RemoteType) IsValid() bool {
	switch rt {
	case MemoryRemote, PostgresRemote, RESTRemote:
		return true
	default:
		return false
	}
}

// ExportType names where synced changes are written.
type ExportType string

const (
	MemoryExport ExportType = "memory"
	SheetsExport ExportType = "sheets"
)

func (et ExportType) String() string {
	return string(et)
}

func (et ExportType) IsValid() bool {
	switch et {
	case MemoryExport, SheetsExport:
		return true
	default:
		return false
	}
}
