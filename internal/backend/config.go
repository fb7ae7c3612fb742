package backend

import (
	"errors"
	"fmt"

	"lifedash/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	c := Config{
		Remote: RemoteType(appConfig.RemoteBackend),
		Export: ExportType(appConfig.ExportBackend),

		DatabaseURL:    appConfig.DatabaseURL,
		RemoteAPIURL:   appConfig.RemoteAPIURL,
		RemoteAPIToken: appConfig.RemoteAPIToken,
		FetchTimeout:   appConfig.FetchTimeout,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}
	if !c.Export.IsValid() {
		return fmt.Errorf("invalid export backend: %s", c.Export)
	}

	switch c.Remote {
	case PostgresRemote:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for postgres remote backend")
		}
	case RESTRemote:
		if c.RemoteAPIURL == "" {
			return errors.New("remote API URL is required for rest remote backend")
		}
	}

	if c.Export == SheetsExport && c.GoogleSpreadsheetID == "" {
		return errors.New("Google Spreadsheet ID is required for sheets export backend")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout must not be negative, got %s", c.FetchTimeout)
	}
	return nil
}

// RemoteTypeStrings returns all valid remote backend names
func RemoteTypeStrings() []string {
	return []string{MemoryRemote.String(), PostgresRemote.String(), RESTRemote.String()}
}

// ExportTypeStrings returns all valid export backend names
func ExportTypeStrings() []string {
	return []string{MemoryExport.String(), SheetsExport.String()}
}
