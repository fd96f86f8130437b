// Package handler provides the App struct that serves as the API facade
// for the document translation service, delegating to the document manager,
// config manager and job history.
package handler

import (
	"context"

	"doctranslate/internal/config"
	"doctranslate/internal/document"
	"doctranslate/internal/history"
)

// HistoryReader lists recorded jobs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Job, error)
}

// App is the API facade that binds the backend services for the HTTP layer.
type App struct {
	docManager    *document.DocumentManager
	configManager *config.ConfigManager
	history       HistoryReader
}

// NewApp creates a new App with all service dependencies injected. A nil
// history reader means history is disabled.
func NewApp(dm *document.DocumentManager, cm *config.ConfigManager, h HistoryReader) *App {
	return &App{
		docManager:    dm,
		configManager: cm,
		history:       h,
	}
}

// DocManager returns the document manager.
func (a *App) DocManager() *document.DocumentManager {
	return a.docManager
}

// maxUploadBytes returns the configured upload limit.
func (a *App) maxUploadBytes() int64 {
	mb := 50
	if a.configManager != nil {
		if cfg := a.configManager.Get(); cfg != nil && cfg.Server.MaxUploadMB > 0 {
			mb = cfg.Server.MaxUploadMB
		}
	}
	return int64(mb) << 20
}

// CheckAccessToken reports whether token grants API access.
func (a *App) CheckAccessToken(token string) bool {
	if a.configManager == nil {
		return true
	}
	return a.configManager.CheckAccessToken(token)
}

// RecentJobs returns up to limit history rows; ok is false when history is
// disabled.
func (a *App) RecentJobs(ctx context.Context, limit int) (jobs []history.Job, ok bool, err error) {
	if a.history == nil {
		return []history.Job{}, false, nil
	}
	jobs, err = a.history.Recent(ctx, limit)
	return jobs, true, err
}
