// Package service provides the application service layer that encapsulates
// initialization and lifecycle management for the translation service.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"doctranslate/internal/assembler"
	"doctranslate/internal/auth"
	"doctranslate/internal/config"
	"doctranslate/internal/db"
	"doctranslate/internal/document"
	"doctranslate/internal/errlog"
	"doctranslate/internal/fontcheck"
	"doctranslate/internal/gtranslate"
	"doctranslate/internal/handler"
	"doctranslate/internal/history"
	"doctranslate/internal/llm"
	"doctranslate/internal/ocr"
	"doctranslate/internal/parser"
	"doctranslate/internal/pdfrender"
	"doctranslate/internal/router"
	"doctranslate/internal/translate"
)

// AppService encapsulates the entire application initialization and lifecycle.
type AppService struct {
	server        *http.Server
	configManager *config.ConfigManager
	database      *sql.DB
	history       *history.Store
	docManager    *document.DocumentManager
	app           *handler.App
	limiter       *auth.LoginLimiter
	cfg           *config.Config
	dataDir       string
}

// Initialize sets up all services and prepares the application for running.
// The dataDir parameter specifies the root data directory; envFiles are
// optional .env files applied on top of the stored configuration.
func (as *AppService) Initialize(dataDir string, envFiles ...string) error {
	as.dataDir = dataDir

	// 1. Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// 2. Initialize ConfigManager, load config and apply environment overrides
	cm, err := config.NewConfigManager(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}
	if err := cm.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cm.LoadEnv(envFiles...); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	as.configManager = cm
	as.cfg = cm.Get()

	// 3. Error log
	logDir := as.cfg.Log.Dir
	if logDir == "" {
		logDir = filepath.Join(dataDir, "logs")
	}
	if err := errlog.Init(errlog.Options{
		Dir:            logDir,
		RotationSizeMB: as.cfg.Log.RotationSizeMB,
		MaxBackups:     as.cfg.Log.MaxBackups,
	}); err != nil {
		log.Printf("[Init] error log unavailable: %v", err)
	}

	// 4. Job history
	var reader handler.HistoryReader
	var recorder history.Recorder
	if as.cfg.History.Enabled {
		dbPath := as.cfg.History.DBPath
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(dataDir, dbPath)
		}
		database, err := db.InitDB(dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		as.database = database
		as.history = history.NewStore(database)
		reader, recorder = as.history, as.history
	} else {
		log.Println("[Init] job history disabled")
	}

	// 5. Pipeline stages
	dp := &parser.DocumentParser{OCR: newOCREngine(as.cfg.OCR)}
	if as.cfg.OCR.TimeoutSeconds > 0 {
		dp.OCRTimeout = time.Duration(as.cfg.OCR.TimeoutSeconds) * time.Second
	}
	orch := translate.NewOrchestrator(NewTranslator(as.cfg), as.cfg.Translator.MaxChunkLength)
	orch.Workers = as.cfg.Translator.Workers
	asm := assembler.New(NewFontSource(as.cfg.PDF))

	as.docManager = document.NewDocumentManager(dp, orch, asm, recorder)
	as.docManager.SetDefaultLanguages(as.cfg.Translator.SourceLang, as.cfg.Translator.TargetLang)
	as.app = handler.NewApp(as.docManager, cm, reader)

	// 6. Create HTTP server
	as.limiter = auth.NewLoginLimiter()
	as.server = &http.Server{
		Addr: fmt.Sprintf("0.0.0.0:%d", as.cfg.Server.Port),
		Handler: router.New(as.app, router.Options{
			AllowedOrigins: as.cfg.Server.AllowedOrigins,
			Limiter:        as.limiter,
		}),
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      600 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("[Init] provider=%s target=%s workers=%d ocr=%v history=%v",
		as.cfg.Translator.Provider, as.cfg.Translator.TargetLang, orch.Workers, dp.OCR != nil, as.cfg.History.Enabled)
	return nil
}

// NewTranslator builds the translation provider selected by cfg.
func NewTranslator(cfg *config.Config) translate.Translator {
	switch cfg.Translator.Provider {
	case config.ProviderLLM:
		t := llm.NewAPITranslator(
			cfg.LLM.Endpoint,
			cfg.LLM.APIKey,
			cfg.LLM.ModelName,
			cfg.LLM.Temperature,
			cfg.LLM.MaxTokens,
			time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
		)
		t.Prompt = cfg.LLM.Prompt
		return t
	default:
		return gtranslate.NewClient(
			cfg.Translator.Endpoint,
			cfg.Translator.RateLimit,
			time.Duration(cfg.Translator.TimeoutSeconds)*time.Second,
		)
	}
}

// newOCREngine returns the recognizer for image-only PDF pages, or nil when
// OCR is disabled or unavailable in this build.
func newOCREngine(cfg config.OCRConfig) parser.OCREngine {
	if !cfg.Enabled {
		return nil
	}
	engine, err := ocr.New(ocr.Options{
		Languages:   ocr.ParseLanguages(cfg.Languages),
		PageSegMode: cfg.PageSegMode,
		DPI:         cfg.DPI,
	})
	if err != nil {
		log.Printf("[OCR] disabled: %v", err)
		return nil
	}
	return engine
}

// NewFontSource returns a constructor of per-render font registries: the
// bundled font, the configured font file as "VietFont" and, when enabled,
// an installed Unicode system font as "Arial". Font files are read once.
func NewFontSource(cfg config.PDFConfig) func() *pdfrender.FontRegistry {
	var viet, system []byte
	if cfg.FontPath != "" {
		if data, err := readFont(cfg.FontPath); err != nil {
			log.Printf("[Fonts] configured font ignored: %v", err)
			errlog.Logf("[Fonts] configured font ignored: %v", err)
		} else {
			viet = data
		}
	}
	if cfg.SystemFonts {
		if path := fontcheck.FindUnicodeFont(); path != "" {
			if data, err := readFont(path); err == nil {
				system = data
			}
		}
	}

	return func() *pdfrender.FontRegistry {
		r := pdfrender.NewFontRegistry()
		if viet != nil {
			r.Register(pdfrender.FamilyViet, viet, nil)
		}
		if system != nil {
			r.Register(pdfrender.FamilyArial, system, nil)
		}
		return r
	}
}

func readFont(path string) ([]byte, error) {
	if !fontcheck.IsTrueType(path) {
		return nil, fmt.Errorf("%s is not a TrueType font", path)
	}
	return os.ReadFile(path)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// Implements graceful shutdown when ctx is done.
func (as *AppService) Run(ctx context.Context) error {
	if as.server == nil {
		return fmt.Errorf("server not initialized - call Initialize first")
	}

	go as.cleanLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Document translation service starting on http://%s", as.server.Addr)
		errCh <- as.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("Received shutdown signal, shutting down gracefully...")
		return as.Shutdown(10 * time.Second)
	case err := <-errCh:
		if err != http.ErrServerClosed {
			as.Close()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// cleanLimiter drops expired lockout entries hourly until ctx is done.
func (as *AppService) cleanLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			as.limiter.CleanOld()
		}
	}
}

// Shutdown gracefully shuts down the HTTP server and cleans up resources.
func (as *AppService) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if as.server != nil {
		if err := as.server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}
	as.Close()
	log.Println("Server stopped")
	return nil
}

// Close releases the database and the error log. It is used directly by
// one-shot CLI commands that never start the server.
func (as *AppService) Close() {
	if as.database != nil {
		if err := as.database.Close(); err != nil {
			log.Printf("Database close error: %v", err)
		}
		as.database = nil
	}
	errlog.Close()
}

// GetServer returns the HTTP server instance.
func (as *AppService) GetServer() *http.Server {
	return as.server
}

// GetConfigManager returns the configuration manager.
func (as *AppService) GetConfigManager() *config.ConfigManager {
	return as.configManager
}

// GetConfig returns the configuration loaded at Initialize.
func (as *AppService) GetConfig() *config.Config {
	return as.cfg
}

// GetDataDir returns the data directory path.
func (as *AppService) GetDataDir() string {
	return as.dataDir
}

// GetDocManager returns the document manager.
func (as *AppService) GetDocManager() *document.DocumentManager {
	return as.docManager
}

// GetDB returns the history database, or nil when history is disabled.
func (as *AppService) GetDB() *sql.DB {
	return as.database
}

// GetHistory returns the job history store, or nil when history is disabled.
func (as *AppService) GetHistory() *history.Store {
	return as.history
}
