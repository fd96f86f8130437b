package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"doctranslate/internal/config"
	"doctranslate/internal/gtranslate"
	"doctranslate/internal/llm"
	"doctranslate/internal/pdfrender"
)

func TestInitialize(t *testing.T) {
	t.Setenv("DOCTRANSLATE_ENCRYPTION_KEY", "")
	t.Setenv("DOCTRANSLATE_OCR_ENABLED", "false")
	dir := t.TempDir()

	as := &AppService{}
	if err := as.Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer as.Close()

	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("config not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "history.db")); err != nil {
		t.Errorf("history db not created: %v", err)
	}
	if as.GetHistory() == nil || as.GetDocManager() == nil {
		t.Fatal("services not wired")
	}
	if as.GetConfig().OCR.Enabled {
		t.Error("env override not applied")
	}

	rec := httptest.NewRecorder()
	as.GetServer().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("history status = %d", rec.Code)
	}
}

func TestInitialize_HistoryDisabled(t *testing.T) {
	t.Setenv("DOCTRANSLATE_ENCRYPTION_KEY", "")
	t.Setenv("DOCTRANSLATE_HISTORY", "false")
	dir := t.TempDir()

	as := &AppService{}
	if err := as.Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer as.Close()

	if as.GetHistory() != nil {
		t.Error("history should be disabled")
	}
	if _, err := os.Stat(filepath.Join(dir, "history.db")); !os.IsNotExist(err) {
		t.Error("history db should not be created")
	}
	rec := httptest.NewRecorder()
	as.GetServer().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("history status = %d", rec.Code)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv("DOCTRANSLATE_ENCRYPTION_KEY", "")
	t.Setenv("DOCTRANSLATE_PORT", "38417")
	as := &AppService{}
	if err := as.Initialize(t.TempDir()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := as.Run(ctx); err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestNewTranslator(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, ok := NewTranslator(cfg).(*gtranslate.Client); !ok {
		t.Error("default provider should be the Google client")
	}
	cfg.Translator.Provider = config.ProviderLLM
	cfg.LLM.Prompt = "Translate to {target}"
	tr, ok := NewTranslator(cfg).(*llm.APITranslator)
	if !ok {
		t.Fatal("llm provider should be the API translator")
	}
	if tr.Prompt != "Translate to {target}" || tr.ModelName != cfg.LLM.ModelName {
		t.Errorf("translator = %+v", tr)
	}
}

func TestNewFontSource(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ttf")
	if err := os.WriteFile(bad, []byte("not a font"), 0644); err != nil {
		t.Fatal(err)
	}

	fonts := NewFontSource(config.PDFConfig{FontPath: bad})
	r := fonts()
	if got := r.Candidates(); len(got) != 1 || got[0] != pdfrender.FamilyDejaVu {
		t.Errorf("candidates = %v", got)
	}

	good := filepath.Join(dir, "good.ttf")
	if err := os.WriteFile(good, append([]byte{0x00, 0x01, 0x00, 0x00}, make([]byte, 64)...), 0644); err != nil {
		t.Fatal(err)
	}
	r = NewFontSource(config.PDFConfig{FontPath: good})()
	if got := r.Candidates(); len(got) != 2 || got[1] != pdfrender.FamilyViet {
		t.Errorf("candidates = %v", got)
	}
	if fonts() == r {
		t.Error("each call should build a fresh registry")
	}
}
