package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// testKey returns a fixed 32-byte key for deterministic testing.
func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func newTestManager(t *testing.T) (*ConfigManager, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cm, err := NewConfigManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewConfigManagerWithKey: %v", err)
	}
	return cm, path
}

func TestLoad_CreatesDefaultConfig(t *testing.T) {
	cm, path := newTestManager(t)

	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	cfg := cm.Get()
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Translator.TargetLang != "vi" || cfg.Translator.SourceLang != "auto" {
		t.Errorf("unexpected default languages: %q -> %q", cfg.Translator.SourceLang, cfg.Translator.TargetLang)
	}
	if cfg.Translator.MaxChunkLength != 4800 {
		t.Errorf("expected default chunk length 4800, got %d", cfg.Translator.MaxChunkLength)
	}
	if cfg.Translator.Provider != ProviderGoogle {
		t.Errorf("expected default provider google, got %q", cfg.Translator.Provider)
	}
	if cfg.OCR.Languages != "jpn+eng+vie" {
		t.Errorf("expected default OCR languages, got %q", cfg.OCR.Languages)
	}
	if !cfg.History.Enabled {
		t.Error("history should be enabled by default")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	cm, path := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	err := cm.Update(map[string]interface{}{
		"llm.api_key":            "sk-test-key-12345",
		"llm.model_name":         "qwen2.5",
		"translator.provider":    "llm",
		"translator.target_lang": "en",
		"ocr.enabled":            false,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	cm2, err := NewConfigManagerWithKey(path, testKey())
	if err != nil {
		t.Fatalf("NewConfigManagerWithKey: %v", err)
	}
	if err := cm2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := cm2.Get()
	if cfg.LLM.APIKey != "sk-test-key-12345" {
		t.Errorf("LLM API key: got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.ModelName != "qwen2.5" {
		t.Errorf("LLM model: got %q", cfg.LLM.ModelName)
	}
	if cfg.Translator.Provider != ProviderLLM || cfg.Translator.TargetLang != "en" {
		t.Errorf("translator: got %+v", cfg.Translator)
	}
	if cfg.OCR.Enabled {
		t.Error("OCR should be disabled after update")
	}
}

func TestEncryptedFieldsOnDisk(t *testing.T) {
	cm, path := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cm.Update(map[string]interface{}{"llm.api_key": "my-secret-api-key"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(data), "my-secret-api-key") {
		t.Error("API key stored in plaintext on disk")
	}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	apiKey, _ := raw["llm"]["api_key"].(string)
	if !strings.HasPrefix(apiKey, encryptedPrefix) {
		t.Errorf("API key on disk should have %q prefix, got %q", encryptedPrefix, apiKey)
	}
}

func TestUpdate_Validation(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	bad := []map[string]interface{}{
		{"nonexistent.key": "value"},
		{"server.port": 0},
		{"server.port": "not-a-number"},
		{"translator.provider": "deepl"},
		{"translator.target_lang": "not a tag!"},
		{"translator.max_chunk_length": -1},
		{"llm.endpoint": 42},
		{"ocr.page_seg_mode": 99},
		{"ocr.enabled": "sometimes"},
	}
	for _, u := range bad {
		if err := cm.Update(u); err == nil {
			t.Errorf("Update(%v) should fail", u)
		}
	}
}

func TestUpdate_Conversions(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	err := cm.Update(map[string]interface{}{
		"server.port":            "9090",
		"server.allowed_origins": []interface{}{"http://a.example", "http://b.example"},
		"translator.workers":     float64(4),
		"translator.rate_limit":  "2.5",
		"history.enabled":        "false",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	cfg := cm.Get()
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{"http://a.example", "http://b.example"}) {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Translator.Workers != 4 || cfg.Translator.RateLimit != 2.5 {
		t.Errorf("translator = %+v", cfg.Translator)
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled")
	}
}

func TestAccessToken(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cm.CheckAccessToken("anything") {
		t.Error("no token configured should allow access")
	}

	if err := cm.Update(map[string]interface{}{"server.access_token": "s3cret"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cfg := cm.Get()
	if cfg.Server.AccessTokenHash == "" || cfg.Server.AccessTokenHash == "s3cret" {
		t.Fatalf("token not hashed: %q", cfg.Server.AccessTokenHash)
	}
	if !cm.CheckAccessToken("s3cret") {
		t.Error("correct token rejected")
	}
	if cm.CheckAccessToken("wrong") {
		t.Error("wrong token accepted")
	}

	if err := cm.Update(map[string]interface{}{"server.access_token": ""}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !cm.CheckAccessToken("") {
		t.Error("clearing the token should allow access")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := cm.Get()
	cfg.Server.Port = 9999
	cfg.Server.AllowedOrigins[0] = "http://evil.example"

	cfg2 := cm.Get()
	if cfg2.Server.Port == 9999 {
		t.Error("Get should return a copy")
	}
	if cfg2.Server.AllowedOrigins[0] == "http://evil.example" {
		t.Error("Get should copy the origin list")
	}
}

func TestLoadPlaintextKey(t *testing.T) {
	cm, path := newTestManager(t)

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "plaintext-key"
	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cm.Get().LLM.APIKey; got != "plaintext-key" {
		t.Errorf("expected plaintext key, got %q", got)
	}
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	cm, path := newTestManager(t)
	if err := os.WriteFile(path, []byte(`{"translator":{"target_lang":"en"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := cm.Get()
	if cfg.Translator.TargetLang != "en" {
		t.Errorf("target = %q", cfg.Translator.TargetLang)
	}
	if cfg.Translator.MaxChunkLength != 4800 || cfg.Server.Port != 8000 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadEnv(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "DOCTRANSLATE_PORT=7070\nDOCTRANSLATE_TARGET_LANG=ja\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCTRANSLATE_PORT", "")
	t.Setenv("DOCTRANSLATE_TARGET_LANG", "")
	os.Unsetenv("DOCTRANSLATE_PORT")
	os.Unsetenv("DOCTRANSLATE_TARGET_LANG")
	t.Setenv("DOCTRANSLATE_PROVIDER", "llm")

	if err := cm.LoadEnv(envFile, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	cfg := cm.Get()
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Translator.TargetLang != "ja" {
		t.Errorf("target = %q", cfg.Translator.TargetLang)
	}
	if cfg.Translator.Provider != ProviderLLM {
		t.Errorf("provider = %q", cfg.Translator.Provider)
	}
}

func TestLoadEnv_InvalidValue(t *testing.T) {
	cm, _ := newTestManager(t)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Setenv("DOCTRANSLATE_PORT", "eighty")
	if err := cm.LoadEnv(); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestNewConfigManager_PersistsKey(t *testing.T) {
	t.Setenv(encryptionKeyEnvVar, "")
	dir := t.TempDir()

	cm, err := NewConfigManager(dir)
	if err != nil {
		t.Fatalf("NewConfigManager: %v", err)
	}
	if cm.Path() != filepath.Join(dir, "config.json") {
		t.Errorf("path = %q", cm.Path())
	}
	if err := cm.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cm.Update(map[string]interface{}{"llm.api_key": "persisted"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "encryption.key")); err != nil {
		t.Fatalf("key file missing: %v", err)
	}

	cm2, err := NewConfigManager(dir)
	if err != nil {
		t.Fatalf("NewConfigManager: %v", err)
	}
	if err := cm2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cm2.Get().LLM.APIKey; got != "persisted" {
		t.Errorf("api key = %q", got)
	}
}

func TestNewConfigManagerWithKey_InvalidKeyLength(t *testing.T) {
	if _, err := NewConfigManagerWithKey("/tmp/test.json", []byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestEncryptDecrypt_EmptyString(t *testing.T) {
	cm, _ := newTestManager(t)

	if got := cm.encryptIfNeeded(""); got != "" {
		t.Errorf("encryptIfNeeded empty: got %q", got)
	}
	got, err := cm.decryptIfNeeded("")
	if err != nil || got != "" {
		t.Errorf("decryptIfNeeded empty: got %q, err %v", got, err)
	}
}

// Property: configuration persistence round-trip.
// For any valid configuration, save then load yields the same values.
func TestProperty_ConfigPersistenceRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp("", "config-pbt-*")
		if err != nil {
			rt.Fatalf("MkdirTemp: %v", err)
		}
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "config.json")

		cm, err := NewConfigManagerWithKey(path, testKey())
		if err != nil {
			rt.Fatalf("NewConfigManagerWithKey: %v", err)
		}
		if err := cm.Load(); err != nil {
			rt.Fatalf("Load: %v", err)
		}

		apiKey := rapid.StringMatching(`[a-zA-Z0-9\-_]{0,64}`).Draw(rt, "apiKey")
		model := rapid.StringMatching(`[a-zA-Z0-9\-_.]{1,32}`).Draw(rt, "model")
		endpoint := rapid.StringMatching(`https?://[a-z]{3,12}\.[a-z]{2,4}/v[0-9]`).Draw(rt, "endpoint")
		provider := rapid.SampledFrom([]string{ProviderGoogle, ProviderLLM}).Draw(rt, "provider")
		target := rapid.SampledFrom([]string{"vi", "en", "ja", "zh-Hans", "fr"}).Draw(rt, "target")
		chunk := rapid.IntRange(1, 20000).Draw(rt, "chunk")
		workers := rapid.IntRange(1, 32).Draw(rt, "workers")
		port := rapid.IntRange(1, 65535).Draw(rt, "port")
		ocrEnabled := rapid.Bool().Draw(rt, "ocr")
		fontPath := rapid.StringMatching(`(/[a-z]{1,8}){0,3}`).Draw(rt, "fontPath")

		err = cm.Update(map[string]interface{}{
			"llm.api_key":                 apiKey,
			"llm.model_name":              model,
			"llm.endpoint":                endpoint,
			"translator.provider":         provider,
			"translator.target_lang":      target,
			"translator.max_chunk_length": chunk,
			"translator.workers":          workers,
			"server.port":                 port,
			"ocr.enabled":                 ocrEnabled,
			"pdf.font_path":               fontPath,
		})
		if err != nil {
			rt.Fatalf("Update: %v", err)
		}

		cm2, err := NewConfigManagerWithKey(path, testKey())
		if err != nil {
			rt.Fatalf("NewConfigManagerWithKey: %v", err)
		}
		if err := cm2.Load(); err != nil {
			rt.Fatalf("Load: %v", err)
		}

		want, got := cm.Get(), cm2.Get()
		if !reflect.DeepEqual(want, got) {
			rt.Fatalf("round-trip mismatch:\n saved  %+v\n loaded %+v", want, got)
		}
	})
}
