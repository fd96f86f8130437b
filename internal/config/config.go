// Package config provides configuration management with encrypted secret
// storage. It supports loading, saving, environment overrides and runtime
// updates of the service configuration.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
)

// encryptionKeyEnvVar is the environment variable name for the AES encryption key.
const encryptionKeyEnvVar = "DOCTRANSLATE_ENCRYPTION_KEY"

// encryptedPrefix marks a value as AES-encrypted in the config file.
const encryptedPrefix = "enc:"

// Translation providers.
const (
	ProviderGoogle = "google"
	ProviderLLM    = "llm"
)

// Config holds all service configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Translator TranslatorConfig `json:"translator"`
	LLM        LLMConfig        `json:"llm"`
	PDF        PDFConfig        `json:"pdf"`
	OCR        OCRConfig        `json:"ocr"`
	History    HistoryConfig    `json:"history"`
	Log        LogConfig        `json:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `json:"port"`
	AllowedOrigins  []string `json:"allowed_origins"`
	AccessTokenHash string   `json:"access_token_hash"`
	MaxUploadMB     int      `json:"max_upload_mb"`
}

// TranslatorConfig selects and tunes the translation provider.
type TranslatorConfig struct {
	Provider       string  `json:"provider"`
	SourceLang     string  `json:"source_lang"`
	TargetLang     string  `json:"target_lang"`
	MaxChunkLength int     `json:"max_chunk_length"`
	Workers        int     `json:"workers"`
	Endpoint       string  `json:"endpoint"`
	RateLimit      float64 `json:"rate_limit"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// LLMConfig holds the OpenAI-compatible translation provider configuration.
type LLMConfig struct {
	Endpoint       string  `json:"endpoint"`
	APIKey         string  `json:"api_key"`
	ModelName      string  `json:"model_name"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	Prompt         string  `json:"prompt,omitempty"`
}

// PDFConfig holds PDF output configuration. FontPath is registered as the
// "VietFont" family; SystemFonts enables discovery of an installed Unicode
// font registered as "Arial".
type PDFConfig struct {
	FontPath    string `json:"font_path"`
	SystemFonts bool   `json:"system_fonts"`
}

// OCRConfig holds the image-only page recognizer configuration.
type OCRConfig struct {
	Enabled        bool   `json:"enabled"`
	Languages      string `json:"languages"`
	PageSegMode    int    `json:"page_seg_mode"`
	DPI            int    `json:"dpi"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// HistoryConfig holds the job history store configuration. A relative
// DBPath is resolved against the data directory.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"db_path"`
}

// LogConfig holds the error log configuration.
type LogConfig struct {
	Dir            string `json:"dir"`
	RotationSizeMB int    `json:"rotation_size_mb"`
	MaxBackups     int    `json:"max_backups"`
}

// ConfigManager manages loading, saving, and updating configuration.
type ConfigManager struct {
	configPath    string
	config        *Config
	mu            sync.RWMutex
	encryptionKey []byte // 32-byte AES-256 key
}

// NewConfigManager creates a ConfigManager for <dataDir>/config.json. The
// AES key is read from DOCTRANSLATE_ENCRYPTION_KEY, then from
// <dataDir>/encryption.key, and generated into that file when neither exists.
func NewConfigManager(dataDir string) (*ConfigManager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	key, err := getOrCreateEncryptionKey(filepath.Join(dataDir, "encryption.key"))
	if err != nil {
		return nil, fmt.Errorf("encryption key error: %w", err)
	}
	return &ConfigManager{
		configPath:    filepath.Join(dataDir, "config.json"),
		encryptionKey: key,
	}, nil
}

// NewConfigManagerWithKey creates a ConfigManager with an explicit encryption key (for testing).
func NewConfigManagerWithKey(configPath string, key []byte) (*ConfigManager, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes for AES-256")
	}
	return &ConfigManager{
		configPath:    configPath,
		encryptionKey: key,
	}, nil
}

// Path returns the config file path.
func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			AllowedOrigins: []string{"http://localhost:8080", "http://127.0.0.1:8080"},
			MaxUploadMB:    50,
		},
		Translator: TranslatorConfig{
			Provider:       ProviderGoogle,
			SourceLang:     "auto",
			TargetLang:     "vi",
			MaxChunkLength: 4800,
			Workers:        1,
			Endpoint:       "https://translate.googleapis.com/translate_a/single",
			RateLimit:      5,
			TimeoutSeconds: 30,
		},
		LLM: LLMConfig{
			Endpoint:       "https://api.openai.com/v1",
			ModelName:      "gpt-4o-mini",
			Temperature:    0.3,
			MaxTokens:      4096,
			TimeoutSeconds: 120,
		},
		PDF: PDFConfig{
			SystemFonts: true,
		},
		OCR: OCRConfig{
			Enabled:        true,
			Languages:      "jpn+eng+vie",
			PageSegMode:    6,
			DPI:            300,
			TimeoutSeconds: 120,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "history.db",
		},
		Log: LogConfig{
			RotationSizeMB: 100,
			MaxBackups:     10,
		},
	}
}

// Load reads the config file from disk and decrypts secrets.
// If the file does not exist, it initializes with default values and saves.
func (cm *ConfigManager) Load() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cm.config = DefaultConfig()
			return cm.saveLocked()
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if cfg.LLM.APIKey, err = cm.decryptIfNeeded(cfg.LLM.APIKey); err != nil {
		return fmt.Errorf("decrypt LLM API key: %w", err)
	}

	cm.applyDefaults(&cfg)
	cm.config = &cfg
	return nil
}

// Save writes the current config to disk with secrets encrypted.
func (cm *ConfigManager) Save() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.saveLocked()
}

// saveLocked writes config to disk. Caller must hold at least a read lock.
func (cm *ConfigManager) saveLocked() error {
	if cm.config == nil {
		return errors.New("no config loaded")
	}

	out := *cm.config
	out.LLM.APIKey = cm.encryptIfNeeded(cm.config.LLM.APIKey)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.config == nil {
		return nil
	}
	c := *cm.config
	if cm.config.Server.AllowedOrigins != nil {
		c.Server.AllowedOrigins = append([]string(nil), cm.config.Server.AllowedOrigins...)
	}
	return &c
}

// CheckAccessToken reports whether token matches the configured access token.
// It returns true when no access token is configured.
func (cm *ConfigManager) CheckAccessToken(token string) bool {
	cm.mu.RLock()
	hash := ""
	if cm.config != nil {
		hash = cm.config.Server.AccessTokenHash
	}
	cm.mu.RUnlock()

	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// LoadEnv reads .env files (missing files are ignored) and applies
// DOCTRANSLATE_* environment overrides to the loaded configuration. The
// overrides are not written back unless the configuration is saved.
func (cm *ConfigManager) LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.config == nil {
		cm.config = DefaultConfig()
	}
	for env, key := range envOverrides {
		val, ok := os.LookupEnv(env)
		if !ok || val == "" {
			continue
		}
		if err := cm.applyUpdate(key, val); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

// envOverrides maps environment variables to config keys.
var envOverrides = map[string]string{
	"DOCTRANSLATE_PORT":         "server.port",
	"DOCTRANSLATE_PROVIDER":     "translator.provider",
	"DOCTRANSLATE_SOURCE_LANG":  "translator.source_lang",
	"DOCTRANSLATE_TARGET_LANG":  "translator.target_lang",
	"DOCTRANSLATE_WORKERS":      "translator.workers",
	"DOCTRANSLATE_LLM_ENDPOINT": "llm.endpoint",
	"DOCTRANSLATE_LLM_API_KEY":  "llm.api_key",
	"DOCTRANSLATE_LLM_MODEL":    "llm.model_name",
	"DOCTRANSLATE_FONT_PATH":    "pdf.font_path",
	"DOCTRANSLATE_OCR_ENABLED":  "ocr.enabled",
	"DOCTRANSLATE_HISTORY":      "history.enabled",
}

// Update applies partial updates to the configuration and saves to disk.
// Keys are dotted "section.field" names matching the JSON layout;
// "server.access_token" stores the bcrypt hash of the given token.
func (cm *ConfigManager) Update(updates map[string]interface{}) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.config == nil {
		cm.config = DefaultConfig()
	}

	for key, val := range updates {
		if err := cm.applyUpdate(key, val); err != nil {
			return fmt.Errorf("update key %q: %w", key, err)
		}
	}

	return cm.saveLocked()
}

func (cm *ConfigManager) applyUpdate(key string, val interface{}) error {
	c := cm.config
	var err error
	switch key {
	// Server fields
	case "server.port":
		var n int
		if n, err = toInt(val); err == nil {
			if n < 1 || n > 65535 {
				return errors.New("port must be between 1 and 65535")
			}
			c.Server.Port = n
		}
	case "server.allowed_origins":
		c.Server.AllowedOrigins, err = toStringList(val)
	case "server.access_token":
		var s string
		if s, err = toString(val); err == nil {
			if s == "" {
				c.Server.AccessTokenHash = ""
				return nil
			}
			hash, herr := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
			if herr != nil {
				return fmt.Errorf("hash access token: %w", herr)
			}
			c.Server.AccessTokenHash = string(hash)
		}
	case "server.access_token_hash":
		c.Server.AccessTokenHash, err = toString(val)
	case "server.max_upload_mb":
		c.Server.MaxUploadMB, err = toPositiveInt(val)

	// Translator fields
	case "translator.provider":
		var s string
		if s, err = toString(val); err == nil {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != ProviderGoogle && s != ProviderLLM {
				return fmt.Errorf("provider must be %q or %q", ProviderGoogle, ProviderLLM)
			}
			c.Translator.Provider = s
		}
	case "translator.source_lang":
		var s string
		if s, err = toString(val); err == nil {
			if s != "auto" {
				if _, perr := language.Parse(s); perr != nil {
					return fmt.Errorf("invalid language tag %q", s)
				}
			}
			c.Translator.SourceLang = s
		}
	case "translator.target_lang":
		var s string
		if s, err = toString(val); err == nil {
			if _, perr := language.Parse(s); perr != nil {
				return fmt.Errorf("invalid language tag %q", s)
			}
			c.Translator.TargetLang = s
		}
	case "translator.max_chunk_length":
		c.Translator.MaxChunkLength, err = toPositiveInt(val)
	case "translator.workers":
		c.Translator.Workers, err = toPositiveInt(val)
	case "translator.endpoint":
		c.Translator.Endpoint, err = toString(val)
	case "translator.rate_limit":
		c.Translator.RateLimit, err = toFloat64(val)
	case "translator.timeout_seconds":
		c.Translator.TimeoutSeconds, err = toPositiveInt(val)

	// LLM fields
	case "llm.endpoint":
		c.LLM.Endpoint, err = toString(val)
	case "llm.api_key":
		c.LLM.APIKey, err = toString(val)
	case "llm.model_name":
		c.LLM.ModelName, err = toString(val)
	case "llm.temperature":
		c.LLM.Temperature, err = toFloat64(val)
	case "llm.max_tokens":
		c.LLM.MaxTokens, err = toPositiveInt(val)
	case "llm.timeout_seconds":
		c.LLM.TimeoutSeconds, err = toPositiveInt(val)
	case "llm.prompt":
		c.LLM.Prompt, err = toString(val)

	// PDF fields
	case "pdf.font_path":
		c.PDF.FontPath, err = toString(val)
	case "pdf.system_fonts":
		c.PDF.SystemFonts, err = toBool(val)

	// OCR fields
	case "ocr.enabled":
		c.OCR.Enabled, err = toBool(val)
	case "ocr.languages":
		c.OCR.Languages, err = toString(val)
	case "ocr.page_seg_mode":
		var n int
		if n, err = toInt(val); err == nil {
			if n < 0 || n > 13 {
				return errors.New("page_seg_mode must be between 0 and 13")
			}
			c.OCR.PageSegMode = n
		}
	case "ocr.dpi":
		c.OCR.DPI, err = toPositiveInt(val)
	case "ocr.timeout_seconds":
		c.OCR.TimeoutSeconds, err = toPositiveInt(val)

	// History fields
	case "history.enabled":
		c.History.Enabled, err = toBool(val)
	case "history.db_path":
		c.History.DBPath, err = toString(val)

	// Log fields
	case "log.dir":
		c.Log.Dir, err = toString(val)
	case "log.rotation_size_mb":
		c.Log.RotationSizeMB, err = toPositiveInt(val)
	case "log.max_backups":
		c.Log.MaxBackups, err = toPositiveInt(val)

	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return err
}

// applyDefaults fills in zero-value fields with defaults.
func (cm *ConfigManager) applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = defaults.Server.MaxUploadMB
	}
	if cfg.Translator.Provider == "" {
		cfg.Translator.Provider = defaults.Translator.Provider
	}
	if cfg.Translator.SourceLang == "" {
		cfg.Translator.SourceLang = defaults.Translator.SourceLang
	}
	if cfg.Translator.TargetLang == "" {
		cfg.Translator.TargetLang = defaults.Translator.TargetLang
	}
	if cfg.Translator.MaxChunkLength == 0 {
		cfg.Translator.MaxChunkLength = defaults.Translator.MaxChunkLength
	}
	if cfg.Translator.Workers == 0 {
		cfg.Translator.Workers = defaults.Translator.Workers
	}
	if cfg.Translator.Endpoint == "" {
		cfg.Translator.Endpoint = defaults.Translator.Endpoint
	}
	if cfg.Translator.TimeoutSeconds == 0 {
		cfg.Translator.TimeoutSeconds = defaults.Translator.TimeoutSeconds
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = defaults.LLM.Endpoint
	}
	if cfg.LLM.ModelName == "" {
		cfg.LLM.ModelName = defaults.LLM.ModelName
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = defaults.LLM.Temperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = defaults.LLM.TimeoutSeconds
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = defaults.OCR.Languages
	}
	if cfg.OCR.PageSegMode == 0 {
		cfg.OCR.PageSegMode = defaults.OCR.PageSegMode
	}
	if cfg.OCR.DPI == 0 {
		cfg.OCR.DPI = defaults.OCR.DPI
	}
	if cfg.OCR.TimeoutSeconds == 0 {
		cfg.OCR.TimeoutSeconds = defaults.OCR.TimeoutSeconds
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = defaults.History.DBPath
	}
	if cfg.Log.RotationSizeMB == 0 {
		cfg.Log.RotationSizeMB = defaults.Log.RotationSizeMB
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = defaults.Log.MaxBackups
	}
}

// --- AES-GCM encryption helpers ---

// encrypt encrypts plaintext using AES-256-GCM.
func (cm *ConfigManager) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(cm.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// decrypt decrypts AES-256-GCM encrypted hex string.
func (cm *ConfigManager) decrypt(ciphertextHex string) (string, error) {
	if ciphertextHex == "" {
		return "", nil
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("hex decode: %w", err)
	}
	block, err := aes.NewCipher(cm.encryptionKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// encryptIfNeeded encrypts a value and adds the "enc:" prefix.
// Empty strings are returned as-is.
func (cm *ConfigManager) encryptIfNeeded(value string) string {
	if value == "" {
		return ""
	}
	encrypted, err := cm.encrypt(value)
	if err != nil {
		return value
	}
	return encryptedPrefix + encrypted
}

// decryptIfNeeded decrypts a value if it has the "enc:" prefix.
func (cm *ConfigManager) decryptIfNeeded(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, encryptedPrefix) && len(value) > len(encryptedPrefix) {
		return cm.decrypt(value[len(encryptedPrefix):])
	}
	// Not encrypted (e.g., manually edited config)
	return value, nil
}

// --- Encryption key management ---

func getOrCreateEncryptionKey(keyFile string) ([]byte, error) {
	// 1. Check environment variable first
	keyHex := os.Getenv(encryptionKeyEnvVar)
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
		}
		return key, nil
	}

	// 2. Try to read from persistent key file
	if data, err := os.ReadFile(keyFile); err == nil {
		keyHex = strings.TrimSpace(string(data))
		if key, err := hex.DecodeString(keyHex); err == nil && len(key) == 32 {
			return key, nil
		}
	}

	// 3. Generate a new random key and persist it
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	keyHex = hex.EncodeToString(key)
	if err := os.WriteFile(keyFile, []byte(keyHex+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("save encryption key: %w", err)
	}
	return key, nil
}

// --- Type conversion helpers ---

func toString(val interface{}) (string, error) {
	s, ok := val.(string)
	if !ok {
		return "", errors.New("expected string")
	}
	return s, nil
}

func toBool(val interface{}) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, errors.New("expected boolean")
		}
		return b, nil
	default:
		return false, errors.New("expected boolean")
	}
}

func toStringList(val interface{}) ([]string, error) {
	var out []string
	switch v := val.(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New("expected list of strings")
			}
			out = append(out, s)
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		return nil, errors.New("expected list of strings")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func toFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", val)
	}
}

func toInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", val)
	}
}

func toPositiveInt(val interface{}) (int, error) {
	n, err := toInt(val)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("value must be positive")
	}
	return n, nil
}
