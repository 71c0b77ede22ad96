package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	LogLevel string
	LogFile  string

	HTTPHost     string
	HTTPPort     int
	AllowOrigins []string
	MaxUploadMB  int

	CatalogAPIBaseURL      string
	CatalogAPIToken        string
	CatalogRateLimitRPS    int
	CatalogTimeoutMs       int
	IncrementalLookbackHrs int
	IncrementalLookbackDay int

	CatalogLookupBatch int
	ItemInsertBatch    int
	MatchWriteWorkers  int

	DefaultMarkupPct float64
	AnnualizeFactor  int
	SuggestMinScore  int
	SuggestLimit     int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", filepath.Join(cwd, "logs", "supplymatch.log")),

		HTTPHost:     getEnv("HTTP_HOST", "127.0.0.1"),
		HTTPPort:     getEnvInt("HTTP_PORT", 8082),
		AllowOrigins: strings.Split(getEnv("ALLOW_ORIGINS", "*"), ","),
		MaxUploadMB:  getEnvInt("MAX_UPLOAD_MB", 64),

		CatalogAPIBaseURL:      getEnv("CATALOG_API_BASE_URL", "https://catalog.example.com/api/v1"),
		CatalogAPIToken:        getEnv("CATALOG_API_TOKEN", ""),
		CatalogRateLimitRPS:    getEnvInt("CATALOG_RATE_LIMIT_RPS", 5),
		CatalogTimeoutMs:       getEnvInt("CATALOG_TIMEOUT_MS", 30000),
		IncrementalLookbackHrs: getEnvInt("CATALOG_INCREMENTAL_HOURS", 24),
		IncrementalLookbackDay: getEnvInt("CATALOG_INCREMENTAL_DAYS", 2),

		CatalogLookupBatch: getEnvInt("CATALOG_LOOKUP_BATCH", 500),
		ItemInsertBatch:    getEnvInt("ITEM_INSERT_BATCH", 100),
		MatchWriteWorkers:  getEnvInt("MATCH_WRITE_WORKERS", 4),

		DefaultMarkupPct: getEnvFloat("DEFAULT_MARKUP_PCT", 50),
		AnnualizeFactor:  getEnvInt("ANNUALIZE_FACTOR", 12),
		SuggestMinScore:  getEnvInt("SUGGEST_MIN_SCORE", 30),
		SuggestLimit:     getEnvInt("SUGGEST_LIMIT", 15),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort) }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
