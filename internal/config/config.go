package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SafeEnvs are environments where auth and rate limiting are bypassed.
var SafeEnvs = map[string]bool{
	"local": true,
	"test":  true,
	"unit":  true,
	"e2e":   true,
}

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Zendesk    ZendeskConfig
	SharePoint SharePointConfig
	Email      EmailConfig
	RateLimit  RateLimitConfig
	Redis      RedisConfig
	Export     ExportConfig
	Logger     LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigins           []string
	ReportTimezone        string
}

// ZendeskConfig holds values that are stable for a process lifetime.
// Credentials are deliberately absent: they rotate, so the adapter resolves
// them per call via ResolveZendeskCredentials.
type ZendeskConfig struct {
	GroupIDs []string
}

// ZendeskCredentials is the per-call snapshot of the Zendesk auth material.
type ZendeskCredentials struct {
	Subdomain string
	Email     string
	Token     string
}

// BaseURL returns the API root for the configured subdomain.
func (z ZendeskCredentials) BaseURL() string {
	return fmt.Sprintf("https://%s.zendesk.com/api/v2", z.Subdomain)
}

// SharePointConfig holds Microsoft Graph upload values.
type SharePointConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteHost     string
	SiteName     string
	DocLib       string
	FolderPath   string
}

// EmailConfig holds SMTP notification values.
type EmailConfig struct {
	Server     string
	Port       int
	User       string
	Pass       string
	Recipients []string
	LogPath    string
}

// RateLimitConfig bounds per-client request admission.
type RateLimitConfig struct {
	WindowSeconds int
	MaxRequests   int
}

// RedisConfig holds the optional resolution-cache connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ExportConfig locates the persisted export metadata.
type ExportConfig struct {
	MetaPath string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults
// where possible. It also normalizes the execution-mode flags so APP_ENV,
// UNIT_MODE and INTEGRATION_MODE agree before anything else reads them.
func Load() (*Config, error) {
	_ = godotenv.Load()

	normalizeEnv()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "zendesk-reporting"),
			Env:                   strings.ToLower(getEnv("APP_ENV", "local")),
			Host:                  getEnv("API_HOST", "0.0.0.0"),
			Port:                  getEnv("API_PORT", "8000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigins:           splitCSV(os.Getenv("CORS_ORIGINS")),
			ReportTimezone:        getEnv("REPORT_TIMEZONE", "America/New_York"),
		},
		Zendesk: ZendeskConfig{
			GroupIDs: splitCSV(os.Getenv("OAPS_GROUP_IDS")),
		},
		SharePoint: SharePointConfig{
			TenantID:     os.Getenv("TENANT_ID"),
			ClientID:     os.Getenv("CLIENT_ID"),
			ClientSecret: os.Getenv("CLIENT_SECRET"),
			SiteHost:     os.Getenv("SHAREPOINT_SITE_HOST"),
			SiteName:     os.Getenv("SHAREPOINT_SITE_NAME"),
			DocLib:       getEnv("SHAREPOINT_DOC_LIB", "Shared Documents"),
			FolderPath:   getEnv("SHAREPOINT_FOLDER_PATH", "Cross-functional/Zendesk/Bi-Weekly Reports"),
		},
		Email: EmailConfig{
			Server:     getEnv("SMTP_SERVER", "smtp.office365.com"),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			User:       os.Getenv("EMAIL_USER"),
			Pass:       os.Getenv("EMAIL_PASS"),
			Recipients: splitCSV(os.Getenv("EMAIL_TO")),
			LogPath:    getEnv("EMAIL_LOG_PATH", "data/email_log.csv"),
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW", 60),
			MaxRequests:   getEnvAsInt("MAX_REQUESTS_PER_IP", 30),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Export: ExportConfig{
			MetaPath: getEnv("EXPORT_META_PATH", "data/export_meta.json"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// normalizeEnv makes the execution-mode flags consistent: integration mode
// wins over unit mode, and APP_ENV defaults to local otherwise.
func normalizeEnv() {
	switch {
	case os.Getenv("INTEGRATION_MODE") == "1":
		os.Setenv("APP_ENV", "integration")
		os.Setenv("UNIT_MODE", "0")
	case os.Getenv("UNIT_MODE") == "1":
		if os.Getenv("APP_ENV") == "" {
			os.Setenv("APP_ENV", "unit")
		}
	default:
		if os.Getenv("APP_ENV") == "" {
			os.Setenv("APP_ENV", "local")
		}
	}
}

// CurrentEnv reads APP_ENV fresh from the process environment. Guards read
// it per request so a test harness can flip modes without a restart.
func CurrentEnv() string {
	return strings.ToLower(os.Getenv("APP_ENV"))
}

// UnitMode reports whether UNIT_MODE=1 is set right now.
func UnitMode() bool {
	return os.Getenv("UNIT_MODE") == "1"
}

// ResolveAPIToken returns the bearer secret protected routes compare
// against. Re-read per request so token rotation applies immediately.
func ResolveAPIToken() string {
	for _, key := range []string{"API_AUTH_TOKEN", "ZENDESK_API_TOKEN", "ZENDESK_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// ResolveZendeskCredentials reads the Zendesk auth material fresh from the
// environment. Missing values fail fast rather than producing unauthenticated
// calls against the live API.
func ResolveZendeskCredentials() (ZendeskCredentials, error) {
	creds := ZendeskCredentials{
		Subdomain: os.Getenv("ZENDESK_SUBDOMAIN"),
		Email:     os.Getenv("ZENDESK_EMAIL"),
		Token:     os.Getenv("ZENDESK_API_TOKEN"),
	}
	if creds.Token == "" {
		creds.Token = os.Getenv("ZENDESK_TOKEN")
	}
	var missing []string
	if creds.Subdomain == "" {
		missing = append(missing, "ZENDESK_SUBDOMAIN")
	}
	if creds.Email == "" {
		missing = append(missing, "ZENDESK_EMAIL")
	}
	if creds.Token == "" {
		missing = append(missing, "ZENDESK_API_TOKEN")
	}
	if len(missing) > 0 {
		return ZendeskCredentials{}, fmt.Errorf("missing zendesk config: %s", strings.Join(missing, ", "))
	}
	return creds, nil
}

// Debug reports whether error responses may carry full diagnostic detail.
func (a AppConfig) Debug() bool {
	return a.Env == "local" || a.Env == "unit"
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Window returns the admission window duration.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
