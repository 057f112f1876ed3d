package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	KB         KBConfig         `yaml:"kb"`
	Exports    ExportConfig     `yaml:"exports"`
	Managers   []string         `yaml:"managers"`
	Blacklist  []string         `yaml:"blacklist"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type WhatsAppConfig struct {
	PhoneNumberID string      `yaml:"phone_number_id"`
	AccessToken   string      `yaml:"access_token"`
	VerifyToken   string      `yaml:"verify_token"`
	APIBaseURL    string      `yaml:"api_base_url"`
	APIVersion    string      `yaml:"api_version"`
	OAuth         OAuthConfig `yaml:"oauth"`
}

// OAuthConfig enables token refresh via client credentials. When TokenURL is
// empty the static access_token is used as-is.
type OAuthConfig struct {
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

type CalendarConfig struct {
	// Backend selects the calendar implementation: "http" or "google".
	Backend         string `yaml:"backend"`
	ID              string `yaml:"id"`
	ServiceURL      string `yaml:"service_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CredentialsFile string `yaml:"credentials_file"`
}

type LedgerConfig struct {
	Path                 string `yaml:"path"`
	SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
	PaymentURL           string `yaml:"payment_url"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	HealthCheckPort   int    `yaml:"health_check_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	DurationHours   int     `yaml:"duration_hours"`
	DepositPerGuest float64 `yaml:"deposit_per_guest"`
	MaxAdvanceDays  int     `yaml:"max_advance_days"`
	HoursFile       string  `yaml:"hours_file"`
}

type KBConfig struct {
	Path string `yaml:"path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env переопределяет окружение до раскрытия переменных в YAML
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.WhatsApp.PhoneNumberID == "" {
		return errors.New("whatsapp phone_number_id is required")
	}
	if c.WhatsApp.AccessToken == "" && c.WhatsApp.OAuth.TokenURL == "" {
		return errors.New("whatsapp access_token or oauth token_url is required")
	}
	if c.Calendar.ID == "" || c.Calendar.ID == "primary" {
		return errors.New("calendar id is required and must not be \"primary\"")
	}
	switch c.Calendar.Backend {
	case "http":
		if c.Calendar.ServiceURL == "" {
			return errors.New("calendar service_url is required for http backend")
		}
	case "google":
		if c.Calendar.CredentialsFile == "" {
			return errors.New("calendar credentials_file is required for google backend")
		}
	default:
		return fmt.Errorf("unknown calendar backend: %s", c.Calendar.Backend)
	}
	if c.Ledger.Path == "" {
		return errors.New("ledger path is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Calendar.Backend == "" {
		c.Calendar.Backend = "http"
	}
	if c.Calendar.TimeoutSeconds == 0 {
		c.Calendar.TimeoutSeconds = 8
	}
	if c.Ledger.SweepIntervalSeconds == 0 {
		c.Ledger.SweepIntervalSeconds = 60
	}
	if c.WhatsApp.APIBaseURL == "" {
		c.WhatsApp.APIBaseURL = "https://graph.facebook.com"
	}
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = "v21.0"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.DurationHours == 0 {
		c.Booking.DurationHours = 2
	}
	if c.Booking.DepositPerGuest == 0 {
		c.Booking.DepositPerGuest = 10
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 90
	}
	if c.Booking.HoursFile == "" {
		c.Booking.HoursFile = "configs/hours.yaml"
	}
}
