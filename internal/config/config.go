package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Home       HomeConfig       `mapstructure:"home"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Rates      RatesConfig      `mapstructure:"rates"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// HomeConfig identifies the administration's own jurisdiction.
// Tax mechanism and currency conversion decisions are made relative to it.
type HomeConfig struct {
	Country      string  `mapstructure:"country"`
	Currency     string  `mapstructure:"currency"`
	StandardRate float64 `mapstructure:"standard_rate"`
}

// ExtractionConfig holds LLM document extraction configuration
type ExtractionConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RatesConfig holds exchange rate provider configuration
type RatesConfig struct {
	FrankfurterURL string        `mapstructure:"frankfurter_url"`
	ECBDataURL     string        `mapstructure:"ecb_data_url"`
	ECBDailyXMLURL string        `mapstructure:"ecb_daily_xml_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// BatchConfig holds batch import job configuration
type BatchConfig struct {
	ItemDelay time.Duration `mapstructure:"item_delay"`
	PageSize  int           `mapstructure:"page_size"`
}

// StorageConfig holds document file storage configuration
type StorageConfig struct {
	BasePath    string `mapstructure:"base_path"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env if present so bound variables pick it up
	_ = gotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Enable environment variable override
	v.SetEnvPrefix("SMARTIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault("database.path", "./data/smartimport.db")
	v.SetDefault("database.migrations_dir", "./migrations")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")

	// Home administration defaults
	v.SetDefault("home.country", "NL")
	v.SetDefault("home.currency", "EUR")
	v.SetDefault("home.standard_rate", 21.0)

	// Extraction defaults
	v.SetDefault("extraction.base_url", "")
	v.SetDefault("extraction.model", "gpt-4o-mini")
	v.SetDefault("extraction.max_retries", 3)
	v.SetDefault("extraction.timeout", "120s")

	// Exchange rate provider defaults
	v.SetDefault("rates.frankfurter_url", "https://api.frankfurter.app")
	v.SetDefault("rates.ecb_data_url", "https://data-api.ecb.europa.eu/service/data/EXR")
	v.SetDefault("rates.ecb_daily_xml_url", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml")
	v.SetDefault("rates.timeout", "15s")

	// Batch defaults
	v.SetDefault("batch.item_delay", "2s")
	v.SetDefault("batch.page_size", 25)

	// Storage defaults
	v.SetDefault("storage.base_path", "./data/documents")
	v.SetDefault("storage.max_file_size", 20*1024*1024)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "console")
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("extraction.api_key", "OPENAI_API_KEY", "SMARTIMPORT_EXTRACTION_API_KEY")
	_ = v.BindEnv("extraction.base_url", "OPENAI_BASE_URL", "SMARTIMPORT_EXTRACTION_BASE_URL")
	_ = v.BindEnv("database.path", "SMARTIMPORT_DATABASE_PATH")
	_ = v.BindEnv("server.port", "SMARTIMPORT_SERVER_PORT")
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if len(c.Home.Country) != 2 {
		return fmt.Errorf("home country must be a two-letter ISO code, got %q", c.Home.Country)
	}
	if len(c.Home.Currency) != 3 {
		return fmt.Errorf("home currency must be a three-letter ISO code, got %q", c.Home.Currency)
	}
	if c.Home.StandardRate < 0 || c.Home.StandardRate > 100 {
		return fmt.Errorf("invalid standard VAT rate: %.2f", c.Home.StandardRate)
	}
	if c.Extraction.Model == "" {
		return fmt.Errorf("extraction model is required")
	}
	if c.Batch.ItemDelay < 0 {
		return fmt.Errorf("batch item delay must not be negative")
	}
	return nil
}
