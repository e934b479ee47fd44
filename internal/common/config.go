package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Auth        AuthConfig       `toml:"auth"`
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Browser     BrowserConfig    `toml:"browser"`
	DevSkiller  DevSkillerConfig `toml:"devskiller"`
	Docling     DoclingConfig    `toml:"docling"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

// AuthConfig holds the bearer token required on /api routes.
type AuthConfig struct {
	APIKey string `toml:"api_key"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type QueueConfig struct {
	PollInterval      time.Duration `toml:"poll_interval"`
	Concurrency       int           `toml:"concurrency" validate:"gte=1,lte=32"`
	VisibilityTimeout time.Duration `toml:"visibility_timeout"`
	MaxReceive        int           `toml:"max_receive" validate:"gte=1"`
	JobTimeout        time.Duration `toml:"job_timeout"`
	RetryDelay        time.Duration `toml:"retry_delay"`
	QueueName         string        `toml:"queue_name"`
}

type BrowserConfig struct {
	Headless        bool          `toml:"headless"`
	NoSandbox       bool          `toml:"no_sandbox"`
	DisableGPU      bool          `toml:"disable_gpu"`
	UserAgent       string        `toml:"user_agent"`
	NavigateTimeout time.Duration `toml:"navigate_timeout"`
	NavigateRetries int           `toml:"navigate_retries" validate:"gte=1,lte=10"`
	RetryBackoff    time.Duration `toml:"retry_backoff"`
	ElementTimeout  time.Duration `toml:"element_timeout"`
}

// DevSkillerConfig holds target-site credentials and endpoints.
type DevSkillerConfig struct {
	BaseURL         string        `toml:"base_url" validate:"required,url"`
	AuthURL         string        `toml:"auth_url" validate:"required,url"`
	Username        string        `toml:"username"`
	Password        string        `toml:"password"`
	CookieTTL       time.Duration `toml:"cookie_ttl"`
	RefreshSchedule string        `toml:"refresh_schedule"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	RequestsPerSec  float64       `toml:"requests_per_sec"`
}

// DoclingConfig holds the internal document-conversion service endpoint and
// per-endpoint timeout policy.
type DoclingConfig struct {
	BaseURL        string        `toml:"base_url"`
	DefaultTimeout time.Duration `toml:"default_timeout"`
	AsyncTimeout   time.Duration `toml:"async_timeout"`
	ResultTimeout  time.Duration `toml:"result_timeout"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"`
}

// DefaultConfig returns baseline configuration values
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/hub",
			},
		},
		Queue: QueueConfig{
			PollInterval:      time.Second,
			Concurrency:       4,
			VisibilityTimeout: 5 * time.Minute,
			MaxReceive:        3,
			JobTimeout:        5 * time.Minute,
			RetryDelay:        5 * time.Second,
			QueueName:         "hub",
		},
		Browser: BrowserConfig{
			Headless:        true,
			NoSandbox:       true,
			DisableGPU:      true,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			NavigateTimeout: 30 * time.Second,
			NavigateRetries: 3,
			RetryBackoff:    2 * time.Second,
			ElementTimeout:  15 * time.Second,
		},
		DevSkiller: DevSkillerConfig{
			BaseURL:         "https://app.devskiller.com",
			AuthURL:         "https://auth.devskiller.com",
			CookieTTL:       48 * time.Hour,
			RefreshSchedule: "0 */12 * * *",
			RequestTimeout:  60 * time.Second,
			RequestsPerSec:  2,
		},
		Docling: DoclingConfig{
			BaseURL:        "http://docling-serve-cpu.railway.internal:3000",
			DefaultTimeout: 300 * time.Second,
			AsyncTimeout:   30 * time.Second,
			ResultTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier ones. Missing files are an error; an empty path
// list yields defaults plus env overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HUB_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("HUB_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("HUB_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if key := os.Getenv("HUB_API_KEY"); key != "" {
		config.Auth.APIKey = key
	}
	if path := os.Getenv("HUB_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("HUB_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if concurrency := os.Getenv("HUB_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if username := os.Getenv("DEVSKILLER_USERNAME"); username != "" {
		config.DevSkiller.Username = username
	}
	if password := os.Getenv("DEVSKILLER_PASSWORD"); password != "" {
		config.DevSkiller.Password = password
	}
	if url := os.Getenv("DOCLING_API_URL"); url != "" {
		config.Docling.BaseURL = url
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
