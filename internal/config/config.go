package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Version is reported by the root endpoint.
const Version = "0.2.0"

// ErrUnknownDataset is returned when CLIMATE_SERVER_DATASET names no dataset.
var ErrUnknownDataset = errors.New("unknown dataset")

const defaultAPIURL = "https://erasmus.ai/models/climategpt_8b_latest/v1/chat/completions"

var defaultPorts = map[string]int{
	"emissions": 8000,
	"sealevel":  8001,
	"wildfires": 8002,
}

// LLMConfig describes how to reach the ClimateGPT chat completion API.
type LLMConfig struct {
	URL      string `validate:"required,url"`
	User     string
	Password string
	Model    string `validate:"required"`

	Timeout     time.Duration `validate:"gt=0"`
	MaxRetries  int           `validate:"gte=0"`
	MaxTokens   int           `validate:"gt=0"`
	Temperature float64       `validate:"gte=0,lte=2"`

	// Consecutive failures before the circuit opens, and how long it stays open.
	BreakerThreshold int           `validate:"gt=0"`
	BreakerTimeout   time.Duration `validate:"gt=0"`
}

type AppConfig struct {
	Dataset string `validate:"oneof=emissions sealevel wildfires"`
	DBPath  string `validate:"required"`

	Host string
	Port int `validate:"gt=0,lt=65536"`

	DBBusyTimeout time.Duration
	DBMaxRetries  int `validate:"gte=0"`
	QueryTimeout  time.Duration

	// Result and insight caches.
	CacheSize        int `validate:"gt=0"`
	InsightCacheSize int `validate:"gt=0"`
	CacheTTL         time.Duration
	CacheSweep       time.Duration

	LogLevel string
	LogFile  string

	MinQueryLength int `validate:"gt=0"`
	MaxQueryLength int `validate:"gtfield=MinQueryLength"`
	MaxResultRows  int `validate:"gt=0"`

	// Requests per minute per client IP on /query (0 = unlimited).
	RateLimit int `validate:"gte=0"`

	ForecastCleanOutliers bool
	// RelevanceCheck asks the model to screen queries before answering.
	RelevanceCheck bool

	LLM LLMConfig
}

// ClientConfig holds settings for the multi-server CLI.
type ClientConfig struct {
	RegistryPath   string `validate:"required"`
	RequestTimeout time.Duration
	RowLimit       int
	LogLevel       string
	LogFile        string

	LLM LLMConfig
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads server configuration from environment with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	cfg := &AppConfig{}

	cfg.Dataset = strings.ToLower(getenvDefault("CLIMATE_SERVER_DATASET", "emissions"))
	if _, ok := defaultPorts[cfg.Dataset]; !ok {
		return nil, fmt.Errorf("%w %q: want emissions, sealevel or wildfires", ErrUnknownDataset, cfg.Dataset)
	}
	cfg.DBPath = getenvDefault("CLIMATE_SERVER_DB_PATH", "data/"+cfg.Dataset+".db")
	cfg.Host = getenvDefault("CLIMATE_SERVER_API_HOST", "127.0.0.1")
	cfg.Port = getenvInt("CLIMATE_SERVER_API_PORT", defaultPorts[cfg.Dataset])

	var err error
	if cfg.DBBusyTimeout, err = getenvDuration("CLIMATE_SERVER_DB_BUSY_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	cfg.DBMaxRetries = getenvInt("CLIMATE_SERVER_DB_MAX_RETRIES", 3)
	if cfg.QueryTimeout, err = getenvDuration("CLIMATE_SERVER_QUERY_TIMEOUT", "10m"); err != nil {
		return nil, err
	}

	cfg.CacheSize = getenvInt("CLIMATE_SERVER_CACHE_SIZE", 200)
	cfg.InsightCacheSize = getenvInt("CLIMATE_SERVER_INSIGHT_CACHE_SIZE", 100)
	if cfg.CacheTTL, err = getenvDuration("CLIMATE_SERVER_CACHE_TTL", "2h"); err != nil {
		return nil, err
	}
	if cfg.CacheSweep, err = getenvDuration("CLIMATE_SERVER_CACHE_SWEEP", "5m"); err != nil {
		return nil, err
	}

	cfg.LogLevel = getenvDefault("CLIMATE_SERVER_LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("CLIMATE_SERVER_LOG_FILE")

	cfg.MinQueryLength = getenvInt("CLIMATE_SERVER_MIN_QUERY_LENGTH", 10)
	cfg.MaxQueryLength = getenvInt("CLIMATE_SERVER_MAX_QUERY_LENGTH", 500)
	cfg.MaxResultRows = getenvInt("CLIMATE_SERVER_MAX_RESULT_ROWS", 200)
	cfg.RateLimit = getenvInt("CLIMATE_SERVER_RATE_LIMIT", 60)
	cfg.ForecastCleanOutliers = getenvBool("CLIMATE_SERVER_FORECAST_CLEAN_OUTLIERS", false)
	cfg.RelevanceCheck = getenvBool("CLIMATE_SERVER_RELEVANCE_CHECK", false)

	if cfg.LLM, err = loadLLM("5m", 0.2); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadClient reads configuration for the router CLI.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()
	cfg := &ClientConfig{}

	cfg.RegistryPath = getenvDefault("CLIMATE_CLIENT_REGISTRY", "server_registry.yaml")
	var err error
	if cfg.RequestTimeout, err = getenvDuration("CLIMATE_CLIENT_REQUEST_TIMEOUT", "10m"); err != nil {
		return nil, err
	}
	cfg.RowLimit = getenvInt("CLIMATE_CLIENT_TABLE_ROW_LIMIT", 15)
	cfg.LogLevel = getenvDefault("CLIMATE_CLIENT_LOG_LEVEL", "warn")
	cfg.LogFile = os.Getenv("CLIMATE_CLIENT_LOG_FILE")

	if cfg.LLM, err = loadLLM("2m", 0.7); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadLLM(defTimeout string, defTemperature float64) (LLMConfig, error) {
	c := LLMConfig{
		URL:              getenvDefault("CLIMATEGPT_API_URL", defaultAPIURL),
		User:             getenvDefault("CLIMATEGPT_USER", "ai"),
		Password:         os.Getenv("CLIMATEGPT_PASSWORD"),
		Model:            getenvDefault("CLIMATEGPT_MODEL", "/cache/climategpt_8b_latest"),
		MaxRetries:       getenvInt("CLIMATEGPT_MAX_RETRIES", 3),
		MaxTokens:        getenvInt("CLIMATEGPT_MAX_TOKENS", 2000),
		Temperature:      getenvFloat("CLIMATEGPT_TEMPERATURE", defTemperature),
		BreakerThreshold: getenvInt("CLIMATEGPT_CIRCUIT_BREAKER_THRESHOLD", 5),
	}
	var err error
	if c.Timeout, err = getenvDuration("CLIMATEGPT_TIMEOUT", defTimeout); err != nil {
		return c, err
	}
	if c.BreakerTimeout, err = getenvDuration("CLIMATEGPT_CIRCUIT_BREAKER_TIMEOUT", "5m"); err != nil {
		return c, err
	}
	return c, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// getenvDuration accepts Go durations ("90s") or a bare number of seconds.
func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
