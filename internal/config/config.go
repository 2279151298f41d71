package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/internal/session"
)

const (
	defaultListenAddress = ":8080"
	defaultOutputDir     = "."
	defaultOutputFormat  = "csv"
)

// Config is the process configuration. It is read once at startup and passed
// into constructors; nothing below cmd/ looks at the environment.
type Config struct {
	LogLevel logrus.Level

	ApifyToken string
	Session    session.Credentials

	Limit             uint
	PollTimeout       time.Duration
	PollInterval      time.Duration
	MemoryMB          uint
	MaxConcurrentJobs int
	ResumeFrom        string

	OutputDir    string
	OutputFormat string

	ListenAddress      string
	APIKey             string
	ResultCacheMaxSize int
	ResultCacheMaxAge  time.Duration
	StatsBufSize       uint
	ProfilingEnabled   bool
}

// ReadConfig loads an optional .env file and builds the Config from the environment.
func ReadConfig(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			logrus.Debugf("No env file at %s, reading from environment variables", f)
		}
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) Config {
	level := ParseLogLevel(getenv("LOG_LEVEL"))
	SetLogLevel(level)

	cfg := Config{
		LogLevel:           level,
		Limit:              uint(getInt(getenv, "SCRAPER_LIMIT", 0)),
		PollTimeout:        time.Duration(getInt(getenv, "SCRAPER_POLL_TIMEOUT_SECONDS", 300)) * time.Second,
		PollInterval:       time.Duration(getInt(getenv, "SCRAPER_POLL_INTERVAL_SECONDS", 5)) * time.Second,
		MemoryMB:           uint(getInt(getenv, "SCRAPER_MEMORY_MB", 0)),
		MaxConcurrentJobs:  getInt(getenv, "SCRAPER_MAX_CONCURRENT_JOBS", 1),
		ResumeFrom:         getenv("SCRAPER_RESUME_FROM"),
		OutputDir:          getString(getenv, "SCRAPER_OUTPUT_DIR", defaultOutputDir),
		OutputFormat:       getString(getenv, "SCRAPER_OUTPUT_FORMAT", defaultOutputFormat),
		ListenAddress:      getString(getenv, "LISTEN_ADDRESS", defaultListenAddress),
		APIKey:             getenv("API_KEY"),
		ResultCacheMaxSize: getInt(getenv, "RESULT_CACHE_MAX_SIZE", 1000),
		ResultCacheMaxAge:  time.Duration(getInt(getenv, "RESULT_CACHE_MAX_AGE_SECONDS", 600)) * time.Second,
		StatsBufSize:       uint(getInt(getenv, "STATS_BUF_SIZE", 128)),
		ProfilingEnabled:   getenv("ENABLE_PPROF") == "true",
	}

	// APIFY_API_KEY is what the worker deployments used; APIFY_API_TOKEN wins when both are set.
	cfg.ApifyToken = strings.TrimSpace(getenv("APIFY_API_TOKEN"))
	if cfg.ApifyToken == "" {
		cfg.ApifyToken = strings.TrimSpace(getenv("APIFY_API_KEY"))
	}
	if cfg.ApifyToken != "" {
		logrus.Info("Apify API token found")
	}

	cfg.Session = session.Credentials{
		APIID:       strings.TrimSpace(getenv("TELEGRAM_API_ID")),
		APIHash:     strings.TrimSpace(getenv("TELEGRAM_API_HASH")),
		SessionName: getString(getenv, "TELEGRAM_SESSION", session.DefaultSessionName),
	}
	if cfg.Session.Available() {
		logrus.Info("Telegram session credentials found")
	}

	return cfg
}

func (c Config) HasApifyCredentials() bool {
	return c.ApifyToken != ""
}

func (c Config) HasSessionCredentials() bool {
	return c.Session.Available()
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %s", c.PollTimeout)
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max concurrent jobs must be at least 1, got %d", c.MaxConcurrentJobs)
	}
	return nil
}

func getString(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(getenv func(string) string, key string, def int) int {
	s := strings.TrimSpace(getenv(key))
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		logrus.Errorf("Error parsing %s=%q. Setting to default %d.", key, s, def)
		return def
	}
	return v
}

// ParseLogLevel parses a string and returns the corresponding logrus.Level.
func ParseLogLevel(logLevel string) logrus.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		logrus.Error("Invalid log level", "level", logLevel, "setting_to", logrus.InfoLevel.String())
		return logrus.InfoLevel
	}
}

// SetLogLevel sets the log level for the application.
func SetLogLevel(level logrus.Level) {
	logrus.SetLevel(level)
}
