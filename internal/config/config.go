package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/baxromumarov/job-collector/internal/scraper"
)

const DefaultPath = "configs/config.yaml"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

type Config struct {
	Search   SearchConfig   `yaml:"search"`
	Schedule ScheduleConfig `yaml:"schedule"`
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Lock     LockConfig     `yaml:"lock"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type SearchConfig struct {
	Query          string `yaml:"query"`
	Location       string `yaml:"location"`
	MaxJobs        int    `yaml:"max_jobs"`
	ResultsPerPage int    `yaml:"results_per_page"`
	SearchURL      string `yaml:"search_url"`
}

type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type HTTPConfig struct {
	UserAgent      string        `yaml:"user_agent"`
	RequestDelay   time.Duration `yaml:"request_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Attempts       int           `yaml:"attempts"`
	RespectRobots  bool          `yaml:"respect_robots_txt"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	CSVPath     string `yaml:"csv_path"`
	DatabaseURL string `yaml:"database_url"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type LockConfig struct {
	RedisURL string        `yaml:"redis_url"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Enabled reports whether both the token and the chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// Default returns the built-in settings used when nothing overrides them.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Query:          "Data Scientist",
			Location:       "Israel",
			MaxJobs:        75,
			ResultsPerPage: scraper.DefaultPerPage,
			SearchURL:      scraper.DefaultSearchURL,
		},
		Schedule: ScheduleConfig{Interval: 720 * time.Minute},
		HTTP: HTTPConfig{
			UserAgent:      defaultUserAgent,
			RequestDelay:   1500 * time.Millisecond,
			RequestTimeout: 30 * time.Second,
			Attempts:       1,
		},
		Storage: StorageConfig{
			Driver:  "csv",
			CSVPath: "data/linkedin_jobs.csv",
		},
		Server: ServerConfig{Port: 8000},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Lock: LockConfig{
			Key: "job-collector:cycle",
			TTL: 2 * time.Hour,
		},
	}
}

// Load layers defaults, the YAML file at path, a .env file in the working
// directory and the process environment, in that order, then validates the
// result. A missing YAML or .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}
	seconds := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := parseSeconds(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("SEARCH_QUERY", &cfg.Search.Query)
	str("SEARCH_LOCATION", &cfg.Search.Location)
	str("USER_AGENT", &cfg.HTTP.UserAgent)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("CSV_PATH", &cfg.Storage.CSVPath)
	str("DATABASE_URL", &cfg.Storage.DatabaseURL)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)
	str("REDIS_URL", &cfg.Lock.RedisURL)
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)

	if err := integer("MAX_JOBS", &cfg.Search.MaxJobs); err != nil {
		return err
	}
	if err := integer("PORT", &cfg.Server.Port); err != nil {
		return err
	}

	minutes := -1
	if err := integer("SCRAPE_INTERVAL_MINUTES", &minutes); err != nil {
		return err
	}
	if minutes >= 0 {
		cfg.Schedule.Interval = time.Duration(minutes) * time.Minute
	}

	if err := seconds("REQUEST_DELAY", &cfg.HTTP.RequestDelay); err != nil {
		return err
	}
	if err := seconds("REQUEST_TIMEOUT", &cfg.HTTP.RequestTimeout); err != nil {
		return err
	}

	if v, ok := lookup("TELEGRAM_CHAT_ID"); ok && strings.TrimSpace(v) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %q is not a chat id", v)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}

// parseSeconds accepts a plain number of seconds ("1.5") or a Go duration ("1500ms").
func parseSeconds(v string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%q is neither seconds nor a duration", v)
	}
	return d, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.Search.Query) != "", "search.query must not be empty")
	check(strings.TrimSpace(c.Search.Location) != "", "search.location must not be empty")
	check(c.Search.MaxJobs > 0, "search.max_jobs must be positive, got %d", c.Search.MaxJobs)
	check(c.Search.ResultsPerPage > 0, "search.results_per_page must be positive, got %d", c.Search.ResultsPerPage)
	check(c.Schedule.Interval >= time.Minute, "schedule.interval must be at least 1m, got %s", c.Schedule.Interval)
	check(c.HTTP.RequestDelay >= 0, "http.request_delay must not be negative, got %s", c.HTTP.RequestDelay)
	check(c.HTTP.RequestTimeout > 0, "http.request_timeout must be positive, got %s", c.HTTP.RequestTimeout)
	check(c.HTTP.Attempts > 0, "http.attempts must be positive, got %d", c.HTTP.Attempts)
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port out of range: %d", c.Server.Port)

	switch c.Storage.Driver {
	case "csv":
		check(c.Storage.CSVPath != "", "storage.csv_path is required for the csv driver")
	case "postgres", "mysql":
		check(c.Storage.DatabaseURL != "", "storage.database_url is required for the %s driver", c.Storage.Driver)
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of csv, postgres, mysql", c.Storage.Driver))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Lock.RedisURL != "" {
		check(c.Lock.TTL > 0, "lock.ttl must be positive when lock.redis_url is set")
	}
	check((c.Telegram.BotToken == "") == (c.Telegram.ChatID == 0),
		"telegram.bot_token and telegram.chat_id must be set together")

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return lvl, nil
}

// Title is the dashboard heading derived from the search.
func (c Config) Title() string {
	return fmt.Sprintf("LinkedIn %s Jobs - %s", c.Search.Query, c.Search.Location)
}
