// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port string `env:"APP_PORT" envDefault:"8080"`

	DB DBConfig

	// JWTSecret verifies admin tokens. Only the HTTP server requires it.
	JWTSecret string `env:"JWT_SECRET"`
	// AccessTTLMin is the lifetime of tokens minted by synccli.
	AccessTTLMin int `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"60"`
	// CronSecret, when set, must be presented as a bearer token by the
	// scheduler calling the sync trigger.
	CronSecret string `env:"CRON_SECRET"`
	// RabbitURL enables run-completed events when set.
	RabbitURL string `env:"RABBITMQ_URL"`
	// SyncLogPath is where the queue consumer appends run summaries.
	SyncLogPath string `env:"SYNC_LOG_PATH" envDefault:"logs/sync.log"`

	Log       LogConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Sync      SyncConfig `envPrefix:"SYNC_"`
}

// DBConfig is the MySQL connection.
type DBConfig struct {
	User string `env:"DB_USER,required,notEmpty"`
	Pass string `env:"DB_PASS"`
	Host string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port string `env:"DB_PORT" envDefault:"3306"`
	Name string `env:"DB_NAME,required,notEmpty"`
}

// LogConfig selects zerolog's level and output format.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// SyncConfig drives the ingestion pipeline.
type SyncConfig struct {
	Sources         SourceList        `env:"SOURCES"`
	TimezoneFixes   TZFixList         `env:"TZ_FIXES"`
	VenueAliases    map[string]string `env:"VENUE_ALIASES"`
	HomeCountry     string            `env:"HOME_COUNTRY" envDefault:"Bahrain"`
	DefaultCurrency string            `env:"DEFAULT_CURRENCY" envDefault:"BHD"`
	// UTCOffsetHours is the fixed offset local dates and times are read in.
	UTCOffsetHours    int           `env:"UTC_OFFSET_HOURS" envDefault:"3"`
	StaleAfter        time.Duration `env:"STALE_AFTER" envDefault:"48h"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"20s"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"1"`
	// RunTimeout bounds one orchestration started over HTTP.
	RunTimeout time.Duration `env:"RUN_TIMEOUT" envDefault:"5m"`
}

// Location returns the fixed zone for UTCOffsetHours.
func (s SyncConfig) Location() *time.Location {
	if s.UTCOffsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", s.UTCOffsetHours), s.UTCOffsetHours*60*60)
}

// Load reads .env (when present) and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.RateLimit = cfg.RateLimit.Normalized()
	return cfg, nil
}

// Source kinds accepted in SYNC_SOURCES.
const (
	KindEvents = "events"
	KindCinema = "cinema"
)

// SourceSpec is one configured source adapter.
type SourceSpec struct {
	Name string
	Kind string
	// Location is an http(s) URL or a local file path serving the feed.
	Location string
}

// SourceList parses "name|kind|location" entries separated by commas.
type SourceList []SourceSpec

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *SourceList) UnmarshalText(text []byte) error {
	var out SourceList
	seen := map[string]bool{}
	for _, entry := range splitList(string(text)) {
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			return fmt.Errorf("source %q: want name|kind|location", entry)
		}
		spec := SourceSpec{
			Name:     strings.TrimSpace(parts[0]),
			Kind:     strings.ToLower(strings.TrimSpace(parts[1])),
			Location: strings.TrimSpace(parts[2]),
		}
		if spec.Name == "" || spec.Location == "" {
			return fmt.Errorf("source %q: name and location are required", entry)
		}
		if spec.Kind != KindEvents && spec.Kind != KindCinema {
			return fmt.Errorf("source %q: unknown kind %q", entry, spec.Kind)
		}
		if seen[spec.Name] {
			return fmt.Errorf("source %q configured twice", spec.Name)
		}
		seen[spec.Name] = true
		out = append(out, spec)
	}
	*l = out
	return nil
}

// Names lists the configured source names in order.
func (l SourceList) Names() []string {
	names := make([]string, len(l))
	for i, s := range l {
		names[i] = s.Name
	}
	return names
}

// TZFix is one timezone correction rule.
type TZFix struct {
	Source string
	Region string
	Hours  int
}

// TZFixList parses "source|region|hours" entries separated by commas. The
// region may be empty to cover every record of the source.
type TZFixList []TZFix

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *TZFixList) UnmarshalText(text []byte) error {
	var out TZFixList
	for _, entry := range splitList(string(text)) {
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			return fmt.Errorf("tz fix %q: want source|region|hours", entry)
		}
		hours, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || hours < -23 || hours > 23 {
			return fmt.Errorf("tz fix %q: hours must be an integer in [-23, 23]", entry)
		}
		src := strings.TrimSpace(parts[0])
		if src == "" {
			return fmt.Errorf("tz fix %q: source is required", entry)
		}
		out = append(out, TZFix{Source: src, Region: strings.TrimSpace(parts[1]), Hours: hours})
	}
	*l = out
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
