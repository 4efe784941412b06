package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/biobasis-merge/internal/grid"
)

// Date layouts accepted for date_start and date_end.
const (
	DateLayoutCompact = "20060102"
	DateLayoutISO     = "2006-01-02"
)

// ErrNoDateRange is returned by DateRange when either bound is unset.
var ErrNoDateRange = errors.New("date_start and date_end are required")

// Config holds all settings. Values come from an optional YAML file and are
// overridden by environment variables.
type Config struct {
	InputDir   string `yaml:"input_dir" validate:"required"`
	OutputDir  string `yaml:"output_dir" validate:"required"`
	DateStart  string `yaml:"date_start" validate:"omitempty,ymd"`
	DateEnd    string `yaml:"date_end" validate:"omitempty,ymd"`
	StationID  string `yaml:"station_id" validate:"required"`
	FilePrefix string `yaml:"file_prefix" validate:"required"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`

	Interval time.Duration `yaml:"interval" validate:"gt=0,daydivisor"`
	Workers  int           `yaml:"workers" validate:"gte=0"`

	SQLitePath string `yaml:"sqlite_path"`

	Plots         bool `yaml:"plots"`
	PlotMaxPoints int  `yaml:"plot_max_points" validate:"gte=0"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" validate:"required_with=KafkaBrokers"`

	InfluxURL    string `yaml:"influx_url" validate:"omitempty,url"`
	InfluxToken  string `yaml:"influx_token"`
	InfluxOrg    string `yaml:"influx_org" validate:"required_with=InfluxURL"`
	InfluxBucket string `yaml:"influx_bucket" validate:"required_with=InfluxURL"`

	ScheduleInterval time.Duration `yaml:"schedule_interval" validate:"gt=0"`
	LookbackDays     int           `yaml:"lookback_days" validate:"gte=1"`
	HTTPAddr         string        `yaml:"http_addr"`
	ShutdownTimeout  time.Duration `yaml:"-"`
}

func defaults() Config {
	return Config{
		StationID:        "MM1",
		FilePrefix:       "Biobasis",
		LogLevel:         "info",
		LogFormat:        "json",
		Interval:         grid.DefaultInterval,
		Plots:            true,
		KafkaTopic:       "biobasis-merged",
		ScheduleInterval: 24 * time.Hour,
		LookbackDays:     1,
		HTTPAddr:         ":8080",
	}
}

// LoadDotEnv loads a .env file into the process environment when present.
// Variables already set are not overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty, falling back to CONFIG_FILE) and the environment, in
// that order, then validates it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("configuration file not found: %s", path)
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.InputDir = sharedcfg.EnvOrDefault("INPUT_DIR", cfg.InputDir)
	cfg.OutputDir = sharedcfg.EnvOrDefault("OUTPUT_DIR", cfg.OutputDir)
	cfg.DateStart = sharedcfg.EnvOrDefault("DATE_START", cfg.DateStart)
	cfg.DateEnd = sharedcfg.EnvOrDefault("DATE_END", cfg.DateEnd)
	cfg.StationID = sharedcfg.EnvOrDefault("STATION_ID", cfg.StationID)
	cfg.FilePrefix = sharedcfg.EnvOrDefault("FILE_PREFIX", cfg.FilePrefix)
	cfg.LogLevel = strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", cfg.LogFormat))
	cfg.SQLitePath = sharedcfg.EnvOrDefault("SQLITE_PATH", cfg.SQLitePath)
	cfg.KafkaTopic = sharedcfg.EnvOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.InfluxURL = sharedcfg.EnvOrDefault("INFLUX_URL", cfg.InfluxURL)
	cfg.InfluxToken = sharedcfg.EnvOrDefault("INFLUX_TOKEN", cfg.InfluxToken)
	cfg.InfluxOrg = sharedcfg.EnvOrDefault("INFLUX_ORG", cfg.InfluxOrg)
	cfg.InfluxBucket = sharedcfg.EnvOrDefault("INFLUX_BUCKET", cfg.InfluxBucket)
	cfg.HTTPAddr = sharedcfg.EnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}

	var err error
	if cfg.Interval, err = envDuration("GRID_INTERVAL", cfg.Interval); err != nil {
		return err
	}
	if cfg.ScheduleInterval, err = envDuration("SCHEDULE_INTERVAL", cfg.ScheduleInterval); err != nil {
		return err
	}
	if cfg.Workers, err = envInt("ENRICH_WORKERS", cfg.Workers); err != nil {
		return err
	}
	if cfg.LookbackDays, err = envInt("LOOKBACK_DAYS", cfg.LookbackDays); err != nil {
		return err
	}
	if cfg.PlotMaxPoints, err = envInt("PLOT_MAX_POINTS", cfg.PlotMaxPoints); err != nil {
		return err
	}
	if cfg.Plots, err = envBool("PLOTS", cfg.Plots); err != nil {
		return err
	}

	cfg.ShutdownTimeout, err = sharedcfg.ParseShutdownTimeout()
	return err
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// DateRange parses date_start and date_end. Both must be set and the end may
// not precede the start.
func (c *Config) DateRange() (grid.DateRange, error) {
	if c.DateStart == "" || c.DateEnd == "" {
		return grid.DateRange{}, ErrNoDateRange
	}
	start, err := ParseDate(c.DateStart)
	if err != nil {
		return grid.DateRange{}, fmt.Errorf("date_start: %w", err)
	}
	end, err := ParseDate(c.DateEnd)
	if err != nil {
		return grid.DateRange{}, fmt.Errorf("date_end: %w", err)
	}
	if end.Before(start) {
		return grid.DateRange{}, fmt.Errorf("date_end %s is before date_start %s", c.DateEnd, c.DateStart)
	}
	return grid.NewDateRange(start, end), nil
}

// ParseDate accepts YYYYMMDD or YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayoutCompact, DateLayoutISO} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s. Use YYYYMMDD or YYYY-MM-DD", s)
}

// KafkaEnabled reports whether a Kafka sink is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// InfluxEnabled reports whether an InfluxDB sink is configured.
func (c *Config) InfluxEnabled() bool { return c.InfluxURL != "" }

// SQLiteEnabled reports whether a SQLite sink is configured.
func (c *Config) SQLiteEnabled() bool { return c.SQLitePath != "" }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("daydivisor", func(fl validator.FieldLevel) bool {
		d := time.Duration(fl.Field().Int())
		return d > 0 && (24*time.Hour)%d == 0
	})
	return v
}

// Validate checks field constraints and, when either date is set, the date
// range. Errors name the offending YAML key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fieldMessage(fe)
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DateStart != "" || c.DateEnd != "" {
		if _, err := c.DateRange(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with":
		return fmt.Sprintf("%s is required", fe.Field())
	case "ymd":
		return fmt.Sprintf("%s must be YYYYMMDD or YYYY-MM-DD, got %q", fe.Field(), fe.Value())
	case "daydivisor":
		return fmt.Sprintf("%s must divide 24h evenly, got %v", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
}
