package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Backfill modes.
const (
	BackfillModeSingle = "single"
	BackfillModeSweep  = "sweep"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
	Backfill BackfillConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig selects the attendance store backend and roster source.
type EngineConfig struct {
	StoreDriver string
	RosterFile  string
	Timezone    string
}

// Location resolves the configured time zone, defaulting to UTC.
func (e EngineConfig) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BackfillConfig governs the auto-absence reconciliation.
type BackfillConfig struct {
	Mode                  string
	OnView                bool
	Interval              time.Duration
	MaxLookbackDays       int
	SkipWeekends          bool
	NonInstructionalDates []string
}

// ExportsConfig toggles the attendance sheet export endpoint.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		RosterFile:  v.GetString("ROSTER_FILE"),
		Timezone:    v.GetString("APP_TIMEZONE"),
	}
	if cfg.Engine.StoreDriver != StorePostgres {
		cfg.Engine.StoreDriver = StoreMemory
	}

	lookback := v.GetInt("BACKFILL_MAX_LOOKBACK_DAYS")
	if lookback <= 0 {
		lookback = 14
	}
	cfg.Backfill = BackfillConfig{
		Mode:                  strings.ToLower(v.GetString("BACKFILL_MODE")),
		OnView:                v.GetBool("BACKFILL_ON_VIEW"),
		Interval:              parseDuration(v.GetString("BACKFILL_INTERVAL"), time.Hour),
		MaxLookbackDays:       lookback,
		SkipWeekends:          v.GetBool("BACKFILL_SKIP_WEEKENDS"),
		NonInstructionalDates: splitAndTrim(v.GetString("NON_INSTRUCTIONAL_DATES")),
	}
	if cfg.Backfill.Mode != BackfillModeSweep {
		cfg.Backfill.Mode = BackfillModeSingle
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "sma-attendance-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("ROSTER_FILE", "")
	v.SetDefault("APP_TIMEZONE", "UTC")

	v.SetDefault("BACKFILL_MODE", BackfillModeSingle)
	v.SetDefault("BACKFILL_ON_VIEW", true)
	v.SetDefault("BACKFILL_INTERVAL", "1h")
	v.SetDefault("BACKFILL_MAX_LOOKBACK_DAYS", 14)
	v.SetDefault("BACKFILL_SKIP_WEEKENDS", false)
	v.SetDefault("NON_INSTRUCTIONAL_DATES", "")

	v.SetDefault("ENABLE_EXPORTS", true)
}

// isMissingFile reports whether viper failed because the explicit .env path does not exist.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
