package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	CORS       CORSConfig
	Log        LogConfig
	Data       DataConfig
	Runs       RunsConfig
	Generation GenerationConfig
}

type DatabaseConfig struct {
	Enabled      bool
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
	CacheTTL time.Duration
}

// AuthConfig gates the run endpoints behind a bearer token.
type AuthConfig struct {
	Enabled bool
	Secret  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DataConfig locates seed lists, profile documents and output artifacts.
type DataConfig struct {
	SeedDir      string
	ProfilesFile string
	OutputDir    string
}

// RunsConfig governs the asynchronous generation run queue.
type RunsConfig struct {
	Workers    int
	Retries    int
	BufferSize int
	ResultTTL  time.Duration
}

// GenerationConfig holds the knobs consumed by the sampler and the validator pipeline.
type GenerationConfig struct {
	DaysAgo                          int
	TimeEntryMinCount                int
	TimeEntryMaxCount                int
	TimeEntryMinDurationMinutes      int
	TimeEntryMaxDurationMinutes      int
	TimeEntryDurationIntervalMinutes int
	DailyTicketCap                   int
	TimeEntryBufferMinutes           int
	MaxOpenTicketsPerTech            int
	MaxOpenTicketsUnassigned         int
	ClampToNow                       bool
}

// DefaultGeneration returns the stock generation settings.
func DefaultGeneration() GenerationConfig {
	return GenerationConfig{
		DaysAgo:                          21,
		TimeEntryMinCount:                1,
		TimeEntryMaxCount:                4,
		TimeEntryMinDurationMinutes:      5,
		TimeEntryMaxDurationMinutes:      90,
		TimeEntryDurationIntervalMinutes: 5,
		DailyTicketCap:                   10,
		TimeEntryBufferMinutes:           5,
		MaxOpenTicketsPerTech:            10,
		MaxOpenTicketsUnassigned:         500,
		ClampToNow:                       true,
	}
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("DB_ENABLED"),
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
		Enabled:  v.GetBool("CACHE_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		CacheTTL: parseDuration(v.GetString("CACHE_TTL"), 30*time.Minute),
	}

	cfg.Auth = AuthConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Data = DataConfig{
		SeedDir:      v.GetString("SEED_DATA_DIR"),
		ProfilesFile: v.GetString("PROFILES_FILE"),
		OutputDir:    v.GetString("OUTPUT_DIR"),
	}

	cfg.Runs = RunsConfig{
		Workers:    positiveInt(v, "RUN_WORKERS", 1),
		Retries:    positiveInt(v, "RUN_RETRIES", 1),
		BufferSize: positiveInt(v, "RUN_BUFFER_SIZE", 16),
		ResultTTL:  parseDuration(v.GetString("RUN_RESULT_TTL"), 24*time.Hour),
	}

	cfg.Generation = loadGeneration(v)

	return cfg, nil
}

func loadGeneration(v *viper.Viper) GenerationConfig {
	def := DefaultGeneration()
	return GenerationConfig{
		DaysAgo:                          positiveInt(v, "DAYS_AGO", def.DaysAgo),
		TimeEntryMinCount:                nonNegativeInt(v, "TIME_ENTRY_MIN_COUNT", def.TimeEntryMinCount),
		TimeEntryMaxCount:                nonNegativeInt(v, "TIME_ENTRY_MAX_COUNT", def.TimeEntryMaxCount),
		TimeEntryMinDurationMinutes:      positiveInt(v, "TIME_ENTRY_MIN_DURATION_MINUTES", def.TimeEntryMinDurationMinutes),
		TimeEntryMaxDurationMinutes:      positiveInt(v, "TIME_ENTRY_MAX_DURATION_MINUTES", def.TimeEntryMaxDurationMinutes),
		TimeEntryDurationIntervalMinutes: positiveInt(v, "TIME_ENTRY_DURATION_INTERVAL_MINUTES", def.TimeEntryDurationIntervalMinutes),
		DailyTicketCap:                   positiveInt(v, "DAILY_TICKET_CAP", def.DailyTicketCap),
		TimeEntryBufferMinutes:           nonNegativeInt(v, "TIME_ENTRY_BUFFER_MINUTES", def.TimeEntryBufferMinutes),
		MaxOpenTicketsPerTech:            positiveInt(v, "MAX_OPEN_TICKETS_PER_TECH", def.MaxOpenTicketsPerTech),
		MaxOpenTicketsUnassigned:         positiveInt(v, "MAX_OPEN_TICKETS_UNASSIGNED", def.MaxOpenTicketsUnassigned),
		ClampToNow:                       v.GetBool("CLAMP_TO_NOW"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "helpdesk_datagen")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "30m")

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SEED_DATA_DIR", "./data/generatorData")
	v.SetDefault("PROFILES_FILE", "./data/probability_profiles.json")
	v.SetDefault("OUTPUT_DIR", "./results")

	v.SetDefault("RUN_WORKERS", 1)
	v.SetDefault("RUN_RETRIES", 1)
	v.SetDefault("RUN_BUFFER_SIZE", 16)
	v.SetDefault("RUN_RESULT_TTL", "24h")

	def := DefaultGeneration()
	v.SetDefault("DAYS_AGO", def.DaysAgo)
	v.SetDefault("TIME_ENTRY_MIN_COUNT", def.TimeEntryMinCount)
	v.SetDefault("TIME_ENTRY_MAX_COUNT", def.TimeEntryMaxCount)
	v.SetDefault("TIME_ENTRY_MIN_DURATION_MINUTES", def.TimeEntryMinDurationMinutes)
	v.SetDefault("TIME_ENTRY_MAX_DURATION_MINUTES", def.TimeEntryMaxDurationMinutes)
	v.SetDefault("TIME_ENTRY_DURATION_INTERVAL_MINUTES", def.TimeEntryDurationIntervalMinutes)
	v.SetDefault("DAILY_TICKET_CAP", def.DailyTicketCap)
	v.SetDefault("TIME_ENTRY_BUFFER_MINUTES", def.TimeEntryBufferMinutes)
	v.SetDefault("MAX_OPEN_TICKETS_PER_TECH", def.MaxOpenTicketsPerTech)
	v.SetDefault("MAX_OPEN_TICKETS_UNASSIGNED", def.MaxOpenTicketsUnassigned)
	v.SetDefault("CLAMP_TO_NOW", def.ClampToNow)
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
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// positiveInt reverts to fallback when the configured value is missing, malformed or < 1.
func positiveInt(v *viper.Viper, key string, fallback int) int {
	value := v.GetInt(key)
	if value < 1 {
		return fallback
	}
	return value
}

func nonNegativeInt(v *viper.Viper, key string, fallback int) int {
	if !v.IsSet(key) {
		return fallback
	}
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback
	}
	value := v.GetInt(key)
	if value < 0 || (value == 0 && raw != "0") {
		return fallback
	}
	return value
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
