package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Discord    DiscordConfig
	Tickets    TicketConfig
	PanelState PanelStateConfig
}

// AppConfig controls process level behavior and the ops HTTP listener.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator token parameters for the admin API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// DiscordConfig identifies the bot and the fixed channels it works with.
type DiscordConfig struct {
	Token               string
	GuildID             string
	PanelChannelID      string
	TranscriptChannelID string
	ModLogChannelID     string
	StaffRoleIDs        []string
}

// CooldownBackend selects where cooldown timestamps live.
type CooldownBackend string

const (
	CooldownBackendMemory CooldownBackend = "memory"
	CooldownBackendRedis  CooldownBackend = "redis"
)

// TicketConfig tunes the ticket lifecycle.
type TicketConfig struct {
	CategoriesFile       string
	Categories           Categories
	DeleteDelay          time.Duration
	CreateCooldown       time.Duration
	CloseCooldown        time.Duration
	StaffCommandCooldown time.Duration
	HistoryLimit         int
	CooldownBackend      CooldownBackend
	ReconcileInterval    time.Duration
	RetryDelay           time.Duration
}

// PanelStateConfig locates the local panel state database.
type PanelStateConfig struct {
	Path string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Discord: DiscordConfig{
			Token:               os.Getenv("BOT_TOKEN"),
			GuildID:             os.Getenv("GUILD_ID"),
			PanelChannelID:      os.Getenv("TICKET_CHANNEL_ID"),
			TranscriptChannelID: os.Getenv("TRANSCRIPT_CHANNEL_ID"),
			ModLogChannelID:     os.Getenv("MOD_LOG_CHANNEL_ID"),
			StaffRoleIDs:        staffRoleIDs(),
		},
		Tickets: TicketConfig{
			CategoriesFile:       os.Getenv("TICKET_CATEGORIES_FILE"),
			DeleteDelay:          time.Duration(getEnvAsInt("TICKET_DELETE_DELAY_MS", 5000)) * time.Millisecond,
			CreateCooldown:       getEnvAsDuration("TICKET_CREATE_COOLDOWN", 15*time.Second),
			CloseCooldown:        getEnvAsDuration("TICKET_CLOSE_COOLDOWN", 5*time.Second),
			StaffCommandCooldown: getEnvAsDuration("STAFF_COMMAND_COOLDOWN", 5*time.Second),
			HistoryLimit:         getEnvAsInt("TICKET_HISTORY_LIMIT", 1000),
			CooldownBackend:      CooldownBackend(strings.ToLower(getEnv("COOLDOWN_BACKEND", string(CooldownBackendMemory)))),
			ReconcileInterval:    getEnvAsDuration("TICKET_RECONCILE_INTERVAL", 0),
			RetryDelay:           getEnvAsDuration("GATEWAY_RETRY_DELAY", 5*time.Second),
		},
		PanelState: PanelStateConfig{
			Path: getEnv("PANEL_STATE_PATH", "panel_state.db"),
		},
	}

	categories, err := LoadCategories(cfg.Tickets.CategoriesFile)
	if err != nil {
		return nil, err
	}
	cfg.Tickets.Categories = categories

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Tickets.CooldownBackend {
	case CooldownBackendMemory, CooldownBackendRedis:
	default:
		return fmt.Errorf("invalid COOLDOWN_BACKEND %q", c.Tickets.CooldownBackend)
	}
	if c.Tickets.HistoryLimit <= 0 {
		return fmt.Errorf("TICKET_HISTORY_LIMIT must be positive")
	}
	if c.Tickets.DeleteDelay < 0 {
		return fmt.Errorf("TICKET_DELETE_DELAY_MS must not be negative")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// staffRoleIDs falls back to SUPPORT_ROLE_ID, the single-role form older deployments used.
func staffRoleIDs() []string {
	if ids := getEnvAsList("SUPPORT_ROLE_IDS"); len(ids) > 0 {
		return ids
	}
	return getEnvAsList("SUPPORT_ROLE_ID")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
