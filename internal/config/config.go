package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Realtime     RealtimeConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
	Worker       WorkerConfig
	Client       ClientConfig
}

// AppConfig controls server level behavior.
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ConnectAttempts bounds startup retries while the database comes up.
	ConnectAttempts int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Output string
}

// TokenConfig is the signing policy for one token kind.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	Access        TokenConfig
	Refresh       TokenConfig
	PasswordReset TokenConfig
	WalletUnlock  TokenConfig
	BcryptCost    int
	RefreshCookie CookieConfig
}

// CookieConfig describes the httpOnly cookie carrying the refresh token.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite string
}

// RealtimeConfig configures the socket listener.
type RealtimeConfig struct {
	Host                string
	Port                string
	PingIntervalSeconds int
	WriteTimeoutSeconds int
}

// RateLimitConfig bounds credential endpoints per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// WorkerConfig controls background maintenance jobs.
type WorkerConfig struct {
	ResetPruneSeconds int
}

// ClientConfig is read by clinicctl.
type ClientConfig struct {
	ServerURL     string
	SocketURL     string
	RefreshPath   string
	TimeoutSecond int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "clinic-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "clinic"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Auth: AuthConfig{
			Access: TokenConfig{
				Secret: os.Getenv("AUTH_ACCESS_TOKEN_SECRET"),
				TTL:    getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
			},
			Refresh: TokenConfig{
				Secret: os.Getenv("AUTH_REFRESH_TOKEN_SECRET"),
				TTL:    getEnvAsDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
			},
			PasswordReset: TokenConfig{
				Secret: os.Getenv("AUTH_PASSWORD_RESET_SECRET"),
				TTL:    getEnvAsDuration("AUTH_PASSWORD_RESET_TTL", 30*time.Minute),
			},
			WalletUnlock: TokenConfig{
				Secret: os.Getenv("AUTH_WALLET_TOKEN_SECRET"),
				TTL:    getEnvAsDuration("AUTH_WALLET_TOKEN_TTL", 10*time.Minute),
			},
			BcryptCost: getEnvAsInt("AUTH_BCRYPT_COST", 10),
			RefreshCookie: CookieConfig{
				Name:     getEnv("AUTH_REFRESH_COOKIE_NAME", "refreshToken"),
				Path:     getEnv("AUTH_REFRESH_COOKIE_PATH", "/auth"),
				Domain:   os.Getenv("AUTH_REFRESH_COOKIE_DOMAIN"),
				Secure:   getEnvAsBool("AUTH_REFRESH_COOKIE_SECURE", false),
				SameSite: getEnv("AUTH_REFRESH_COOKIE_SAMESITE", "Strict"),
			},
		},
		Realtime: RealtimeConfig{
			Host:                getEnv("REALTIME_HOST", "0.0.0.0"),
			Port:                getEnv("REALTIME_PORT", "8081"),
			PingIntervalSeconds: getEnvAsInt("REALTIME_PING_INTERVAL_SECONDS", 25),
			WriteTimeoutSeconds: getEnvAsInt("REALTIME_WRITE_TIMEOUT_SECONDS", 10),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("AUTH_RATE_LIMIT_PER_MINUTE", 30),
			Burst:             getEnvAsInt("AUTH_RATE_LIMIT_BURST", 10),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Worker: WorkerConfig{
			ResetPruneSeconds: getEnvAsInt("WORKER_RESET_PRUNE_SECONDS", 3600),
		},
		Client: ClientConfig{
			ServerURL:     getEnv("CLINIC_SERVER_URL", "http://127.0.0.1:8080"),
			SocketURL:     getEnv("CLINIC_SOCKET_URL", "ws://127.0.0.1:8081/socket"),
			RefreshPath:   getEnv("CLINIC_REFRESH_PATH", "auth/refresh-token"),
			TimeoutSecond: getEnvAsInt("CLINIC_CLIENT_TIMEOUT_SECONDS", 15),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs with production semantics.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the socket bind address.
func (r RealtimeConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// PingInterval returns the heartbeat period for socket connections.
func (r RealtimeConfig) PingInterval() time.Duration {
	if r.PingIntervalSeconds <= 0 {
		return 25 * time.Second
	}
	return time.Duration(r.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns the per-frame write deadline.
func (r RealtimeConfig) WriteTimeout() time.Duration {
	if r.WriteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.WriteTimeoutSeconds) * time.Second
}

// ResetPruneInterval returns how often expired password resets are deleted.
// Zero disables pruning.
func (w WorkerConfig) ResetPruneInterval() time.Duration {
	if w.ResetPruneSeconds <= 0 {
		return 0
	}
	return time.Duration(w.ResetPruneSeconds) * time.Second
}

// Timeout returns the client HTTP timeout.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSecond <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSecond) * time.Second
}

// TokenPolicies maps each token kind to its signing policy.
func (a AuthConfig) TokenPolicies() map[domain.TokenKind]TokenConfig {
	return map[domain.TokenKind]TokenConfig{
		domain.TokenKindAccess:        a.Access,
		domain.TokenKindRefresh:       a.Refresh,
		domain.TokenKindPasswordReset: a.PasswordReset,
		domain.TokenKindWalletUnlock:  a.WalletUnlock,
	}
}

// Validate checks that every token kind can be signed.
func (a AuthConfig) Validate() error {
	policies := a.TokenPolicies()
	for _, kind := range domain.TokenKinds {
		policy := policies[kind]
		if policy.Secret == "" {
			return fmt.Errorf("missing signing secret for %s tokens", kind)
		}
		if policy.TTL <= 0 {
			return fmt.Errorf("non-positive ttl for %s tokens", kind)
		}
	}
	return nil
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
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
