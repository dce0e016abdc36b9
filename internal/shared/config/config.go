package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Seat locking configuration
	Locking LockingConfig

	// Solana RPC configuration
	Solana SolanaConfig

	// Kafka configuration
	Kafka KafkaConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// TTL values for cached reads
	CacheTTL      time.Duration
	MintedSeatTTL time.Duration
	NonceTTL      time.Duration
}

// LockingConfig holds seat lock TTL policy and store selection.
type LockingConfig struct {
	// Store selects the lock backend: "redis" (default) or "memory".
	Store         string
	SelectingTTL  time.Duration
	ProcessingTTL time.Duration
	SweepInterval time.Duration
}

// SolanaConfig holds RPC endpoints and confirmation timing.
type SolanaConfig struct {
	// Endpoints are tried in order; the client rotates on failures and 429s.
	Endpoints      []string
	Commitment     string
	TreasuryWallet string
	MaxRetries     int
	RetryBaseDelay time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// KafkaConfig holds event publishing configuration.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TicketTopic string
	RetryMax    int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	JWTExpiresIn     time.Duration
	RefreshExpiresIn time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled              bool          `json:"enabled"`
	WindowDuration       time.Duration `json:"window_duration"`
	DefaultRequests      int           `json:"default_requests"`
	PublicRequests       int           `json:"public_requests"`
	AuthRequests         int           `json:"auth_requests"`
	SeatCheckRequests    int           `json:"seat_check_requests"`
	MintCriticalRequests int           `json:"mint_critical_requests"`
	AdminRequests        int           `json:"admin_requests"`
	HealthRequests       int           `json:"health_requests"`
	WhitelistedIPs       []string      `json:"whitelisted_ips"`
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "mintix_db"),
			User:     getEnv("DB_USER", "mintix_user"),
			Password: getEnv("DB_PASSWORD", "mintix_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			CacheTTL:      getDurationEnv("REDIS_CACHE_TTL", 1*time.Hour),
			MintedSeatTTL: getDurationEnv("REDIS_MINTED_SEAT_TTL", 15*time.Second),
			NonceTTL:      getDurationEnv("REDIS_NONCE_TTL", 5*time.Minute),
		},

		// Seat locking
		Locking: LockingConfig{
			Store:         getEnv("LOCK_STORE", "redis"),
			SelectingTTL:  getDurationEnv("LOCK_SELECTING_TTL", 2*time.Minute),
			ProcessingTTL: getDurationEnv("LOCK_PROCESSING_TTL", 2*time.Minute),
			SweepInterval: getDurationEnv("LOCK_SWEEP_INTERVAL", 30*time.Second),
		},

		// Solana RPC
		Solana: SolanaConfig{
			Endpoints:      getStringSliceEnv("SOLANA_RPC_ENDPOINTS", []string{"https://api.devnet.solana.com"}),
			Commitment:     getEnv("SOLANA_COMMITMENT", "confirmed"),
			TreasuryWallet: getEnv("SOLANA_TREASURY_WALLET", ""),
			MaxRetries:     getIntEnv("SOLANA_MAX_RETRIES", 3),
			RetryBaseDelay: getDurationEnv("SOLANA_RETRY_BASE_DELAY", 500*time.Millisecond),
			ConfirmTimeout: getDurationEnv("SOLANA_CONFIRM_TIMEOUT", 40*time.Second),
			PollInterval:   getDurationEnv("SOLANA_POLL_INTERVAL", 2*time.Second),
			RequestTimeout: getDurationEnv("SOLANA_REQUEST_TIMEOUT", 10*time.Second),
		},

		// Kafka
		Kafka: KafkaConfig{
			Enabled:     getBoolEnv("KAFKA_ENABLED", false),
			Brokers:     getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			TicketTopic: getEnv("KAFKA_TICKET_TOPIC", "ticket-events"),
			RetryMax:    getIntEnv("KAFKA_RETRY_MAX", 3),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			JWTExpiresIn:     getDurationEnv("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnv("JWT_REFRESH_EXPIRES_IN", 24*time.Hour),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:              getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:       getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:      getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 100),
			PublicRequests:       getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			AuthRequests:         getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			SeatCheckRequests:    getIntEnv("RATE_LIMIT_SEAT_CHECK_REQUESTS", 200),
			MintCriticalRequests: getIntEnv("RATE_LIMIT_MINT_CRITICAL_REQUESTS", 50),
			AdminRequests:        getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			HealthRequests:       getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:       getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
