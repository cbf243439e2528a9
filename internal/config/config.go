package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Email      EmailConfig
	Newsletter NewsletterConfig
	Captcha    CaptchaConfig
	Admin      AdminConfig
	Hooks      HooksConfig
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Log        LogConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: "single", "sentinel" или "cluster". По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: список адресов Redis (хост:порт).
	Addrs []string `mapstructure:"addrs"`

	// Addr: адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: имя мастера (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // ms
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // ms
}

// EmailConfig holds mail dispatch settings. With Enabled=false mails are only logged.
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
	ShopName     string `mapstructure:"shop_name"`
}

// NewsletterConfig holds the initial values of the module settings. They are
// seeded into the settings table once and edited through the admin API afterwards.
type NewsletterConfig struct {
	VerificationEmail bool   `mapstructure:"verification_email"`
	ConfirmationEmail bool   `mapstructure:"confirmation_email"`
	VoucherCode       string `mapstructure:"voucher_code"`
	CaptchaProvider   string `mapstructure:"captcha_provider"`
	// VerifyURL is the public confirmation endpoint; the token is appended as ?token=.
	VerifyURL     string        `mapstructure:"verify_url"`
	DefaultShopID uint          `mapstructure:"default_shop_id"`
	SettingsTTL   time.Duration `mapstructure:"settings_ttl"`
	ScanBatchSize int           `mapstructure:"scan_batch_size"`
}

// CaptchaConfig controls the built-in captcha providers
type CaptchaConfig struct {
	ArithmeticEnabled bool          `mapstructure:"arithmetic_enabled"`
	ChallengeTTL      time.Duration `mapstructure:"challenge_ttl"`
}

// AdminConfig holds the back-office credentials
type AdminConfig struct {
	Username       string `mapstructure:"username"`
	PasswordHash   string `mapstructure:"password_hash"` // bcrypt
	JWTSecret      string `mapstructure:"jwt_secret"`
	TokenExpiryHrs int    `mapstructure:"token_expiry_hrs"`
}

// HooksConfig holds the shared secret of the platform event hooks
type HooksConfig struct {
	Secret string `mapstructure:"secret"`
}

// RateLimitConfig ограничивает частоту публичных запросов подписки
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// LogConfig управляет zap логгером
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL подключения для golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 10)
	vip.SetDefault("server.write_timeout", 30)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("email.from", "newsletter@example.com")
	vip.SetDefault("newsletter.verification_email", true)
	vip.SetDefault("newsletter.confirmation_email", true)
	vip.SetDefault("newsletter.captcha_provider", "")
	vip.SetDefault("newsletter.default_shop_id", 1)
	vip.SetDefault("newsletter.settings_ttl", 5*time.Minute)
	vip.SetDefault("newsletter.scan_batch_size", 500)
	vip.SetDefault("captcha.arithmetic_enabled", true)
	vip.SetDefault("captcha.challenge_ttl", 10*time.Minute)
	vip.SetDefault("admin.username", "admin")
	vip.SetDefault("admin.token_expiry_hrs", 12)
	vip.SetDefault("rate_limit.enabled", true)
	vip.SetDefault("rate_limit.max_requests", 10)
	vip.SetDefault("rate_limit.window", time.Minute)
	vip.SetDefault("log.level", "info")
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	setDefaults(vip)

	// Привязываем переменные окружения явно
	vip.BindEnv("server.port", "SERVER_PORT")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("email.shop_name", "EMAIL_SHOP_NAME")

	vip.BindEnv("newsletter.verify_url", "NEWSLETTER_VERIFY_URL")
	vip.BindEnv("newsletter.default_shop_id", "NEWSLETTER_DEFAULT_SHOP_ID")

	vip.BindEnv("admin.username", "ADMIN_USERNAME")
	vip.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")
	vip.BindEnv("admin.jwt_secret", "ADMIN_JWT_SECRET")

	vip.BindEnv("hooks.secret", "HOOKS_SECRET")

	vip.BindEnv("log.level", "LOG_LEVEL")
	vip.BindEnv("log.development", "LOG_DEVELOPMENT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файла может не быть, тогда работают env и умолчания
		if err := vip.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin JWT secret is required (check ADMIN_JWT_SECRET env var)")
	}
	if c.Admin.PasswordHash == "" {
		return fmt.Errorf("admin password hash is required (check ADMIN_PASSWORD_HASH env var)")
	}
	if c.Hooks.Secret == "" {
		return fmt.Errorf("hook secret is required (check HOOKS_SECRET env var)")
	}
	if c.Newsletter.VerifyURL == "" {
		return fmt.Errorf("newsletter verify URL is required (check NEWSLETTER_VERIFY_URL env var)")
	}
	if c.Email.Enabled && c.Email.ResendAPIKey == "" {
		return fmt.Errorf("email is enabled but RESEND_API_KEY is not set")
	}
	if c.Newsletter.ScanBatchSize <= 0 {
		return fmt.Errorf("newsletter.scan_batch_size must be positive")
	}
	return nil
}
