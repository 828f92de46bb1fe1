package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Square       SquareConfig
	Mailgun      MailgunConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SUSSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"SUSSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SUSSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SUSSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SUSSHOP_DB_DSN"`
	Driver string `envconfig:"SUSSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUSSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"SUSSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUSSHOP_DB_USER"`
	LegacyPassword string `envconfig:"SUSSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUSSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUSSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUSSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUSSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUSSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUSSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SUSSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SUSSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SUSSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUSSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUSSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUSSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUSSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUSSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUSSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SquareConfig struct {
	Env             string `envconfig:"SUSSHOP_SQUARE_ENV" default:"sandbox"`
	AccessToken     string `envconfig:"SUSSHOP_SQUARE_ACCESS_TOKEN"`
	LocationID      string `envconfig:"SUSSHOP_SQUARE_LOCATION_ID"`
	WebhookSecret   string `envconfig:"SUSSHOP_SQUARE_WEBHOOK_SECRET"`
	RedirectBaseURL string `envconfig:"SUSSHOP_SQUARE_REDIRECT_BASE_URL" default:"https://www.sus-ec-shop.com"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type MailgunConfig struct {
	BaseURL    string `envconfig:"SUSSHOP_MAILGUN_BASE_URL" default:"https://api.mailgun.net/v3"`
	Domain     string `envconfig:"SUSSHOP_MAILGUN_DOMAIN"`
	APIKey     string `envconfig:"SUSSHOP_MAILGUN_API_KEY"`
	From       string `envconfig:"SUSSHOP_MAILGUN_FROM_EMAIL"`
	AdminEmail string `envconfig:"SUSSHOP_ADMIN_EMAIL"`
}

type CheckoutConfig struct {
	PaymentDueHours      int `envconfig:"SUSSHOP_CHECKOUT_PAYMENT_DUE_HOURS" default:"48"`
	BaseShippingFeeYen   int `envconfig:"SUSSHOP_CHECKOUT_BASE_SHIPPING_FEE_YEN" default:"1000"`
	RemoteShippingFeeYen int `envconfig:"SUSSHOP_CHECKOUT_REMOTE_SHIPPING_FEE_YEN" default:"1800"`
}

// PaymentDue returns the bank transfer deadline window.
func (c CheckoutConfig) PaymentDue() time.Duration {
	if c.PaymentDueHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(c.PaymentDueHours) * time.Hour
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SUSSHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SUSSHOP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
