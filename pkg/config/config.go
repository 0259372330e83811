package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/amouradev/amoura-backend/pkg/enums"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Entitlements  EntitlementsConfig
	Cron          CronConfig
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
	Env          string `envconfig:"AMOURA_APP_ENV" required:"true"`
	Port         string `envconfig:"AMOURA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AMOURA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AMOURA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AMOURA_DB_DSN"`
	Driver string `envconfig:"AMOURA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AMOURA_DB_HOST"`
	Port     int    `envconfig:"AMOURA_DB_PORT" default:"5432"`
	User     string `envconfig:"AMOURA_DB_USER"`
	Password string `envconfig:"AMOURA_DB_PASSWORD"`
	Name     string `envconfig:"AMOURA_DB_NAME"`
	SSLMode  string `envconfig:"AMOURA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AMOURA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AMOURA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AMOURA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AMOURA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AMOURA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AMOURA_REDIS_ADDR"`
	Password     string        `envconfig:"AMOURA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AMOURA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AMOURA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AMOURA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AMOURA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AMOURA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AMOURA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"AMOURA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"AMOURA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"AMOURA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"AMOURA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AMOURA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AMOURA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AMOURA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AMOURA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AMOURA_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"AMOURA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"AMOURA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"AMOURA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"AMOURA_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"AMOURA_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"AMOURA_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AMOURA_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"AMOURA_STRIPE_API_KEY"`
	Secret string `envconfig:"AMOURA_STRIPE_SECRET"`
	Env    string `envconfig:"AMOURA_STRIPE_ENV" default:"test"`

	PricePlusMonthly    string `envconfig:"AMOURA_STRIPE_PRICE_PLUS_MONTHLY"`
	PricePlusQuarterly  string `envconfig:"AMOURA_STRIPE_PRICE_PLUS_QUARTERLY"`
	PriceEliteMonthly   string `envconfig:"AMOURA_STRIPE_PRICE_ELITE_MONTHLY"`
	PriceEliteQuarterly string `envconfig:"AMOURA_STRIPE_PRICE_ELITE_QUARTERLY"`

	CheckoutSuccessURL string `envconfig:"AMOURA_STRIPE_CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `envconfig:"AMOURA_STRIPE_CHECKOUT_CANCEL_URL"`
	PortalReturnURL    string `envconfig:"AMOURA_STRIPE_PORTAL_RETURN_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PriceFor resolves the Stripe price ID for a paid tier and interval.
func (s StripeConfig) PriceFor(tier enums.SubscriptionTier, interval enums.BillingInterval) (string, error) {
	switch {
	case tier == enums.SubscriptionTierPlus && interval == enums.BillingIntervalMonthly:
		return s.PricePlusMonthly, nil
	case tier == enums.SubscriptionTierPlus && interval == enums.BillingIntervalQuarterly:
		return s.PricePlusQuarterly, nil
	case tier == enums.SubscriptionTierElite && interval == enums.BillingIntervalMonthly:
		return s.PriceEliteMonthly, nil
	case tier == enums.SubscriptionTierElite && interval == enums.BillingIntervalQuarterly:
		return s.PriceEliteQuarterly, nil
	}
	return "", fmt.Errorf("no price configured for tier %q interval %q", tier, interval)
}

// PlanForPrice resolves a configured price ID back to its tier and interval.
func (s StripeConfig) PlanForPrice(priceID string) (enums.SubscriptionTier, enums.BillingInterval, bool) {
	switch priceID {
	case s.PricePlusMonthly:
		return enums.SubscriptionTierPlus, enums.BillingIntervalMonthly, priceID != ""
	case s.PricePlusQuarterly:
		return enums.SubscriptionTierPlus, enums.BillingIntervalQuarterly, priceID != ""
	case s.PriceEliteMonthly:
		return enums.SubscriptionTierElite, enums.BillingIntervalMonthly, priceID != ""
	case s.PriceEliteQuarterly:
		return enums.SubscriptionTierElite, enums.BillingIntervalQuarterly, priceID != ""
	}
	return "", "", false
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AMOURA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AMOURA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AMOURA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"AMOURA_PUBSUB_DOMAIN_TOPIC" default:"amoura-domain-events"`
}

type EntitlementsConfig struct {
	// PremiumMaxPhotos is the remotely-configured gallery cap applied to
	// premium subscribers regardless of reputation tier.
	PremiumMaxPhotos int `envconfig:"AMOURA_PREMIUM_MAX_PHOTOS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"AMOURA_CRON_INTERVAL" default:"1h"`
	LockKey  string        `envconfig:"AMOURA_CRON_LOCK_KEY" default:"cron-worker"`
	LockTTL  time.Duration `envconfig:"AMOURA_CRON_LOCK_TTL" default:"2h"`
	Port     string        `envconfig:"AMOURA_CRON_METRICS_PORT" default:"9102"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for envName, value := range map[string]string{
		"AMOURA_DB_HOST": db.Host,
		"AMOURA_DB_USER": db.User,
		"AMOURA_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, envName)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either AMOURA_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
