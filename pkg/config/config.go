package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Variants     VariantsConfig
	Address      AddressConfig
	Commerce     CommerceConfig
	Stripe       StripeConfig
	Customer     CustomerConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Variants.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHECKOUT_APP_ENV" required:"true"`
	Port         string `envconfig:"CHECKOUT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CHECKOUT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHECKOUT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development") || strings.EqualFold(a.Env, "local")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"CHECKOUT_DB_DSN"`
	Driver string `envconfig:"CHECKOUT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHECKOUT_DB_HOST"`
	LegacyPort     int    `envconfig:"CHECKOUT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHECKOUT_DB_USER"`
	LegacyPassword string `envconfig:"CHECKOUT_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHECKOUT_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHECKOUT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHECKOUT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CHECKOUT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHECKOUT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHECKOUT_REDIS_ADDR"`
	Password     string        `envconfig:"CHECKOUT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHECKOUT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHECKOUT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHECKOUT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"CHECKOUT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CHECKOUT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CHECKOUT_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	Currency               string          `envconfig:"CHECKOUT_CURRENCY" default:"eur"`
	BaseShippingCost       decimal.Decimal `envconfig:"CHECKOUT_BASE_SHIPPING_COST" default:"4.95"`
	VolumeDiscountEnabled  bool            `envconfig:"CHECKOUT_VOLUME_DISCOUNT_ENABLED" default:"false"`
	VolumeDiscountMinimum  decimal.Decimal `envconfig:"CHECKOUT_VOLUME_DISCOUNT_THRESHOLD" default:"75"`
	VolumeDiscountPercent  decimal.Decimal `envconfig:"CHECKOUT_VOLUME_DISCOUNT_PERCENT" default:"10"`
	SessionTTL             time.Duration   `envconfig:"CHECKOUT_SESSION_TTL" default:"168h"`
	IntentLockTTL          time.Duration   `envconfig:"CHECKOUT_INTENT_LOCK_TTL" default:"30s"`
	IdempotencyTTL         time.Duration   `envconfig:"CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	WebhookDedupeTTL       time.Duration   `envconfig:"CHECKOUT_WEBHOOK_DEDUPE_TTL" default:"720h"`
	AddressDeleteTimeout   time.Duration   `envconfig:"CHECKOUT_ADDRESS_DELETE_TIMEOUT" default:"10s"`
	OrderEventsPublishWait time.Duration   `envconfig:"CHECKOUT_ORDER_EVENTS_PUBLISH_WAIT" default:"5s"`
	RateLimitRequests      int64           `envconfig:"CHECKOUT_RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow        time.Duration   `envconfig:"CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
}

// VariantsConfig controls the A/B split between the three-step and two-step flows.
type VariantsConfig struct {
	BPercent             int             `envconfig:"CHECKOUT_VARIANT_B_PERCENT" default:"50"`
	AFreeShippingMinimum decimal.Decimal `envconfig:"CHECKOUT_VARIANT_A_FREE_SHIPPING_THRESHOLD" default:"40"`
	BFreeShippingMinimum decimal.Decimal `envconfig:"CHECKOUT_VARIANT_B_FREE_SHIPPING_THRESHOLD" default:"29"`
	ForcedVariant        string          `envconfig:"CHECKOUT_VARIANT_FORCE"`
}

func (v VariantsConfig) validate() error {
	if v.BPercent < 0 || v.BPercent > 100 {
		return fmt.Errorf("%s must be between 0 and 100, got %d", EnvVariantBPercent, v.BPercent)
	}
	return nil
}

type AddressConfig struct {
	LookupCountries []string      `envconfig:"CHECKOUT_ADDRESS_LOOKUP_COUNTRIES" default:"NL"`
	Debounce        time.Duration `envconfig:"CHECKOUT_ADDRESS_DEBOUNCE" default:"1s"`
	CacheTTL        time.Duration `envconfig:"CHECKOUT_ADDRESS_CACHE_TTL" default:"24h"`
}

// LookupEnabled reports whether postcode autofill is offered for the country code.
func (a AddressConfig) LookupEnabled(country string) bool {
	country = strings.TrimSpace(country)
	for _, c := range a.LookupCountries {
		if strings.EqualFold(strings.TrimSpace(c), country) {
			return true
		}
	}
	return false
}

type CommerceConfig struct {
	BaseURL        string        `envconfig:"CHECKOUT_COMMERCE_BASE_URL"`
	ConsumerKey    string        `envconfig:"CHECKOUT_COMMERCE_CONSUMER_KEY"`
	ConsumerSecret string        `envconfig:"CHECKOUT_COMMERCE_CONSUMER_SECRET"`
	Timeout        time.Duration `envconfig:"CHECKOUT_COMMERCE_TIMEOUT" default:"10s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CHECKOUT_STRIPE_API_KEY"`
	Secret string `envconfig:"CHECKOUT_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"CHECKOUT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CustomerConfig struct {
	JWTSecret string `envconfig:"CHECKOUT_CUSTOMER_JWT_SECRET"`
	JWTIssuer string `envconfig:"CHECKOUT_CUSTOMER_JWT_ISSUER"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CHECKOUT_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CHECKOUT_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"CHECKOUT_PUBSUB_ORDERS_TOPIC"`
}

// Enabled reports whether order events should be published.
func (p PubSubConfig) Enabled(gcp GCPConfig) bool {
	return strings.TrimSpace(p.OrdersTopic) != "" && strings.TrimSpace(gcp.ProjectID) != ""
}

// OutboxConfig drives the outbox publisher loop.
type OutboxConfig struct {
	BatchSize    int           `envconfig:"CHECKOUT_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"CHECKOUT_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"CHECKOUT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MaintenanceConfig struct {
	Interval        time.Duration `envconfig:"CHECKOUT_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL         time.Duration `envconfig:"CHECKOUT_MAINTENANCE_LOCK_TTL" default:"50m"`
	OutboxRetention time.Duration `envconfig:"CHECKOUT_MAINTENANCE_OUTBOX_RETENTION" default:"720h"`
	SubmissionTTL   time.Duration `envconfig:"CHECKOUT_MAINTENANCE_SUBMISSION_TTL" default:"48h"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CHECKOUT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
