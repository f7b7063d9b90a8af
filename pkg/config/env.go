package config

const (
	EnvPrefix = "CHECKOUT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "CHECKOUT_APP_ENV"
	EnvPort         = "CHECKOUT_APP_PORT"
	EnvLogLevel     = "CHECKOUT_LOG_LEVEL"
	EnvLogWarnStack = "CHECKOUT_LOG_WARN_STACK"

	EnvDBDSN      = "CHECKOUT_DB_DSN"
	EnvDBHost     = "CHECKOUT_DB_HOST"
	EnvDBUser     = "CHECKOUT_DB_USER"
	EnvDBName     = "CHECKOUT_DB_NAME"
	EnvDBPassword = "CHECKOUT_DB_PASSWORD"

	EnvRedisURL = "CHECKOUT_REDIS_URL"

	EnvUseSQLite   = "CHECKOUT_USE_SQLITE"
	EnvAutoMigrate = "CHECKOUT_AUTO_MIGRATE"

	EnvCurrency             = "CHECKOUT_CURRENCY"
	EnvBaseShippingCost     = "CHECKOUT_BASE_SHIPPING_COST"
	EnvVolumeDiscountEnable = "CHECKOUT_VOLUME_DISCOUNT_ENABLED"

	EnvVariantBPercent = "CHECKOUT_VARIANT_B_PERCENT"

	EnvAddressLookupCountries = "CHECKOUT_ADDRESS_LOOKUP_COUNTRIES"
	EnvAddressDebounce        = "CHECKOUT_ADDRESS_DEBOUNCE"

	EnvCommerceBaseURL        = "CHECKOUT_COMMERCE_BASE_URL"
	EnvCommerceConsumerKey    = "CHECKOUT_COMMERCE_CONSUMER_KEY"
	EnvCommerceConsumerSecret = "CHECKOUT_COMMERCE_CONSUMER_SECRET"

	EnvStripeAPIKey = "CHECKOUT_STRIPE_API_KEY"
	EnvStripeSecret = "CHECKOUT_STRIPE_WEBHOOK_SECRET"

	EnvCustomerJWTSecret = "CHECKOUT_CUSTOMER_JWT_SECRET"

	EnvGCPProjectID       = "CHECKOUT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic  = "CHECKOUT_PUBSUB_ORDERS_TOPIC"
	EnvCORSAllowedOrigins = "CHECKOUT_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
