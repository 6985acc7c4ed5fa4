package config

const (
	EnvPrefix = "FRESHBULK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "FRESHBULK_APP_ENV"
	EnvPort               = "FRESHBULK_APP_PORT"
	EnvDBDSN              = "FRESHBULK_DB_DSN"
	EnvDBHost             = "FRESHBULK_DB_HOST"
	EnvDBUser             = "FRESHBULK_DB_USER"
	EnvDBName             = "FRESHBULK_DB_NAME"
	EnvRedisURL           = "FRESHBULK_REDIS_URL"
	EnvJWTSecret          = "FRESHBULK_JWT_SECRET"
	EnvJWTExpMins         = "FRESHBULK_JWT_EXPIRATION_MINUTES"
	EnvCheckoutCurrency   = "FRESHBULK_CHECKOUT_CURRENCY"
	EnvCheckoutSuccessURL = "FRESHBULK_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL  = "FRESHBULK_CHECKOUT_CANCEL_URL"
	EnvStripeAPIKey       = "FRESHBULK_STRIPE_API_KEY"
	EnvPubSubOrdersTopic  = "FRESHBULK_PUBSUB_ORDERS_TOPIC"
	EnvOutboxBatchSize    = "FRESHBULK_OUTBOX_PUBLISH_BATCH_SIZE"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
