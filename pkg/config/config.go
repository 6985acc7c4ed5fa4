package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Stripe        StripeConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"FRESHBULK_APP_ENV" required:"true"`
	Port            string        `envconfig:"FRESHBULK_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"FRESHBULK_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"FRESHBULK_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"FRESHBULK_SHUTDOWN_TIMEOUT" default:"15s"`
	CORSOrigins     []string      `envconfig:"FRESHBULK_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"FRESHBULK_DB_DSN"`

	Host     string `envconfig:"FRESHBULK_DB_HOST"`
	Port     int    `envconfig:"FRESHBULK_DB_PORT" default:"5432"`
	User     string `envconfig:"FRESHBULK_DB_USER"`
	Password string `envconfig:"FRESHBULK_DB_PASSWORD"`
	Name     string `envconfig:"FRESHBULK_DB_NAME"`
	SSLMode  string `envconfig:"FRESHBULK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHBULK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHBULK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHBULK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHBULK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHBULK_REDIS_URL"`
	Address      string        `envconfig:"FRESHBULK_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHBULK_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHBULK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHBULK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHBULK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHBULK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHBULK_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"FRESHBULK_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FRESHBULK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FRESHBULK_JWT_ISSUER" default:"freshbulk"`
	ExpirationMinutes int    `envconfig:"FRESHBULK_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FRESHBULK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FRESHBULK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FRESHBULK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FRESHBULK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FRESHBULK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow    time.Duration `envconfig:"FRESHBULK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginLimit     int           `envconfig:"FRESHBULK_AUTH_RATE_LIMIT_LOGIN_LIMIT" default:"10"`
	RegisterWindow time.Duration `envconfig:"FRESHBULK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterLimit  int           `envconfig:"FRESHBULK_AUTH_RATE_LIMIT_REGISTER_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FRESHBULK_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	Currency   string `envconfig:"FRESHBULK_CHECKOUT_CURRENCY" default:"inr"`
	SuccessURL string `envconfig:"FRESHBULK_CHECKOUT_SUCCESS_URL" default:"http://localhost:5173/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"FRESHBULK_CHECKOUT_CANCEL_URL" default:"http://localhost:5173/cart"`
}

func (c CheckoutConfig) validate() error {
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("%s must be a three letter ISO currency", EnvCheckoutCurrency)
	}
	for env, raw := range map[string]string{EnvCheckoutSuccessURL: c.SuccessURL, EnvCheckoutCancelURL: c.CancelURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute url", env)
		}
	}
	return nil
}

type StripeConfig struct {
	APIKey string `envconfig:"FRESHBULK_STRIPE_API_KEY"`
	Env    string `envconfig:"FRESHBULK_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID       string `envconfig:"FRESHBULK_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"FRESHBULK_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"FRESHBULK_PUBSUB_ORDERS_TOPIC" default:"freshbulk-orders"`
	OrdersSubscription string `envconfig:"FRESHBULK_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"FRESHBULK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"FRESHBULK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"FRESHBULK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsPort    string `envconfig:"FRESHBULK_OUTBOX_METRICS_PORT"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
