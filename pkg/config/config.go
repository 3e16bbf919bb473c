package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "TOKOSAKU"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
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
	Env          string `envconfig:"TOKOSAKU_APP_ENV" required:"true"`
	Port         string `envconfig:"TOKOSAKU_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOKOSAKU_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TOKOSAKU_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TOKOSAKU_DB_DSN"`
	Driver string `envconfig:"TOKOSAKU_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TOKOSAKU_DB_HOST"`
	Port     int    `envconfig:"TOKOSAKU_DB_PORT" default:"5432"`
	User     string `envconfig:"TOKOSAKU_DB_USER"`
	Password string `envconfig:"TOKOSAKU_DB_PASSWORD"`
	Name     string `envconfig:"TOKOSAKU_DB_NAME"`
	SSLMode  string `envconfig:"TOKOSAKU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOKOSAKU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOKOSAKU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOKOSAKU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOKOSAKU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"TOKOSAKU_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOKOSAKU_REDIS_URL" required:"true"`
	Password     string        `envconfig:"TOKOSAKU_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOKOSAKU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOKOSAKU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOKOSAKU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOKOSAKU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOKOSAKU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOKOSAKU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"TOKOSAKU_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"TOKOSAKU_JWT_ISSUER" required:"true"`
}

// GatewayConfig holds the payment gateway credentials and endpoints.
type GatewayConfig struct {
	ServerKey      string        `envconfig:"TOKOSAKU_GATEWAY_SERVER_KEY" required:"true"`
	Env            string        `envconfig:"TOKOSAKU_GATEWAY_ENV" default:"sandbox"`
	RequestTimeout time.Duration `envconfig:"TOKOSAKU_GATEWAY_TIMEOUT" default:"10s"`
	FinishURL      string        `envconfig:"TOKOSAKU_GATEWAY_FINISH_URL"`
	ErrorURL       string        `envconfig:"TOKOSAKU_GATEWAY_ERROR_URL"`
	PendingURL     string        `envconfig:"TOKOSAKU_GATEWAY_PENDING_URL"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CheckoutConfig struct {
	OrderNumberAttempts int `envconfig:"TOKOSAKU_CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"3"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, val := range map[string]string{
		"TOKOSAKU_DB_HOST": db.Host,
		"TOKOSAKU_DB_USER": db.User,
		"TOKOSAKU_DB_NAME": db.Name,
	} {
		if val == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either TOKOSAKU_DB_DSN or %s are required", strings.Join(missing, ", "))
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
