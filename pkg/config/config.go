package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable read by envconfig.
	EnvPrefix = "MEALKART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	GuestStore GuestStoreConfig
	Catalog    CatalogConfig
	RemoteCart RemoteCartConfig
	Mutation   MutationConfig
	Sync       SyncConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Catalog.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEALKART_APP_ENV" required:"true"`
	Port         string `envconfig:"MEALKART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MEALKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEALKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MEALKART_DB_DSN"`
	Driver string `envconfig:"MEALKART_DB_DRIVER" default:"sqlite"`

	SQLitePath string `envconfig:"MEALKART_DB_SQLITE_PATH" default:"cartsync.db"`

	PGHost     string `envconfig:"MEALKART_DB_HOST"`
	PGPort     int    `envconfig:"MEALKART_DB_PORT" default:"5432"`
	PGUser     string `envconfig:"MEALKART_DB_USER"`
	PGPassword string `envconfig:"MEALKART_DB_PASSWORD"`
	PGName     string `envconfig:"MEALKART_DB_NAME"`
	PGSSLMode  string `envconfig:"MEALKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEALKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEALKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEALKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEALKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the guest store runs on the embedded database.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"MEALKART_REDIS_URL"`
	Address      string        `envconfig:"MEALKART_REDIS_ADDR"`
	Password     string        `envconfig:"MEALKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEALKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEALKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEALKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEALKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEALKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEALKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"MEALKART_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"MEALKART_JWT_ISSUER" required:"true"`
}

type GuestStoreConfig struct {
	// Backend selects the durable guest-cart backend: gorm, redis or file.
	Backend  string        `envconfig:"MEALKART_GUEST_STORE_BACKEND" default:"gorm"`
	FilePath string        `envconfig:"MEALKART_GUEST_STORE_FILE_PATH" default:"guest_carts"`
	CacheTTL time.Duration `envconfig:"MEALKART_GUEST_STORE_CACHE_TTL" default:"24h"`
}

type CatalogConfig struct {
	BaseURL string        `envconfig:"MEALKART_CATALOG_BASE_URL" required:"true"`
	// ImageOrigin prefixes relative image paths from legacy catalog payloads.
	ImageOrigin string        `envconfig:"MEALKART_CATALOG_IMAGE_ORIGIN" required:"true"`
	Timeout     time.Duration `envconfig:"MEALKART_CATALOG_TIMEOUT" default:"10s"`
}

func (c CatalogConfig) validate() error {
	if _, err := url.Parse(c.ImageOrigin); err != nil {
		return fmt.Errorf("invalid catalog image origin: %w", err)
	}
	return nil
}

type RemoteCartConfig struct {
	BaseURL string        `envconfig:"MEALKART_REMOTE_CART_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"MEALKART_REMOTE_CART_TIMEOUT" default:"10s"`
}

type MutationConfig struct {
	DebounceWindow time.Duration `envconfig:"MEALKART_MUTATION_DEBOUNCE_WINDOW" default:"500ms"`
	MinQuantity    int           `envconfig:"MEALKART_MUTATION_MIN_QTY" default:"1"`
	MaxQuantity    int           `envconfig:"MEALKART_MUTATION_MAX_QTY" default:"999"`
}

type SyncConfig struct {
	MaxConcurrent int `envconfig:"MEALKART_SYNC_MAX_CONCURRENT" default:"8"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = db.SQLitePath
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"MEALKART_DB_HOST": db.PGHost,
		"MEALKART_DB_USER": db.PGUser,
		"MEALKART_DB_NAME": db.PGName,
	}
	for _, key := range []string{"MEALKART_DB_HOST", "MEALKART_DB_USER", "MEALKART_DB_NAME"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either MEALKART_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.PGUser)
	if db.PGPassword != "" {
		userInfo = url.UserPassword(db.PGUser, db.PGPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.PGHost, db.PGPort),
		Path:   db.PGName,
	}
	if db.PGSSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.PGSSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
