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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
	JustWatch    JustWatchConfig
	TMDB         TMDBConfig
	Retry        RetryConfig
	Ingestion    IngestionConfig
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
	Env          string `envconfig:"STREAMATLAS_APP_ENV" required:"true"`
	Port         string `envconfig:"STREAMATLAS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STREAMATLAS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STREAMATLAS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STREAMATLAS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STREAMATLAS_DB_DSN"`
	Driver string `envconfig:"STREAMATLAS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STREAMATLAS_DB_HOST"`
	LegacyPort     int    `envconfig:"STREAMATLAS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STREAMATLAS_DB_USER"`
	LegacyPassword string `envconfig:"STREAMATLAS_DB_PASSWORD"`
	LegacyName     string `envconfig:"STREAMATLAS_DB_NAME"`
	LegacySSLMode  string `envconfig:"STREAMATLAS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STREAMATLAS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STREAMATLAS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STREAMATLAS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STREAMATLAS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STREAMATLAS_REDIS_URL"`
	Address      string        `envconfig:"STREAMATLAS_REDIS_ADDR"`
	Password     string        `envconfig:"STREAMATLAS_REDIS_PASSWORD"`
	DB           int           `envconfig:"STREAMATLAS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STREAMATLAS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STREAMATLAS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STREAMATLAS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STREAMATLAS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STREAMATLAS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"STREAMATLAS_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STREAMATLAS_JWT_ISSUER" default:"streamatlas"`
}

type CORSConfig struct {
	Origins []string `envconfig:"STREAMATLAS_CORS_ORIGINS"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STREAMATLAS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STREAMATLAS_AUTO_MIGRATE" default:"false"`
}

// JustWatchConfig drives the catalog provider client.
type JustWatchConfig struct {
	BaseURL           string        `envconfig:"STREAMATLAS_JUSTWATCH_BASE_URL" default:"https://apis.justwatch.com"`
	Region            string        `envconfig:"STREAMATLAS_JUSTWATCH_REGION" default:"IN"`
	Language          string        `envconfig:"STREAMATLAS_JUSTWATCH_LANGUAGE" default:"en"`
	RequestsPerSecond float64       `envconfig:"STREAMATLAS_JUSTWATCH_REQUESTS_PER_SECOND" default:"2"`
	PageSize          int           `envconfig:"STREAMATLAS_JUSTWATCH_PAGE_SIZE" default:"30"`
	Timeout           time.Duration `envconfig:"STREAMATLAS_JUSTWATCH_TIMEOUT" default:"15s"`
}

// TMDBConfig drives the metadata provider client.
type TMDBConfig struct {
	BaseURL           string        `envconfig:"STREAMATLAS_TMDB_BASE_URL" default:"https://api.themoviedb.org/3"`
	APIKey            string        `envconfig:"STREAMATLAS_TMDB_API_KEY"`
	RequestsPerSecond float64       `envconfig:"STREAMATLAS_TMDB_REQUESTS_PER_SECOND" default:"4"`
	Timeout           time.Duration `envconfig:"STREAMATLAS_TMDB_TIMEOUT" default:"10s"`
}

type RetryConfig struct {
	MaxRetries int           `envconfig:"STREAMATLAS_MAX_RETRIES" default:"3"`
	BaseDelay  time.Duration `envconfig:"STREAMATLAS_RETRY_BASE_DELAY" default:"1s"`
}

// IngestionConfig bounds the catalog pipeline. MaxPagesPerPlatform caps how
// deep each platform's feed is paged on scheduled updates; titles beyond the
// cap are only reachable by raising it, which is an explicit operator choice.
type IngestionConfig struct {
	CronSchedule         string        `envconfig:"STREAMATLAS_INGESTION_CRON_SCHEDULE" default:"0 */6 * * *"`
	BootstrapOnStart     bool          `envconfig:"STREAMATLAS_BOOTSTRAP_ON_START" default:"false"`
	BootstrapPlatforms   []string      `envconfig:"STREAMATLAS_BOOTSTRAP_PLATFORMS"`
	MaxPagesPerPlatform  int           `envconfig:"STREAMATLAS_INGEST_MAX_PAGES" default:"10"`
	BootstrapMaxPages    int           `envconfig:"STREAMATLAS_BOOTSTRAP_MAX_PAGES" default:"50"`
	EnrichLimit          int           `envconfig:"STREAMATLAS_ENRICH_LIMIT" default:"50"`
	BootstrapEnrichLimit int           `envconfig:"STREAMATLAS_BOOTSTRAP_ENRICH_LIMIT" default:"100"`
	EnrichBatchSize      int           `envconfig:"STREAMATLAS_ENRICH_BATCH_SIZE" default:"10"`
	PageDelay            time.Duration `envconfig:"STREAMATLAS_INGEST_PAGE_DELAY" default:"500ms"`
	PlatformDelay        time.Duration `envconfig:"STREAMATLAS_INGEST_PLATFORM_DELAY" default:"1s"`
	BatchDelay           time.Duration `envconfig:"STREAMATLAS_ENRICH_BATCH_DELAY" default:"1s"`
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
