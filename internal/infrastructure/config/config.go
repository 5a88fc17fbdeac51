package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Paths     PathsConfig
	Routing   RoutingConfig
	Cache     CacheConfig
	Redis     RedisConfig
	ETL       ETLConfig
	Storage   StorageConfig
	HTTP      HTTPConfig
	Dashboard DashboardConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string // debug, info, warn, error
	Format    string // json, console
	Output    string // stdout, stderr, or file path
	GormLevel string // silent, error, warn, info
}

// DatabaseConfig holds the star schema store settings
type DatabaseConfig struct {
	Driver             string // sqlite or postgres
	Path               string // sqlite database file
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	SlowQueryThreshold time.Duration
	AutoMigrate        bool
}

// PathsConfig holds the working folders of the ETL
type PathsConfig struct {
	InputDir    string // spreadsheets to process
	BaseDataDir string // reference workbooks
	InsightsDir string // exported flat files
}

// RoutingConfig holds the routing service settings
type RoutingConfig struct {
	Provider        string // ors or disabled
	BaseURL         string
	APIKey          string
	Profile         string
	Timeout         time.Duration
	RequestsPerMin  int
	MaxResponseSize int64
}

// RequireAPIKey checks the key is present for providers that need one.
// Commands that never route (seed, export, history) skip this check.
func (r RoutingConfig) RequireAPIKey() error {
	if r.Provider == "ors" && r.APIKey == "" {
		return fmt.Errorf("routing.api_key is required (set LOGTOWER_ROUTING_API_KEY)")
	}
	return nil
}

// CacheConfig selects the route cache
type CacheConfig struct {
	Driver     string // memory, redis or none
	TTL        time.Duration
	MaxEntries int
	KeyPrefix  string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ETLConfig holds pipeline behavior
type ETLConfig struct {
	ConflictMode  string // skip, update or fail
	MaxRowErrors  int
	LoadReference bool // load dados_base workbooks before processing
}

// StorageConfig holds optional S3 publication of exports
type StorageConfig struct {
	Enabled        bool
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// HTTPConfig holds dashboard API server configuration
type HTTPConfig struct {
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	CORSAllowOrigins []string
}

// DashboardConfig holds the mock dataset parameters
type DashboardConfig struct {
	Seed      int64
	StartDate string // YYYY-MM-DD
	Days      int
	SLATarget float64
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
}

// Load loads configuration from config.toml found in ., ./config or /app and
// environment variables. See LoadFile.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from TOML file and environment variables.
// An empty path searches the default locations.
// Priority (highest to lowest):
// 1. Environment variables with LOGTOWER_ prefix (e.g., LOGTOWER_ROUTING_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LOGTOWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:     v.GetString("log.level"),
			Format:    v.GetString("log.format"),
			Output:    v.GetString("log.output"),
			GormLevel: v.GetString("log.gorm_level"),
		},
		Database: DatabaseConfig{
			Driver:             v.GetString("database.driver"),
			Path:               v.GetString("database.path"),
			Host:               v.GetString("database.host"),
			Port:               v.GetInt("database.port"),
			User:               v.GetString("database.user"),
			Password:           v.GetString("database.password"),
			DBName:             v.GetString("database.dbname"),
			SSLMode:            v.GetString("database.sslmode"),
			MaxOpenConns:       v.GetInt("database.max_open_conns"),
			MaxIdleConns:       v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime:    v.GetDuration("database.conn_max_lifetime"),
			SlowQueryThreshold: v.GetDuration("database.slow_query_threshold"),
			AutoMigrate:        v.GetBool("database.auto_migrate"),
		},
		Paths: PathsConfig{
			InputDir:    v.GetString("paths.input_dir"),
			BaseDataDir: v.GetString("paths.base_data_dir"),
			InsightsDir: v.GetString("paths.insights_dir"),
		},
		Routing: RoutingConfig{
			Provider:        v.GetString("routing.provider"),
			BaseURL:         v.GetString("routing.base_url"),
			APIKey:          v.GetString("routing.api_key"),
			Profile:         v.GetString("routing.profile"),
			Timeout:         v.GetDuration("routing.timeout"),
			RequestsPerMin:  v.GetInt("routing.requests_per_min"),
			MaxResponseSize: v.GetInt64("routing.max_response_size"),
		},
		Cache: CacheConfig{
			Driver:     v.GetString("cache.driver"),
			TTL:        v.GetDuration("cache.ttl"),
			MaxEntries: v.GetInt("cache.max_entries"),
			KeyPrefix:  v.GetString("cache.key_prefix"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		ETL: ETLConfig{
			ConflictMode:  v.GetString("etl.conflict_mode"),
			MaxRowErrors:  v.GetInt("etl.max_row_errors"),
			LoadReference: v.GetBool("etl.load_reference"),
		},
		Storage: StorageConfig{
			Enabled:        v.GetBool("storage.enabled"),
			Bucket:         v.GetString("storage.bucket"),
			Prefix:         v.GetString("storage.prefix"),
			Region:         v.GetString("storage.region"),
			Endpoint:       v.GetString("storage.endpoint"),
			AccessKey:      v.GetString("storage.access_key"),
			SecretKey:      v.GetString("storage.secret_key"),
			ForcePathStyle: v.GetBool("storage.force_path_style"),
		},
		HTTP: HTTPConfig{
			Port:             v.GetString("http.port"),
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Dashboard: DashboardConfig{
			Seed:      v.GetInt64("dashboard.seed"),
			StartDate: v.GetString("dashboard.start_date"),
			Days:      v.GetInt("dashboard.days"),
			SLATarget: v.GetFloat64("dashboard.sla_target"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "logtower"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.GormLevel == "" {
		cfg.Log.GormLevel = "warn"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "rotas.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "logtower"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.SlowQueryThreshold == 0 {
		cfg.Database.SlowQueryThreshold = 200 * time.Millisecond
	}

	if cfg.Paths.InputDir == "" {
		cfg.Paths.InputDir = "cte_files"
	}
	if cfg.Paths.BaseDataDir == "" {
		cfg.Paths.BaseDataDir = "dados_base"
	}
	if cfg.Paths.InsightsDir == "" {
		cfg.Paths.InsightsDir = "insights"
	}

	if cfg.Routing.Provider == "" {
		cfg.Routing.Provider = "ors"
	}
	if cfg.Routing.BaseURL == "" {
		cfg.Routing.BaseURL = "https://api.openrouteservice.org"
	}
	if cfg.Routing.Profile == "" {
		cfg.Routing.Profile = "driving-car"
	}
	if cfg.Routing.Timeout == 0 {
		cfg.Routing.Timeout = 30 * time.Second
	}
	// public free tier allows 40 directions requests per minute
	if cfg.Routing.RequestsPerMin == 0 {
		cfg.Routing.RequestsPerMin = 40
	}
	if cfg.Routing.MaxResponseSize == 0 {
		cfg.Routing.MaxResponseSize = 10 << 20
	}

	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * 24 * time.Hour
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10000
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "logtower:route:"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.ETL.ConflictMode == "" {
		cfg.ETL.ConflictMode = "skip"
	}
	if cfg.ETL.MaxRowErrors == 0 {
		cfg.ETL.MaxRowErrors = 100
	}

	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "insights/"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}

	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Dashboard.Seed == 0 {
		cfg.Dashboard.Seed = 42
	}
	if cfg.Dashboard.StartDate == "" {
		cfg.Dashboard.StartDate = "2024-01-01"
	}
	if cfg.Dashboard.Days == 0 {
		cfg.Dashboard.Days = 300
	}
	if cfg.Dashboard.SLATarget == 0 {
		cfg.Dashboard.SLATarget = 96
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "logtower"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 15 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Routing.Provider {
	case "ors", "disabled":
	default:
		return fmt.Errorf("routing.provider must be ors or disabled, got %q", c.Routing.Provider)
	}
	if c.Routing.RequestsPerMin < 0 {
		return fmt.Errorf("routing.requests_per_min must be positive")
	}

	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.driver must be memory, redis or none, got %q", c.Cache.Driver)
	}

	switch c.ETL.ConflictMode {
	case "skip", "update", "fail":
	default:
		return fmt.Errorf("etl.conflict_mode must be skip, update or fail, got %q", c.ETL.ConflictMode)
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if _, err := time.Parse(time.DateOnly, c.Dashboard.StartDate); err != nil {
		return fmt.Errorf("dashboard.start_date must be YYYY-MM-DD: %w", err)
	}
	if c.Dashboard.Days < 0 {
		return fmt.Errorf("dashboard.days cannot be negative")
	}

	if c.App.Env == "production" && c.Database.Driver == "postgres" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
