package app

import (
	"net/http"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const (
	envPrefix   = "CATALOG"
	defaultAddr = "0.0.0.0:8080"
	feedAddr    = "0.0.0.0:8081"
)

var configFiles = []string{"config.yaml", "/etc/catalog/config.yaml"}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Feed sources.
const (
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

// WebConfig configures catalog-web. It is loadable from CATALOG_-prefixed
// environment variables, flags or YAML config files.
type WebConfig struct {
	Addr      string `default:"0.0.0.0:8080" usage:"Web server listen address"`
	Feed      FeedClientConfig
	Cache     CacheConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// FeedClientConfig locates the product feed.
type FeedClientConfig struct {
	URL          string        `default:"http://localhost:8081/api/products/products.json" usage:"Product feed URL"`
	Timeout      time.Duration `default:"10s" usage:"Timeout of a single feed request"`
	MaxBodyBytes int64         `default:"8388608" usage:"Maximum feed response size" flag:"feed-max-body-bytes"`
}

// CacheConfig selects the snapshot cache.
type CacheConfig struct {
	Backend string        `default:"memory" usage:"Snapshot cache backend: none, memory or redis"`
	TTL     time.Duration `default:"30s" usage:"Snapshot cache TTL"`
}

// RedisConfig is used by the redis cache backend.
type RedisConfig struct {
	Addr     string `default:"localhost:6379" usage:"Redis address"`
	Password string `usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database"`
	Key      string `default:"catalog:snapshot" usage:"Redis key of the snapshot"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables limiting"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// FeedConfig configures catalog-feed.
type FeedConfig struct {
	Addr        string `default:"0.0.0.0:8081" usage:"Feed server listen address"`
	Source      string `default:"postgres" usage:"Product source: postgres or file"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CATALOG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	File        string `default:"db/seed/products.json" usage:"Products JSON file for the file source"`
	FailStatus  int    `default:"0" usage:"Answer every feed request with this HTTP status" flag:"fail-status"`
	Graceful    GracefulConfig
}

func load(dst any) error {
	return loadWith(dst, aconfig.Config{Files: configFiles})
}

// loadWith fills dst using cfg, which selects the config files and whether
// command line flags are parsed.
func loadWith(dst any, cfg aconfig.Config) error {
	cfg.EnvPrefix = envPrefix
	cfg.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	loader := aconfig.LoaderFor(dst, cfg)
	if err := loader.Load(); err != nil {
		return errors.Wrap(err, "load config")
	}
	return nil
}

// LoadWebConfig loads and validates the catalog-web configuration.
func LoadWebConfig() (*WebConfig, error) {
	var cfg WebConfig
	if err := load(&cfg); err != nil {
		return nil, err
	}
	cfg.Addr = platformAddr(cfg.Addr, defaultAddr)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values that defaults cannot guarantee.
func (c *WebConfig) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed URL is required: set CATALOG_FEED_URL")
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return errors.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheNone && c.Cache.TTL <= 0 {
		return errors.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}
	return nil
}

// LoadFeedConfig loads and validates the catalog-feed configuration.
func LoadFeedConfig() (*FeedConfig, error) {
	var cfg FeedConfig
	if err := load(&cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	cfg.Addr = platformAddr(cfg.Addr, feedAddr)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values that defaults cannot guarantee.
func (c *FeedConfig) Validate() error {
	switch c.Source {
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set CATALOG_DATABASE_URL or DATABASE_URL")
		}
	case SourceFile:
		if c.File == "" {
			return errors.New("products file is required for the file source")
		}
	default:
		return errors.Errorf("unknown feed source %q", c.Source)
	}
	if c.FailStatus != 0 && (c.FailStatus < 400 || c.FailStatus > 599 || http.StatusText(c.FailStatus) == "") {
		return errors.Errorf("fail status must be a 4xx or 5xx code, got %d", c.FailStatus)
	}
	return nil
}

// platformAddr maps the PORT variable set by hosting platforms onto an
// address left at its default.
func platformAddr(addr, def string) string {
	if port := os.Getenv("PORT"); port != "" && addr == def {
		return "0.0.0.0:" + port
	}
	return addr
}
