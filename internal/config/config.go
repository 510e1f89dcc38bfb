package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "STOCKROOM_"

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Data files
	DataDir      string // base directory for every data file
	CatalogFile  string // catalog JSON array, a .bak sits next to it
	FeedFile     string // local copy of the supplier XML feed
	ListsFile    string // named product lists
	FeaturedFile string // featured category names

	// Catalog policy
	ReloadInterval time.Duration // feed re-ingestion interval (default: 10m)
	DefaultVAT     int           // VAT percent when the feed or a form has none
	SkipOutOfStock bool          // drop stock <= 0 offers at parse time
	RetainManual   bool          // keep non-feed entries across ingestion

	// Feed archives written by the downloader next to FeedFile
	ArchivePattern  string        // glob, ex: "products_*.xml"
	ArchiveKeep     int           // newest archives to keep
	ArchiveInterval time.Duration // janitor interval

	// Redis price mirror (empty RedisAddr = disabled)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password when RedisAddr is set
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
	RedisKeyPrefix        string        // namespace for mirror keys

	// Ops endpoints
	AllowedCIDRS    []string // optional, restrict ops routes to these IPs/CIDRs
	AllowedHosts    []string // optional, Host headers accepted on mutating routes
	TrustProxy      bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateLimitPerMin int      // mutating requests per minute per client IP
	RateLimitBurst  int
}

// Load builds the configuration from STOCKROOM_* environment variables,
// layered over the optional YAML file named by STOCKROOM_CONFIG_FILE.
// Environment variables always win.
func Load() *Config {
	src := newSource(os.Getenv(envPrefix + "CONFIG_FILE"))

	dataDir := src.getenv("DATA_DIR", "data")
	cfg := &Config{
		// Server settings
		ListenPort:      src.getenv("LISTEN_PORT", ":8080"),
		ShutdownTimeout: src.mustDuration("SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  src.getenv("LOG_LEVEL", "info"),
		PrettyLog: src.mustBool("PRETTY_LOG", true),

		// Data files
		DataDir:      dataDir,
		CatalogFile:  src.getenv("CATALOG_FILE", filepath.Join(dataDir, "products.json")),
		FeedFile:     src.getenv("FEED_FILE", filepath.Join(dataDir, "products_latest.xml")),
		ListsFile:    src.getenv("LISTS_FILE", filepath.Join(dataDir, "product_lists.json")),
		FeaturedFile: src.getenv("FEATURED_FILE", filepath.Join(dataDir, "featured_categories.json")),

		// Catalog policy
		ReloadInterval: src.mustDuration("RELOAD_INTERVAL", 10*time.Minute),
		DefaultVAT:     src.getenvInt("DEFAULT_VAT", 23),
		SkipOutOfStock: src.mustBool("SKIP_OUT_OF_STOCK", false),
		RetainManual:   src.mustBool("RETAIN_MANUAL", true),

		// Archives
		ArchivePattern:  src.getenv("ARCHIVE_PATTERN", "products_*.xml"),
		ArchiveKeep:     src.getenvInt("ARCHIVE_KEEP", 24),
		ArchiveInterval: src.mustDuration("ARCHIVE_INTERVAL", time.Hour),

		// Redis settings
		RedisAddr:             src.getenv("REDIS_ADDR", ""),
		RedisUser:             src.getenv("REDIS_USERNAME", "default"),
		RedisPasswordRequired: src.mustBool("REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         src.getenv("REDIS_PASSWORD", ""),
		RedisDB:               src.getenvInt("REDIS_DB", 0),
		RedisDT:               src.mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               src.mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               src.mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          src.mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      src.mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         src.getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   src.mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    src.mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    src.getenvInt("REDIS_WARN_THRESHOLD", 3),
		RedisKeyPrefix:        src.getenv("REDIS_KEY_PREFIX", "stockroom"),

		// Access restrictions
		AllowedCIDRS:    splitAndTrim(src.getenv("ALLOWED_CIDRS", "")),
		AllowedHosts:    splitAndTrim(src.getenv("ALLOWED_HOSTS", "")),
		TrustProxy:      src.mustBool("TRUST_PROXY", false),
		RateLimitPerMin: src.getenvInt("RATE_LIMIT_PER_MIN", 6),
		RateLimitBurst:  src.getenvInt("RATE_LIMIT_BURST", 3),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// MirrorEnabled reports whether the Redis price mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) validate() error {
	if c.MirrorEnabled() && c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("%sREDIS_PASSWORD is required when %sREDIS_PASSWORD_REQUIRED=true", envPrefix, envPrefix)
	}
	if c.DefaultVAT < 0 || c.DefaultVAT > 100 {
		return fmt.Errorf("%sDEFAULT_VAT must be between 0 and 100, got %d", envPrefix, c.DefaultVAT)
	}
	if c.ReloadInterval <= 0 {
		return fmt.Errorf("%sRELOAD_INTERVAL must be positive", envPrefix)
	}
	if c.ArchiveKeep < 1 {
		return fmt.Errorf("%sARCHIVE_KEEP must be at least 1", envPrefix)
	}
	if c.RateLimitPerMin < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("%sRATE_LIMIT_PER_MIN and %sRATE_LIMIT_BURST must be positive", envPrefix, envPrefix)
	}
	return nil
}

// source resolves a key from the environment first, then from the YAML file.
type source struct {
	file map[string]string
}

// newSource reads the optional YAML layer. Keys are the variable names
// without prefix, in lower case: `reload_interval: 15m`.
func newSource(path string) *source {
	s := &source{file: map[string]string{}}
	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: cannot read config file %s: %v", path, err))
	}
	values, err := parseFile(data)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid config file %s: %v", path, err))
	}
	s.file = values
	return s
}

func parseFile(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch tv := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(tv))
			for _, p := range tv {
				parts = append(parts, fmt.Sprint(p))
			}
			values[key] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("key %q: nested values are not supported", k)
		default:
			values[key] = fmt.Sprint(tv)
		}
	}
	return values, nil
}

func (s *source) lookup(key string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return s.file[key]
}

// helpers
func (s *source) getenv(key, def string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return def
}

func (s *source) getenvInt(key string, def int) int {
	if v := s.lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (s *source) mustBool(key string, def bool) bool {
	if v := s.lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func (s *source) mustDuration(key string, def time.Duration) time.Duration {
	if v := s.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
