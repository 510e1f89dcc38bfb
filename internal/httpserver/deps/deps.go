package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/stockroom/internal/catalog"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
)

// Catalog is the part of the catalog manager the ops endpoints need.
type Catalog interface {
	Loaded() bool
	Count() (total, available int)
	LastIngest() *catalog.IngestReport
	RecomputeAllFromFeed() (updated, failed int, err error)
}

// Reloader queues feed re-ingestion.
type Reloader interface {
	Trigger() bool
	Status() (time.Time, error)
}

// Mirror reports on the Redis price mirror.
type Mirror interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	AllowedHosts []string // Host headers allowed on mutating routes
	AllowedCIDRS []string // IPs allowed on ops routes
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimit    int      // mutating requests per minute per client IP
	RateBurst    int
	Catalog      Catalog
	Reloader     Reloader
	Mirror       Mirror // nil when the price mirror is disabled
}
