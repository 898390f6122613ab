package routing

import (
	"context"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocachestore "github.com/eko/gocache/store/go_cache/v4"
	"github.com/go-kratos/kratos/v2/log"
	gocache "github.com/patrickmn/go-cache"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/metrics"
)

// CachedRouter memoizes routes by their exact waypoint sequence, so
// toggling a stop off and back on does not hit the routing service again.
type CachedRouter struct {
	next    Router
	cache   cache.CacheInterface[*Route]
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *log.Helper
}

// NewCachedRouter wraps next with an in-memory cache holding entries for ttl.
func NewCachedRouter(next Router, ttl time.Duration, m *metrics.Metrics, logger log.Logger) *CachedRouter {
	client := gocache.New(ttl, 2*ttl)
	return &CachedRouter{
		next:    next,
		cache:   cache.New[*Route](gocachestore.NewGoCache(client)),
		ttl:     ttl,
		metrics: m,
		log:     log.NewHelper(logger),
	}
}

func (c *CachedRouter) Route(ctx context.Context, waypoints []geo.LatLng) (*Route, error) {
	key := CoordinateString(waypoints)
	if r, err := c.cache.Get(ctx, key); err == nil && r != nil {
		c.metrics.RouteRequest("cached", 0)
		return r, nil
	}

	start := time.Now()
	r, err := c.next.Route(ctx, waypoints)
	if err != nil {
		c.metrics.RouteRequest("error", time.Since(start))
		return nil, err
	}
	c.metrics.RouteRequest("ok", time.Since(start))

	if err := c.cache.Set(ctx, key, r, store.WithExpiration(c.ttl)); err != nil {
		c.log.Warnf("caching route %s: %v", key, err)
	}
	return r, nil
}
