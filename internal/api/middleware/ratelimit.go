package middleware

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/feedline/config"
	"github.com/d60-Lab/feedline/pkg/response"
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// limiterStore 每个主体一个令牌桶；闲置超过 idleTTL 的条目在请求路径上顺带清掉
type limiterStore struct {
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	visitors  *xsync.MapOf[string, *visitor]
	lastSweep atomic.Int64
}

func newLimiterStore(cfg config.RateLimitConfig, now func() time.Time) *limiterStore {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s := &limiterStore{
		rps:      rate.Limit(cfg.RPS),
		burst:    cfg.Burst,
		idleTTL:  ttl,
		now:      now,
		visitors: xsync.NewMapOf[string, *visitor](),
	}
	s.lastSweep.Store(now().UnixNano())
	return s
}

func (s *limiterStore) allow(key string) bool {
	now := s.now()
	v, _ := s.visitors.LoadOrCompute(key, func() *visitor {
		return &visitor{lim: rate.NewLimiter(s.rps, s.burst)}
	})
	v.lastSeen.Store(now.UnixNano())
	s.maybeSweep(now)
	return v.lim.AllowN(now, 1)
}

// maybeSweep 每个 idleTTL 周期最多由一个请求执行一次
func (s *limiterStore) maybeSweep(now time.Time) {
	last := s.lastSweep.Load()
	if now.UnixNano()-last < int64(s.idleTTL) || !s.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-s.idleTTL).UnixNano()
	s.visitors.Range(func(key string, v *visitor) bool {
		if v.lastSeen.Load() < cutoff {
			s.visitors.Compute(key, func(old *visitor, loaded bool) (*visitor, bool) {
				// 清理期间又被访问过的保留
				return old, !loaded || old.lastSeen.Load() < cutoff
			})
		}
		return true
	})
}

func (s *limiterStore) size() int { return s.visitors.Size() }

// RateLimit 按登录用户（匿名按 IP）限流
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	store := newLimiterStore(cfg, time.Now)
	return func(c *gin.Context) {
		key := CurrentFeedID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !store.allow(key) {
			response.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
