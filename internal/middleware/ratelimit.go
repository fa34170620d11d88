package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ivlev/mockupwarp/internal/response"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

// RateConfig is a per-client token bucket. Requests that decode or
// composite full images (upload, detect, render) spend HeavyCost tokens,
// everything else one. A non-positive Rate disables limiting.
type RateConfig struct {
	Rate      float64
	Burst     int
	HeavyCost int
	// IdleTTL drops buckets of clients not seen for that long.
	IdleTTL time.Duration
}

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

type rateLimiter struct {
	mu        sync.Mutex
	cfg       RateConfig
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(cfg RateConfig) *rateLimiter {
	cfg.Burst = max(cfg.Burst, 1)
	cfg.HeavyCost = min(max(cfg.HeavyCost, 1), cfg.Burst)
	return &rateLimiter{
		cfg:     cfg,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// limiterFor returns the bucket of key. Idle buckets are swept at most
// once per IdleTTL, on the request path.
func (r *rateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ttl := r.cfg.IdleTTL; ttl > 0 && now.Sub(r.lastSweep) >= ttl {
		for k, c := range r.clients {
			if now.Sub(c.seen) > ttl {
				delete(r.clients, k)
			}
		}
		r.lastSweep = now
	}

	c, ok := r.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(r.cfg.Rate), r.cfg.Burst)}
		r.clients[key] = c
	}
	c.seen = now
	return c.limiter
}

func (r *rateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *rateLimiter) cost(method, path string) int {
	heavy := strings.HasSuffix(path, "/render.png") ||
		method == fiber.MethodPost && (strings.HasSuffix(path, "/upload") || strings.HasSuffix(path, "/detect"))
	if heavy {
		return r.cfg.HeavyCost
	}
	return 1
}

// allow spends n tokens of key's bucket. A refused request spends nothing
// and reports how long until n tokens are available.
func (r *rateLimiter) allow(key string, n int) (bool, time.Duration) {
	now := r.now()
	res := r.limiterFor(key, now).ReserveN(now, n)
	if !res.OK() {
		return false, 0
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// RateLimit keys buckets by client IP. Behind a proxy set fiber's
// ProxyHeader so ctx.IP() is the real client.
func (m *middleware) RateLimit(ctx *fiber.Ctx) error {
	if m.limiter == nil {
		return ctx.Next()
	}

	ip := ctx.IP()
	ok, wait := m.limiter.allow(ip, m.limiter.cost(ctx.Method(), ctx.Path()))
	if ok {
		return ctx.Next()
	}

	retry := max(int(math.Ceil(wait.Seconds())), 1)
	ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
	m.log.WithFields(logrus.Fields{
		"ip":          ip,
		"path":        ctx.Path(),
		"retry_after": retry,
	}).Warn("rate limit exceeded")
	return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": ErrTooManyRequests.Error(),
	})
}
