package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layer-3/fluxauth/core"
	"golang.org/x/time/rate"
)

const (
	authHeader      = "zelidauth"
	requestIDHeader = "X-Request-ID"
	credentialsKey  = "credentials"
)

// ParseAuthHeader decodes the zelidauth header, sent either as a JSON object
// or as a URL query string.
func ParseAuthHeader(value string) core.Credentials {
	value = strings.TrimSpace(value)
	if value == "" {
		return core.Credentials{}
	}

	var creds core.Credentials
	if strings.HasPrefix(value, "{") {
		if err := json.Unmarshal([]byte(value), &creds); err != nil {
			return core.Credentials{}
		}
		return creds
	}

	q, err := url.ParseQuery(value)
	if err != nil {
		return core.Credentials{}
	}
	return core.Credentials{
		Address:   q.Get("zelid"),
		Signature: q.Get("signature"),
		Phrase:    q.Get("loginPhrase"),
	}
}

// CredentialsMiddleware stores the caller credentials from the zelidauth
// header in the context. Authorization happens in the services.
func CredentialsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(credentialsKey, ParseAuthHeader(c.GetHeader(authHeader)))
		c.Next()
	}
}

func credentialsFrom(c *gin.Context) core.Credentials {
	if v, ok := c.Get(credentialsKey); ok {
		if creds, ok := v.(core.Credentials); ok {
			return creds
		}
	}
	return core.Credentials{}
}

// RequestLogger tags every request with an id and logs it once it completes.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()

		logger.InfoContext(c.Request.Context(), "http request",
			slog.String("request_id", id),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterPruneThreshold = 1024

// NewRateLimiter allows perSecond requests per client with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     10 * time.Minute,
		clients: make(map[string]*client),
	}
}

// Allow reports whether the client at ip may proceed now.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.clients) > limiterPruneThreshold {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.clients, k)
			}
		}
	}

	cl, ok := l.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with a RateLimitError envelope.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusOK, envelope{
				Status: statusError,
				Data:   message{Name: "RateLimitError", Message: "Too many requests. Please try again later."},
			})
			return
		}
		c.Next()
	}
}
