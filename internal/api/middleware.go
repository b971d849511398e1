package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// CSRF protection using synchronizer token pattern with rotation
type CSRFMiddleware struct {
	currentToken     string
	previousToken    string
	mu               sync.RWMutex
	rotationInterval time.Duration
	gracePeriod      time.Duration
	lastRotation     time.Time
	logger           *slog.Logger
	stopChan         chan struct{} // For graceful shutdown of rotation loop
	stopOnce         sync.Once
}

// NewCSRFMiddleware creates CSRF middleware with automatic token rotation
func NewCSRFMiddleware(logger *slog.Logger) (*CSRFMiddleware, error) {
	return NewCSRFMiddlewareWithRotation(time.Hour, time.Minute, logger)
}

// NewCSRFMiddlewareWithRotation creates CSRF middleware with configurable rotation
func NewCSRFMiddlewareWithRotation(rotationInterval, gracePeriod time.Duration, logger *slog.Logger) (*CSRFMiddleware, error) {
	token, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial CSRF token: %w", err)
	}

	c := &CSRFMiddleware{
		currentToken:     token,
		rotationInterval: rotationInterval,
		gracePeriod:      gracePeriod,
		lastRotation:     time.Now(),
		logger:           logger,
		stopChan:         make(chan struct{}),
	}
	go c.rotationLoop()
	return c, nil
}

func (c *CSRFMiddleware) rotationLoop() {
	ticker := time.NewTicker(c.rotationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.rotate()
		case <-c.stopChan:
			return
		}
	}
}

// Stop stops the rotation loop. Should be called on graceful shutdown.
func (c *CSRFMiddleware) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// rotate generates a new token and keeps the old one for grace period
func (c *CSRFMiddleware) rotate() {
	newToken, err := generateSecureToken(32)
	if err != nil {
		// Keep using the current token.
		c.logger.Error("csrf token rotation failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.previousToken = c.currentToken
	c.currentToken = newToken
	c.lastRotation = time.Now()
	c.logger.Debug("csrf token rotated")
}

// Token returns the current CSRF token for embedding in responses
func (c *CSRFMiddleware) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentToken
}

// isValidToken checks if the provided token matches current or previous (within grace period)
func (c *CSRFMiddleware) isValidToken(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if subtle.ConstantTimeCompare([]byte(token), []byte(c.currentToken)) == 1 {
		return true
	}
	if c.previousToken != "" && time.Since(c.lastRotation) < c.gracePeriod {
		if subtle.ConstantTimeCompare([]byte(token), []byte(c.previousToken)) == 1 {
			return true
		}
	}
	return false
}

// Wrap adds CSRF validation for state-changing methods
func (c *CSRFMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
			if !c.isValidToken(r.Header.Get("X-CSRF-Token")) {
				writeError(w, http.StatusForbidden, ErrCSRF, "Invalid or missing CSRF token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ipRateLimiter limits requests per client IP with one token bucket each.
// Idle clients are swept periodically and the table is capped at
// maxEntries, evicting the least recently seen client.
type ipRateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*rateClient
	rate       rate.Limit
	burst      int
	maxEntries int
	idle       time.Duration
	now        func() time.Time
	logger     *slog.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
}

type rateClient struct {
	lim  *rate.Limiter
	seen time.Time
}

const (
	defaultMaxRateEntries = 10000
	rateClientIdle        = 10 * time.Minute
)

func newIPRateLimiter(reqPerMinute float64, logger *slog.Logger) *ipRateLimiter {
	burst := int(reqPerMinute / 6) // 10 seconds worth
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		clients:    make(map[string]*rateClient),
		rate:       rate.Limit(reqPerMinute / 60),
		burst:      burst,
		maxEntries: defaultMaxRateEntries,
		idle:       rateClientIdle,
		now:        time.Now,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

// start runs the idle sweep until Stop.
func (l *ipRateLimiter) start() {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := l.sweep(); n > 0 {
					l.logger.Debug("rate limiter swept idle clients", "removed", n)
				}
			case <-l.stopChan:
				return
			}
		}
	}()
}

// Stop ends the sweep goroutine.
func (l *ipRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

// sweep drops clients not seen within the idle window.
func (l *ipRateLimiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	n := 0
	for ip, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, ip)
			n++
		}
	}
	return n
}

func (l *ipRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	c, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= l.maxEntries {
			l.evictOldest()
		}
		c = &rateClient{lim: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.seen = now
	return c.lim
}

// evictOldest removes the least recently seen client. Callers hold mu.
func (l *ipRateLimiter) evictOldest() {
	var (
		oldest string
		seen   time.Time
	)
	for ip, c := range l.clients {
		if oldest == "" || c.seen.Before(seen) {
			oldest, seen = ip, c.seen
		}
	}
	if oldest != "" {
		delete(l.clients, oldest)
		l.logger.Debug("rate limiter evicted client", "remote_addr", oldest)
	}
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Allow reports whether a request from ip may proceed.
func (l *ipRateLimiter) Allow(ip string) bool {
	return l.limiter(ip).Allow()
}

// retryAfter estimates when ip may send its next request.
func (l *ipRateLimiter) retryAfter(ip string) time.Duration {
	res := l.limiter(ip).Reserve()
	defer res.Cancel()
	return res.Delay()
}

// Middleware rate limits by client IP. chi's RealIP has already replaced
// RemoteAddr when a proxy header is present.
func (l *ipRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !l.Allow(ip) {
			l.logger.Warn("rate limited", "remote_addr", ip)
			w.Header().Set("Retry-After", strconv.Itoa(int(l.retryAfter(ip).Seconds())+1))
			writeError(w, http.StatusTooManyRequests, ErrRateLimit, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// LimitBodySize wraps a handler with request body size limiting
func LimitBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one structured log line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
