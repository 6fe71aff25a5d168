package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"bakehouse/internal/b2b"
	"bakehouse/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"
)

// observe records request latency by route pattern, not raw path.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

func accessLog() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		ev := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			ev = hlog.FromRequest(r).Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// realIP honours X-Forwarded-For and X-Real-IP only when the connection comes
// from a trusted proxy; everyone else is known by the socket address.
func realIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		viaProxy := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromTrustedProxy(r.RemoteAddr, trusted) {
				viaProxy.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromTrustedProxy(remoteAddr string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	ap, err := netip.ParseAddrPort(remoteAddr)
	if err != nil {
		return false
	}
	ip := ap.Addr().Unmap()
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

type orgKey struct{}

// orgCredential resolves X-Org-Token to the calling organization. Requests
// without the header continue as guests; an unknown token is refused.
func orgCredential(auth *b2b.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("X-Org-Token"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			org, err := auth.Authenticate(r.Context(), token)
			if errors.Is(err, b2b.ErrInvalidToken) {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid organization token", Code: "unauthorized"})
				return
			}
			if err != nil {
				writeError(w, r, err)
				return
			}
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("organization_id", org.ID)
			})
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), orgKey{}, org.ID)))
		})
	}
}

// organizationID is the authenticated organization, or 0 for guests.
func organizationID(r *http.Request) int64 {
	id, _ := r.Context().Value(orgKey{}).(int64)
	return id
}

// requireAdmin accepts requests carrying one of the configured tokens in
// X-Admin-Token. With no tokens configured every admin request is refused.
func requireAdmin(tokens []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-Admin-Token"))
			ok := false
			for _, t := range tokens {
				if t != "" && subtle.ConstantTimeCompare(got, []byte(t)) == 1 {
					ok = true
				}
			}
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "admin token required", Code: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adminActor names the staff member for audit rows.
func adminActor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get("X-Admin-User")); a != "" {
		return a
	}
	return "admin"
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	clients   map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	return &clientLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		clients:   make(map[string]*limiterEntry),
		lastSweep: time.Now(),
	}
}

func (l *clientLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > 10*time.Minute {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.allow(host, time.Now()) {
			retry := 1
			if l.perSecond > 0 {
				retry = int(1/float64(l.perSecond)) + 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests", Code: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hlogAdmin(r *http.Request, msg string, storeID int64) {
	hlog.FromRequest(r).Info().Str("actor", adminActor(r)).Int64("store_id", storeID).Msg(msg)
}
