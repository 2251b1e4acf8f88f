package security

import (
	"net/http"
	"net/url"

	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/pkg/clientip"
)

// GuardOption configures Guard.
type GuardOption func(*guard)

type guard struct {
	identity   func(*http.Request) string
	block      bool
	trustProxy bool
}

// WithIdentity extracts the authenticated identity recorded with events.
func WithIdentity(fn func(*http.Request) string) GuardOption {
	return func(g *guard) {
		g.identity = fn
	}
}

// WithAutoBlock blacklists the client IP when a request's score reaches the
// threshold. Without it Guard only rejects the offending request. The blocked
// address is the connection peer unless WithTrustedProxy is set; enable that
// only behind a proxy that overwrites the forwarding headers, or any client
// can get another address blacklisted.
func WithAutoBlock(enabled bool) GuardOption {
	return func(g *guard) {
		g.block = enabled
	}
}

// WithTrustedProxy takes the client IP from CDN and forwarding headers
// (see clientip.GetIP) instead of the connection peer.
func WithTrustedProxy(trusted bool) GuardOption {
	return func(g *guard) {
		g.trustProxy = trusted
	}
}

// Guard rejects requests from blacklisted clients and requests whose path,
// query or user agent reach the detector score threshold. Key store errors
// fail open.
func Guard(s *Service, opts ...GuardOption) func(http.Handler) http.Handler {
	g := &guard{}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientip.RemoteIP(r)
			if g.trustProxy {
				ip = clientip.GetIP(r)
			}

			blocked, err := s.Blocked(ctx, ip)
			if err != nil {
				s.logger.WarnContext(ctx, "blacklist lookup failed", logger.Error(err))
			}
			if blocked {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			req := Request{
				IP:        ip,
				UserAgent: r.UserAgent(),
				Path:      r.URL.Path,
				Query:     rawQuery(r.URL.RawQuery),
			}
			if g.identity != nil {
				req.Identity = g.identity(r)
			}

			if a := s.Inspect(ctx, req); a.Exceeds() {
				if g.block {
					if err := s.Block(ctx, ip, "threat score exceeded"); err != nil {
						s.logger.ErrorContext(ctx, "failed to blacklist client", logger.Error(err))
					}
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rawQuery(q string) string {
	if decoded, err := url.QueryUnescape(q); err == nil {
		return decoded
	}
	return q
}
