package cspweaver

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/base64"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Response header names the middleware manages.
const (
	HeaderName           = "Content-Security-Policy"
	HeaderNameReportOnly = "Content-Security-Policy-Report-Only"
)

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	logger zerolog.Logger
}

// WithLogger enables debug logging of attach/skip decisions. Logging is
// disabled by default.
func WithLogger(logger zerolog.Logger) MiddlewareOption {
	return func(o *middlewareOptions) { o.logger = logger }
}

// carrier accumulates per-request policy intents between the middleware and
// handler-level wrappers (Update, Replace, Exempt, RequestNonce).
type carrier struct {
	mu      sync.Mutex
	update  map[string]any
	replace map[string]any
	exempt  bool
	nonce   string
}

type carrierKey struct{}

func carrierFrom(ctx context.Context) *carrier {
	c, _ := ctx.Value(carrierKey{}).(*carrier)
	return c
}

// Middleware returns middleware that attaches the Content-Security-Policy
// header (or the Report-Only variant when cfg.ReportOnly) to every response.
// The header is assembled just before the first byte of the response is
// written, so handler-level intents registered via Update, Replace, Exempt
// and RequestNonce are honored. A header already set by the handler is never
// overwritten, and requests matching cfg.ExcludeURLPrefixes pass through
// untouched.
func Middleware(cfg *Config, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	mo := middlewareOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&mo)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range cfg.ExcludeURLPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			c := &carrier{}
			r = r.WithContext(context.WithValue(r.Context(), carrierKey{}, c))
			hw := &headerWriter{ResponseWriter: w, cfg: cfg, carrier: c, logger: mo.logger, path: r.URL.Path}
			next.ServeHTTP(hw, r)
			hw.ensureHeader()
		})
	}
}

// headerWriter defers policy assembly until the response is committed.
type headerWriter struct {
	http.ResponseWriter
	cfg     *Config
	carrier *carrier
	logger  zerolog.Logger
	path    string
	done    bool
}

func (h *headerWriter) WriteHeader(code int) {
	h.ensureHeader()
	h.ResponseWriter.WriteHeader(code)
}

func (h *headerWriter) Write(b []byte) (int, error) {
	h.ensureHeader()
	return h.ResponseWriter.Write(b)
}

func (h *headerWriter) ensureHeader() {
	if h.done {
		return
	}
	h.done = true

	c := h.carrier
	c.mu.Lock()
	update, replace, exempt, nonce := c.update, c.replace, c.exempt, c.nonce
	c.mu.Unlock()

	if exempt {
		h.logger.Debug().Str("path", h.path).Msg("csp: handler exempt, header skipped")
		return
	}

	header := HeaderName
	if h.cfg.ReportOnly {
		header = HeaderNameReportOnly
		if pct := h.cfg.ReportPercentage; pct > 0 && pct < 100 && rand.Intn(100) >= pct {
			h.logger.Debug().Str("path", h.path).Int("percentage", pct).Msg("csp: request not sampled, header skipped")
			return
		}
	}
	if h.Header().Get(header) != "" {
		// Handler set its own policy.
		return
	}

	var opts []BuildOption
	if update != nil {
		opts = append(opts, WithUpdate(update))
	}
	if replace != nil {
		opts = append(opts, WithReplace(replace))
	}
	if nonce != "" {
		opts = append(opts, WithNonce(nonce))
	}
	policy := Build(h.cfg, opts...)
	h.Header().Set(header, policy)
	h.logger.Debug().Str("path", h.path).Str("header", header).Str("policy", policy).Msg("csp: header attached")
}

// Update wraps h so the middleware appends the given directive tokens to the
// policy for requests served by h.
func Update(update map[string]any, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := carrierFrom(r.Context()); c != nil {
			c.mu.Lock()
			c.update = update
			c.mu.Unlock()
		}
		h.ServeHTTP(w, r)
	})
}

// Replace wraps h so the middleware replaces the given directives wholesale
// for requests served by h.
func Replace(replace map[string]any, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := carrierFrom(r.Context()); c != nil {
			c.mu.Lock()
			c.replace = replace
			c.mu.Unlock()
		}
		h.ServeHTTP(w, r)
	})
}

// Exempt wraps h so the middleware attaches no policy header to its
// responses.
func Exempt(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := carrierFrom(r.Context()); c != nil {
			c.mu.Lock()
			c.exempt = true
			c.mu.Unlock()
		}
		h.ServeHTTP(w, r)
	})
}

// RequestNonce returns the per-request nonce, generating it on first use.
// The policy header carries the matching 'nonce-...' token only when a
// handler actually requested a nonce. Returns "" when the request did not
// pass through Middleware.
func RequestNonce(r *http.Request) string {
	c := carrierFrom(r.Context())
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nonce == "" {
		c.nonce = newNonce()
	}
	return c.nonce
}

func newNonce() string {
	b := make([]byte, 16)
	_, _ = cryptorand.Read(b) // never fails on supported platforms
	return base64.RawStdEncoding.EncodeToString(b)
}
