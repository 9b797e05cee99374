package auth

import (
	"log/slog"
	"net/http"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/debug"
	"github.com/compii/playground/pkg/observability"
	"github.com/compii/playground/pkg/storage"
	"github.com/compii/playground/pkg/transport"
)

// Middleware creates HTTP middleware from an AuthChain and an optional
// RateLimiter. Requests for which skip returns true pass through untouched.
func Middleware(chain *AuthChain, limiter RateLimiter, skip func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip != nil && skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="playground"`)
				transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			debug.Log("auth", "authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					tier := result.Identity.ServiceTier
					if tier == "" {
						tier = "default"
					}
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", tier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			ctx := SetIdentity(r.Context(), result.Identity)
			if tenantID := result.Identity.TenantID(); tenantID != "" {
				ctx = storage.SetOwner(ctx, tenantID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
