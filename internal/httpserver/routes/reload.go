package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/stockroom/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stockroom/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/stockroom/internal/httpserver/mw"
)

func init() { Register(registerMutations) }

// registerMutations mounts the routes that change catalog state. They share
// one rate limiter so /reload and /reprice draw from the same budget.
func registerMutations(r chi.Router, d deps.Deps) {
	m := r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			PerMinute:  d.RateLimit,
			Burst:      d.RateBurst,
			TrustProxy: d.TrustProxy,
		}),
	)
	m.Post("/reload", handlers.Reload(d))
	m.Post("/reprice", handlers.Reprice(d))
}
