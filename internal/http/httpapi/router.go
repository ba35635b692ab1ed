package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"dreamcatcher/internal/http/handlers"
	"dreamcatcher/internal/metrics"
	"dreamcatcher/internal/middleware"
)

// Options configures the router's middleware.
type Options struct {
	JWTSecret       string
	AdminToken      string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	CORSOrigins     []string
	Metrics         *metrics.Metrics
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))
			r.Post("/v1/users", app.RegisterUser)
			r.Route("/v1/energy", func(r chi.Router) {
				r.Get("/", app.EnergyStatus)
				r.Get("/breakdown", app.EnergyBreakdown)
				r.Get("/history", app.EnergyHistory)
				r.Post("/checkin", app.EnergyCheckin)
				r.Post("/share", app.EnergyShare)
				r.Post("/consume", app.EnergyConsume)
			})
		})

		r.With(middleware.OptionalAuthJWT(opts.JWTSecret)).Post("/v1/readings", app.CreateReading)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(middleware.AdminToken(opts.AdminToken))
		r.Post("/energy/cleanup", app.AdminCleanup)
		r.Post("/energy/grant", app.AdminGrant)
	})

	return r
}
