package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"toonify/internal/http/handlers"
	"toonify/internal/infra"
	"toonify/internal/middleware"
)

// Options configures the router beyond the handlers themselves.
type Options struct {
	JWTSecret       string
	DefaultLocale   string
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	Logger          infra.Logger
	// Objects serves locally stored objects and signed uploads. Nil when
	// objects live in an external bucket.
	Objects http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/styles", app.Styles)

	if opts.Objects != nil {
		r.Handle("/objects/*", http.StripPrefix("/objects", opts.Objects))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}

		r.Route("/v1/transform", func(r chi.Router) {
			r.Post("/image", app.TransformImage)
			r.Get("/image/{predictionId}", app.ImageStatus)
			r.Post("/video", app.TransformVideo)
			r.Get("/video/{predictionId}", app.VideoStatus)
			r.Get("/history", app.History)
			r.Post("/{predictionId}/abandon", app.AbandonTransform)
		})
		r.Get("/v1/credits", app.Credits)
		r.Post("/v1/uploads/presign", app.PresignUpload)
	})

	return r
}
