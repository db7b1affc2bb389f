package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/nordvik-media/blog-api/internal/config"
	"go.uber.org/zap"
)

// CORS returns a CORS middleware configured from the application config.
// Auth rides on the session cookie, so allowed origins must be explicit in
// production: browsers refuse credentialed requests against a wildcard.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	switch {
	case hasWildcard(cfg.AllowedOrigins):
		if environment != "development" && environment != "local" {
			logger.Warn("CORS wildcard origin outside development; session cookies will not be sent cross-origin",
				zap.String("environment", environment))
		}
		// Reflect the caller's origin; the literal "*" form is rejected by
		// browsers when credentials are in play.
		options.AllowCredentials = false
		options.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return origin != ""
		}

	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins",
			zap.Strings("origins", cfg.AllowedOrigins))

	case environment == "development" || environment == "local" || environment == "":
		options.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return origin != ""
		}
		logger.Info("CORS allowing all origins in development mode")

	default:
		// Nothing configured in production: deny cross-origin outright.
		// An empty AllowedOrigins list would default to "*" inside the
		// library, so the func form is required here.
		options.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return false
		}
		logger.Warn("CORS has no allowed origins; all cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func hasWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
