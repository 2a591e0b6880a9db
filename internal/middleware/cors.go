package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string
}

// CORS returns a Huma middleware that echoes the Origin header for
// allowed origins and short-circuits preflight requests.
func CORS(cfg CORSConfig) func(ctx huma.Context, next func(huma.Context)) {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.ToLower(origin)] = struct{}{}
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		origin := ctx.Header("Origin")

		if origin != "" {
			if _, ok := allowed[strings.ToLower(origin)]; ok {
				ctx.SetHeader("Access-Control-Allow-Origin", origin)
				ctx.SetHeader("Vary", "Origin")
			}
		}

		if ctx.Method() == http.MethodOptions {
			ctx.SetHeader("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			ctx.SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")
			ctx.SetHeader("Access-Control-Max-Age", "86400")
			ctx.SetStatus(http.StatusNoContent)

			return
		}

		next(ctx)
	}
}
