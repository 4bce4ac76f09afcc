package corsware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

const (
	headerOrigin           = "Origin"
	headerVary             = "Vary"
	headerRequestMethod    = "Access-Control-Request-Method"
	headerRequestHeaders   = "Access-Control-Request-Headers"
	headerAllowOrigin      = "Access-Control-Allow-Origin"
	headerAllowMethods     = "Access-Control-Allow-Methods"
	headerAllowHeaders     = "Access-Control-Allow-Headers"
	headerAllowCredentials = "Access-Control-Allow-Credentials"
	headerExposeHeaders    = "Access-Control-Expose-Headers"
	headerMaxAge           = "Access-Control-Max-Age"
)

// DefaultAllowMethods are the methods advertised when none are configured.
var DefaultAllowMethods = []string{"GET", "POST", "HEAD", "PUT", "DELETE", "PATCH", "OPTIONS"}

// Config defines the configuration for CORS middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// AllowOrigins is the list of origins allowed to call the gateway.
	// Supports "*", exact origins, and leading wildcards such as
	// "https://*.example.com". Empty allows every origin.
	AllowOrigins []string

	// AllowOriginsFunc overrides AllowOrigins when set
	AllowOriginsFunc func(origin string) bool

	// AllowMethods advertised on preflight responses
	AllowMethods []string

	// AllowHeaders advertised on preflight responses. Empty echoes the
	// request's Access-Control-Request-Headers.
	AllowHeaders []string

	// ExposeHeaders listed on actual responses
	ExposeHeaders []string

	// AllowCredentials echoes the origin and sets the credentials header.
	// Cannot be combined with a wildcard origin.
	AllowCredentials bool

	// MaxAge caches preflight results in the browser. Zero omits the header.
	MaxAge time.Duration

	// SuccessHandler defines the success handler
	SuccessHandler router.HandlerFunc
}

// New creates a new CORS middleware
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			origin := ctx.GetString(headerOrigin, "")
			if origin == "" {
				// not a cross origin request
				return cfg.SuccessHandler(ctx)
			}

			preflight := strings.EqualFold(ctx.Method(), "OPTIONS") &&
				ctx.GetString(headerRequestMethod, "") != ""

			if !cfg.originAllowed(origin) {
				if preflight {
					return ctx.NoContent(router.StatusNoContent)
				}
				return cfg.SuccessHandler(ctx)
			}

			ctx.SetHeader(headerVary, headerOrigin)
			ctx.SetHeader(headerAllowOrigin, cfg.allowOriginValue(origin))
			if cfg.AllowCredentials {
				ctx.SetHeader(headerAllowCredentials, "true")
			}

			if !preflight {
				if len(cfg.ExposeHeaders) > 0 {
					ctx.SetHeader(headerExposeHeaders, strings.Join(cfg.ExposeHeaders, ", "))
				}
				return cfg.SuccessHandler(ctx)
			}

			ctx.SetHeader(headerAllowMethods, strings.Join(cfg.AllowMethods, ", "))

			allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
			if allowHeaders == "" {
				// reflect whatever the browser asked for
				allowHeaders = ctx.GetString(headerRequestHeaders, "")
			}
			if allowHeaders != "" {
				ctx.SetHeader(headerAllowHeaders, allowHeaders)
			}

			if cfg.MaxAge > 0 {
				ctx.SetHeader(headerMaxAge, strconv.Itoa(int(cfg.MaxAge.Seconds())))
			}

			return ctx.NoContent(router.StatusNoContent)
		}
	}
}

func (cfg Config) originAllowed(origin string) bool {
	if cfg.AllowOriginsFunc != nil {
		return cfg.AllowOriginsFunc(origin)
	}

	if len(cfg.AllowOrigins) == 0 {
		return true
	}

	for _, pattern := range cfg.AllowOrigins {
		if originMatches(pattern, origin) {
			return true
		}
	}

	return false
}

// allowOriginValue returns the value for Access-Control-Allow-Origin. With
// credentials the origin must be echoed back, a literal "*" would be ignored
// by browsers.
func (cfg Config) allowOriginValue(origin string) string {
	if cfg.AllowCredentials {
		return origin
	}
	for _, pattern := range cfg.AllowOrigins {
		if pattern == "*" {
			return "*"
		}
	}
	if len(cfg.AllowOrigins) == 0 {
		return "*"
	}
	return origin
}

// originMatches compares a configured pattern against a request origin.
// Patterns may use a single leading wildcard: "https://*.example.com".
func originMatches(pattern, origin string) bool {
	if pattern == "*" {
		return true
	}
	if strings.EqualFold(pattern, origin) {
		return true
	}
	if idx := strings.Index(pattern, "*"); idx >= 0 {
		prefix, suffix := pattern[:idx], pattern[idx+1:]
		return len(origin) >= len(prefix)+len(suffix) &&
			strings.EqualFold(origin[:len(prefix)], prefix) &&
			strings.EqualFold(origin[len(origin)-len(suffix):], suffix)
	}
	return false
}

// configDefault returns a default config
func configDefault(config ...Config) Config {
	if len(config) < 1 {
		return Config{
			AllowMethods: DefaultAllowMethods,
			SuccessHandler: func(ctx router.Context) error {
				return ctx.Next()
			},
		}
	}

	cfg := config[0]

	if cfg.AllowMethods == nil {
		cfg.AllowMethods = DefaultAllowMethods
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.AllowCredentials {
		for _, pattern := range cfg.AllowOrigins {
			if pattern == "*" {
				panic(errors.New("cors: AllowCredentials cannot be combined with a wildcard origin"))
			}
		}
	}

	return cfg
}
