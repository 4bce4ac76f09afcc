package navgate

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ZoneGate turns navigation decisions into HTTP behavior for route groups.
// Protected and Public wrap a group's handlers; Root answers the bare "/"
// route. The gate never renders content itself: a Render decision falls
// through to the wrapped handlers, everything else short-circuits with a
// redirect or a retryable loading response.
type ZoneGate struct {
	sessions         *SessionStore
	perms            *PermissionStore
	resolver         *Resolver
	gate             *LoadingGate
	cfg              Config
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error // TODO: make functions
	ErrorHandler     func(c router.Context, err error) error // TODO: make functions
}

// ZoneGateOption configures a ZoneGate.
type ZoneGateOption func(*ZoneGate)

// WithZoneResolver replaces the default resolver.
func WithZoneResolver(resolver *Resolver) ZoneGateOption {
	return func(z *ZoneGate) {
		if resolver != nil {
			z.resolver = resolver
		}
	}
}

// WithZoneLoadingGate attaches a minimum display gate consulted by Root.
func WithZoneLoadingGate(gate *LoadingGate) ZoneGateOption {
	return func(z *ZoneGate) {
		z.gate = gate
	}
}

// WithZoneLogger sets the gate's logger.
func WithZoneLogger(logger Logger) ZoneGateOption {
	return func(z *ZoneGate) {
		if logger != nil {
			z.Logger = logger
		}
	}
}

// WithZoneLoggerProvider resolves a scoped logger from the provider.
func WithZoneLoggerProvider(provider LoggerProvider) ZoneGateOption {
	return func(z *ZoneGate) {
		if provider != nil {
			_, z.Logger = ResolveLogger("navgate.zone_gate", provider, z.Logger)
		}
	}
}

// NewZoneGate builds the HTTP gate over the given stores.
func NewZoneGate(cfg Config, sessions *SessionStore, perms *PermissionStore, opts ...ZoneGateOption) (*ZoneGate, error) {
	if cfg == nil {
		return nil, errors.New("config is required", errors.CategoryBadInput)
	}
	if sessions == nil {
		return nil, errors.New("session store is required", errors.CategoryBadInput)
	}
	if perms == nil {
		return nil, errors.New("permission store is required", errors.CategoryBadInput)
	}

	z := &ZoneGate{
		cfg:      cfg,
		sessions: sessions,
		perms:    perms,
		resolver: NewResolver(),
		Logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(z)
		}
	}

	z.ErrorHandler = z.defaultErrHandler
	z.AuthErrorHandler = z.defaultAuthErrHandler

	return z, nil
}

// Resolver exposes the resolver backing this gate.
func (z *ZoneGate) Resolver() *Resolver {
	return z.resolver
}

// Protected gates a route group that requires an authenticated, completed
// session.
func (z *ZoneGate) Protected() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session := z.sessionFor(ctx)
			decision := z.resolver.ResolveProtected(session, z.perms.Snapshot())
			return z.renderDecision(ctx, ZoneProtected, decision)
		}
	}
}

// Public gates a route group that should bounce already signed-in users.
func (z *ZoneGate) Public() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			session := z.sessionFor(ctx)
			decision := z.resolver.ResolvePublic(session)
			return z.renderDecision(ctx, ZonePublic, decision)
		}
	}
}

// Root answers the index route, dispatching every session to its landing
// target once hydration and the minimum loading display allow it.
func (z *ZoneGate) Root() router.HandlerFunc {
	return func(ctx router.Context) error {
		session := z.sessionFor(ctx)
		decision := z.resolver.ResolveRoot(session, z.perms.Snapshot(), z.minDisplayElapsed())
		return z.renderDecision(ctx, ZoneRoot, decision)
	}
}

// sessionFor prefers the request-scoped session the middleware stored, falling
// back to the hydrated store snapshot.
func (z *ZoneGate) sessionFor(ctx router.Context) Session {
	if session, ok := SessionFromRouterContext(ctx, z.cfg.GetContextKey()); ok {
		return session
	}
	return z.sessions.Snapshot()
}

func (z *ZoneGate) minDisplayElapsed() bool {
	if z.gate == nil {
		return true
	}
	return z.gate.Elapsed()
}

func (z *ZoneGate) renderDecision(ctx router.Context, zone string, decision Decision) error {
	z.Logger.Debug("Zone decision",
		"zone", zone,
		"kind", decision.Kind.String(),
		"target", decision.Target,
	)

	switch decision.Kind {
	case DecisionLoading:
		ctx.SetHeader("Retry-After", "1")
		return ctx.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "loading",
		})
	case DecisionRedirect:
		if decision.Target == z.resolver.Routes().Login {
			z.SetRedirect(ctx)
		}

		statusCode := http.StatusSeeOther
		if ctx.Method() == string(router.GET) {
			statusCode = http.StatusFound
		}
		return ctx.Redirect(decision.Target, statusCode)
	default:
		return ctx.Next()
	}
}

// MakeSessionErrorHandler adapts token validation failures for the session
// middleware. With optional set the request proceeds anonymously instead of
// failing.
func (z *ZoneGate) MakeSessionErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid session token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			z.Logger.Info("Optional session failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return z.ErrorHandler(ctx, richErr)
	}
}

// GetRedirect pops the stored rejected route, or returns def when none was
// recorded.
func (z *ZoneGate) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := z.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return z.cfg.GetRejectedRouteDefault()
	}
	z.cookieDel(ctx, rejectedRoute)
	return r
}

// GetRedirectOrDefault pops the stored rejected route, falling back to the
// Referer header and then the configured default.
func (z *ZoneGate) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := z.cfg.GetRejectedRouteKey()
	refererHeader := ctx.Referer()

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = z.cfg.GetRejectedRouteDefault()
	}
	z.cookieDel(ctx, rejectedRoute)
	return r
}

// SetRedirect remembers the current URL so the client can resume it after
// signing in.
func (z *ZoneGate) SetRedirect(ctx router.Context) {
	rejectedRoute := z.cfg.GetRejectedRouteKey()

	z.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (z *ZoneGate) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (z *ZoneGate) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	z.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	z.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(z.resolver.Routes().Login, statusCode)
}

func (z *ZoneGate) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	z.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return z.AuthErrorHandler(c, richErr)
	default:
		code := richErr.Code
		if code == 0 {
			code = http.StatusInternalServerError
		}
		return c.JSON(code, map[string]any{
			"error":     richErr.Message,
			"text_code": richErr.TextCode,
		})
	}
}
