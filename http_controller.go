package navgate

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// GetRouterSession rebuilds the Session stored on the request by the session
// middleware.
func GetRouterSession(c router.Context, key string) (Session, error) {
	raw := c.Locals(key)
	if raw == nil {
		return Session{}, ErrUnableToFindSession
	}

	session, ok := SessionFromRouterContext(c, key)
	if !ok {
		return Session{}, ErrUnableToDecodeSession
	}

	return session, nil
}

// RegisterPassthroughRoutes mounts the API passthrough surface: the auth and
// data proxies, the health endpoint, and the development-only debug routes.
// Specific routes are registered before the proxy wildcards so they keep
// precedence.
func RegisterPassthroughRoutes[T any](app router.Router[T], opts ...PassthroughOption) *PassthroughController {

	controller := NewPassthroughController(opts...)

	app.Get(controller.Routes.Health, controller.Health).
		SetName("health.get")

	app.Get(fmt.Sprintf("%s/session", controller.Routes.Debug), controller.DebugSession).
		SetName("debug-session.get")
	app.Get(fmt.Sprintf("%s/redirects", controller.Routes.Debug), controller.DebugRedirects).
		SetName("debug-redirects.get")
	app.Post(fmt.Sprintf("%s/test-session", controller.Routes.Debug), controller.TestSession).
		SetName("debug-test-session.post")

	app.Get(fmt.Sprintf("%s/*", controller.Routes.Auth), controller.AuthProxy).
		SetName("auth-proxy.get")
	app.Post(fmt.Sprintf("%s/*", controller.Routes.Auth), controller.AuthProxy).
		SetName("auth-proxy.post")
	app.Put(fmt.Sprintf("%s/*", controller.Routes.Auth), controller.AuthProxy).
		SetName("auth-proxy.put")
	app.Delete(fmt.Sprintf("%s/*", controller.Routes.Auth), controller.AuthProxy).
		SetName("auth-proxy.delete")

	app.Get(fmt.Sprintf("%s/*", controller.Routes.Data), controller.DataProxy).
		SetName("data-proxy.get")
	app.Post(fmt.Sprintf("%s/*", controller.Routes.Data), controller.DataProxy).
		SetName("data-proxy.post")
	app.Put(fmt.Sprintf("%s/*", controller.Routes.Data), controller.DataProxy).
		SetName("data-proxy.put")
	app.Delete(fmt.Sprintf("%s/*", controller.Routes.Data), controller.DataProxy).
		SetName("data-proxy.delete")

	return controller
}

// PassthroughRoutes names the path prefixes the controller answers on.
type PassthroughRoutes struct {
	Auth   string
	Data   string
	Health string
	Debug  string
}

// PassthroughController fronts the auth and data services behind a single
// origin. Forwarded requests keep method, subpath, query, body, and a curated
// header set; replies are relayed verbatim.
type PassthroughController struct {
	Debug         bool
	Logger        Logger
	Environment   string
	ContextKey    string
	Auth          UpstreamClient
	Data          UpstreamClient
	AuthAllowlist []string
	DataAllowlist []string
	Routes        *PassthroughRoutes
	Gate          gate.FeatureGate
	Tokens        TokenService
	Sessions      *SessionStore
	Resolver      *Resolver
	ErrorHandler  router.ErrorHandler

	activity  ActivitySink
	startedAt time.Time
}

// PassthroughOption configures the controller.
type PassthroughOption func(*PassthroughController) *PassthroughController

// WithPassthroughLogger sets the controller logger.
func WithPassthroughLogger(logger Logger) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithPassthroughLoggerProvider resolves a scoped logger from the provider.
func WithPassthroughLoggerProvider(provider LoggerProvider) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		if provider != nil {
			_, c.Logger = ResolveLogger("navgate.passthrough", provider, c.Logger)
		}
		return c
	}
}

// WithPassthroughAuthUpstream sets the auth service client.
func WithPassthroughAuthUpstream(client UpstreamClient) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.Auth = client
		return c
	}
}

// WithPassthroughDataUpstream sets the data service client.
func WithPassthroughDataUpstream(client UpstreamClient) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.Data = client
		return c
	}
}

// WithPassthroughAllowlists limits which subpaths each proxy forwards. A nil
// or empty list forwards everything that survives traversal screening.
func WithPassthroughAllowlists(auth, data []string) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.AuthAllowlist = auth
		c.DataAllowlist = data
		return c
	}
}

// WithPassthroughRoutes overrides the default route prefixes.
func WithPassthroughRoutes(routes *PassthroughRoutes) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// WithPassthroughFeatureGate guards the debug endpoints behind a feature gate.
func WithPassthroughFeatureGate(featureGate gate.FeatureGate) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.Gate = featureGate
		return c
	}
}

// WithPassthroughTokenService lets the test-session endpoint mint tokens.
func WithPassthroughTokenService(tokens TokenService) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.Tokens = tokens
		return c
	}
}

// WithPassthroughSessionStore exposes store state on the debug endpoints.
func WithPassthroughSessionStore(sessions *SessionStore) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.Sessions = sessions
		return c
	}
}

// WithPassthroughResolver exposes resolver diagnostics on the debug endpoints.
func WithPassthroughResolver(resolver *Resolver) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.Resolver = resolver
		return c
	}
}

// WithPassthroughEnvironment sets the environment label reported by Health
// and used to disable debug endpoints outside development.
func WithPassthroughEnvironment(env string) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		if env != "" {
			c.Environment = env
		}
		return c
	}
}

// WithPassthroughContextKey sets the request key the session middleware uses.
func WithPassthroughContextKey(key string) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

// WithPassthroughErrorHandler replaces the JSON error envelope writer.
func WithPassthroughErrorHandler(handler router.ErrorHandler) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// WithPassthroughDebug toggles verbose payload printing.
func WithPassthroughDebug(debug bool) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.Debug = debug
		return c
	}
}

// WithPassthroughActivitySink records passthrough failures.
func WithPassthroughActivitySink(sink ActivitySink) PassthroughOption {
	return func(c *PassthroughController) *PassthroughController {
		c.activity = normalizeActivitySink(sink)
		return c
	}
}

// NewPassthroughController builds the controller, panicking when either
// upstream client is missing.
func NewPassthroughController(opts ...PassthroughOption) *PassthroughController {
	c := &PassthroughController{
		Logger:       defLogger{},
		Environment:  "development",
		ContextKey:   "session",
		ErrorHandler: passthroughErrHandler,
		Routes: &PassthroughRoutes{
			Auth:   "/api/auth",
			Data:   "/api/db",
			Health: "/api/health",
			Debug:  "/api/debug",
		},
		activity:  noopActivitySink{},
		startedAt: time.Now(),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auth == nil {
		panic("Missing auth upstream in passthrough controller...")
	}

	if c.Data == nil {
		panic("Missing data upstream in passthrough controller...")
	}

	return c
}

// AuthProxy forwards requests under the auth prefix to the auth service.
func (a *PassthroughController) AuthProxy(ctx router.Context) error {
	return a.proxy(ctx, a.Auth, a.Routes.Auth, "auth", a.AuthAllowlist)
}

// DataProxy forwards requests under the data prefix to the data service.
func (a *PassthroughController) DataProxy(ctx router.Context) error {
	return a.proxy(ctx, a.Data, a.Routes.Data, "data", a.DataAllowlist)
}

func (a *PassthroughController) proxy(ctx router.Context, upstream UpstreamClient, prefix, service string, allowlist []string) error {
	if upstream == nil {
		return a.ErrorHandler(ctx, errors.New("upstream not configured", errors.CategoryInternal).
			WithTextCode(TextCodeUpstreamFailure).
			WithCode(errors.CodeInternal))
	}

	subpath := strings.Trim(strings.TrimPrefix(ctx.Path(), prefix), "/")
	if subpath == "" {
		return a.ErrorHandler(ctx, ErrUpstreamMissingTarget)
	}

	if !subpathAllowed(subpath, allowlist) {
		a.Logger.Warn("Rejected passthrough path", "service", service, "path", subpath)
		a.recordActivity(ctx, service, subpath, "path not allowed")
		return a.ErrorHandler(ctx, ErrUpstreamNotAllowed)
	}

	req := UpstreamRequest{
		Method: ctx.Method(),
		Path:   subpath,
		Query:  rawQuery(ctx),
		Header: forwardHeaders(ctx),
		Body:   ctx.Body(),
	}

	if a.Debug {
		fmt.Println("======= PASSTHROUGH ======")
		fmt.Println(print.MaybePrettyJSON(map[string]any{
			"service": service,
			"method":  req.Method,
			"path":    req.Path,
			"query":   req.Query,
		}))
		fmt.Println("==========================")
	}

	res, err := upstream.Do(ctx.Context(), req)
	if err != nil {
		a.Logger.Error("Passthrough upstream error",
			"service", service,
			"path", subpath,
			"error", err,
		)
		a.recordActivity(ctx, service, subpath, err.Error())
		return a.ErrorHandler(ctx, err)
	}

	for key, values := range res.Header {
		for _, value := range values {
			ctx.SetHeader(key, value)
		}
	}

	return ctx.Status(res.StatusCode).Send(res.Body)
}

// Health reports process liveness along with environment and memory stats.
func (a *PassthroughController) Health(ctx router.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"status":      "ok",
		"environment": a.Environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      int64(time.Since(a.startedAt).Seconds()),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
	})
}

// DebugSession reports the session the request carries plus store state. The
// route responds 404 outside development and 403 when the navigation debug
// feature is disabled.
func (a *PassthroughController) DebugSession(ctx router.Context) error {
	if err := a.requireDebugAccess(ctx); err != nil {
		return err
	}

	payload := map[string]any{
		"environment": a.Environment,
	}

	if session, err := GetRouterSession(ctx, a.ContextKey); err == nil {
		payload["request_session"] = session
	} else {
		payload["request_session"] = nil
		payload["session_error"] = err.Error()
	}

	if a.Sessions != nil {
		payload["store"] = a.Sessions.Snapshot()
		payload["hydrated"] = a.Sessions.Hydrated()
	}

	if a.Debug {
		fmt.Println("======= DEBUG SESSION ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	return ctx.JSON(fiber.StatusOK, payload)
}

// DebugRedirects reports the resolver's last notified redirect identity.
func (a *PassthroughController) DebugRedirects(ctx router.Context) error {
	if err := a.requireDebugAccess(ctx); err != nil {
		return err
	}

	payload := map[string]any{
		"environment": a.Environment,
	}

	if a.Resolver != nil {
		payload["last_notified_identity"] = a.Resolver.LastNotifiedIdentity()
		payload["routes"] = a.Resolver.Routes()
	}

	return ctx.JSON(fiber.StatusOK, payload)
}

// TestSessionPayload describes the session the test-session endpoint mints.
type TestSessionPayload struct {
	UserID     string `form:"user_id" json:"user_id"`
	Email      string `form:"email" json:"email"`
	Name       string `form:"name" json:"name"`
	Role       string `form:"role" json:"role"`
	Complete   bool   `form:"profile_complete" json:"profile_complete"`
	OrgID      string `form:"organization_id" json:"organization_id"`
	TTLMinutes int    `form:"ttl_minutes" json:"ttl_minutes"`
}

// Validate will run validation rules
func (r TestSessionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Role,
			validation.Required,
			validation.By(validateKnownRole),
		),
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.UserID, is.UUID),
		validation.Field(&r.TTLMinutes, validation.Min(0), validation.Max(24*60)),
	)
}

func validateKnownRole(value any) error {
	s, _ := value.(string)
	if _, ok := ParseRole(s); !ok {
		return validation.NewError("validation_role", "must be a known role")
	}
	return nil
}

// TestSession mints a short-lived token for the requested role so manual
// testing can exercise each navigation path without a real account.
func (a *PassthroughController) TestSession(ctx router.Context) error {
	if err := a.requireDebugAccess(ctx); err != nil {
		return err
	}

	if a.Tokens == nil {
		return a.ErrorHandler(ctx, errors.New("token service is not configured", errors.CategoryInternal).
			WithCode(errors.CodeInternal))
	}

	payload := new(TestSessionPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("test session parse payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "Failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("test session validate payload: ", "error", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error":      "Invalid payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	role, _ := ParseRole(payload.Role)
	user := &SessionUser{
		ID:                     payload.UserID,
		Email:                  payload.Email,
		Name:                   payload.Name,
		Role:                   role,
		NeedsProfileCompletion: !payload.Complete || role.RequiresCompletion(),
		OrganizationID:         payload.OrgID,
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	ttl := time.Duration(payload.TTLMinutes) * time.Minute
	if ttl == 0 {
		ttl = time.Hour
	}

	token, expiresAt, err := MintScopedToken(a.Tokens, user, ScopedTokenOptions{
		TTL:    ttl,
		Scopes: []string{"test"},
	})
	if err != nil {
		a.Logger.Error("test session mint error: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= TEST SESSION ======")
		fmt.Println(print.MaybePrettyJSON(user))
		fmt.Println("===========================")
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"user":       user,
	})
}

// requireDebugAccess hides debug routes outside development and honors the
// navigation debug feature gate.
func (a *PassthroughController) requireDebugAccess(ctx router.Context) error {
	if !strings.EqualFold(a.Environment, "development") {
		return ctx.JSON(fiber.StatusNotFound, map[string]any{
			"error": "Not found",
		})
	}

	if a.Gate != nil {
		if err := requireFeatureGate(ctx.Context(), a.Gate, FeatureNavigationDebug, ErrDebugDisabled); err != nil {
			return a.ErrorHandler(ctx, err)
		}
	}

	return nil
}

func (a *PassthroughController) recordActivity(ctx router.Context, service, path, reason string) {
	event := ActivityEvent{
		EventType: ActivityEventUpstreamFailure,
		Metadata: map[string]any{
			"service": service,
			"path":    path,
			"reason":  reason,
		},
		OccurredAt: time.Now(),
	}

	if session, err := GetRouterSession(ctx, a.ContextKey); err == nil {
		event.Identity = session.Identity()
		if session.User != nil {
			event.UserID = session.User.ID
		}
	}

	if err := a.activity.Record(ctx.Context(), event); err != nil {
		a.Logger.Warn("passthrough activity sink error", "error", err)
	}
}

// subpathAllowed screens forwarded subpaths. Traversal segments are always
// rejected; when an allowlist is present the subpath must sit under one of
// its prefixes.
func subpathAllowed(subpath string, allowlist []string) bool {
	for _, segment := range strings.Split(subpath, "/") {
		if segment == ".." || segment == "." {
			return false
		}
	}

	if len(allowlist) == 0 {
		return true
	}

	for _, prefix := range allowlist {
		prefix = strings.Trim(prefix, "/")
		if prefix == "" {
			continue
		}
		if subpath == prefix || strings.HasPrefix(subpath, prefix+"/") {
			return true
		}
	}

	return false
}

// rawQuery recovers the query string from the original request URL.
func rawQuery(ctx router.Context) string {
	original := ctx.OriginalURL()
	if idx := strings.Index(original, "?"); idx >= 0 {
		return original[idx+1:]
	}
	return ""
}

// forwardHeaders copies the curated header set onto the upstream request. The
// router context exposes single header reads only, so forwarding is
// allowlist-based rather than wholesale.
var forwardedHeaderNames = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"Accept-Language",
	"User-Agent",
	"Cookie",
	"X-Request-Id",
	"X-Correlation-Id",
}

func forwardHeaders(ctx router.Context) http.Header {
	header := http.Header{}
	for _, name := range forwardedHeaderNames {
		if value := ctx.Header(name); value != "" {
			header.Set(name, value)
		}
	}
	return header
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map suitable for JSON envelopes.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func passthroughErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = fiber.StatusInternalServerError
	}

	return c.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
