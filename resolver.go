package navgate

import (
	"context"
	"sync"
	"time"
)

// DecisionKind discriminates the routing decision variants.
type DecisionKind int

const (
	// DecisionLoading means keep showing the loading state; no navigation yet.
	DecisionLoading DecisionKind = iota
	// DecisionRedirect means navigate to Target.
	DecisionRedirect
	// DecisionRender means the current zone's content may render.
	DecisionRender
)

// String implements fmt.Stringer for log output.
func (k DecisionKind) String() string {
	switch k {
	case DecisionLoading:
		return "loading"
	case DecisionRedirect:
		return "redirect"
	case DecisionRender:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the routing outcome for a zone evaluation. Target is only set
// for redirects.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Target string       `json:"target,omitempty"`
}

// Loading returns the decision to keep showing the loading state.
func Loading() Decision {
	return Decision{Kind: DecisionLoading}
}

// RedirectTo returns the decision to navigate to target.
func RedirectTo(target string) Decision {
	return Decision{Kind: DecisionRedirect, Target: target}
}

// RenderChildren returns the decision to render the zone's content.
func RenderChildren() Decision {
	return Decision{Kind: DecisionRender}
}

// Zone labels used in diagnostics and activity events.
const (
	ZoneProtected = "protected"
	ZonePublic    = "public"
	ZoneRoot      = "root"
)

// RouteTable names the navigation targets decisions can point at.
type RouteTable struct {
	Login             string
	CompleteProfile   string
	Home              string
	OperatorDashboard string
	ClinicalDashboard string
}

// DefaultRouteTable returns the stock paths.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		Login:             "/auth/login",
		CompleteProfile:   "/auth/complete-profile",
		Home:              "/home",
		OperatorDashboard: "/operator-dashboard",
		ClinicalDashboard: "/healthcare-dashboard",
	}
}

// LandingFor maps a role to its post-auth landing path. Operators get the
// operational dashboard, clinical staff the clinical one, everyone else home.
func (t RouteTable) LandingFor(role UserRole) string {
	switch {
	case role == RoleOperator:
		return t.OperatorDashboard
	case role.IsClinical():
		return t.ClinicalDashboard
	default:
		return t.Home
	}
}

func (t RouteTable) withDefaults() RouteTable {
	def := DefaultRouteTable()
	if t.Login == "" {
		t.Login = def.Login
	}
	if t.CompleteProfile == "" {
		t.CompleteProfile = def.CompleteProfile
	}
	if t.Home == "" {
		t.Home = def.Home
	}
	if t.OperatorDashboard == "" {
		t.OperatorDashboard = def.OperatorDashboard
	}
	if t.ClinicalDashboard == "" {
		t.ClinicalDashboard = def.ClinicalDashboard
	}
	return t
}

// Resolver evaluates zone routing rules. Evaluations are pure with respect to
// the decision value; the only internal state is the last identity a redirect
// diagnostic fired for, so repeated evaluations of the same session do not
// spam logs.
type Resolver struct {
	routes   RouteTable
	logger   Logger
	provider LoggerProvider
	activity ActivitySink

	mu           sync.Mutex
	lastNotified string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverRoutes overrides the route table. Empty fields keep defaults.
func WithResolverRoutes(routes RouteTable) ResolverOption {
	return func(r *Resolver) {
		r.routes = routes.withDefaults()
	}
}

// WithResolverLogger sets the logger used for redirect diagnostics.
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			_, r.logger = ResolveLogger("navgate.resolver", nil, logger)
		}
	}
}

// WithResolverLoggerProvider resolves a scoped logger from the provider.
func WithResolverLoggerProvider(provider LoggerProvider) ResolverOption {
	return func(r *Resolver) {
		if provider != nil {
			r.provider, r.logger = ResolveLogger("navgate.resolver", provider, r.logger)
		}
	}
}

// WithResolverActivitySink registers the sink receiving redirect events.
func WithResolverActivitySink(sink ActivitySink) ResolverOption {
	return func(r *Resolver) {
		r.activity = normalizeActivitySink(sink)
	}
}

// NewResolver creates a resolver with the default route table.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		routes:   DefaultRouteTable(),
		activity: noopActivitySink{},
	}
	r.provider, r.logger = ResolveLogger("navgate.resolver", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Routes returns the table this resolver navigates with.
func (r *Resolver) Routes() RouteTable {
	return r.routes
}

// ResolveProtected evaluates the protected zone rules:
//
//  1. session not hydrated or permissions still loading -> loading
//  2. not authenticated -> redirect to login
//  3. profile incomplete (flag, role, or unknown role) -> redirect to completion
//  4. otherwise -> render
func (r *Resolver) ResolveProtected(session Session, perms PermissionState) Decision {
	if !session.Hydrated || perms.Loading {
		return Loading()
	}

	if !session.Authenticated {
		return r.redirect(ZoneProtected, session, r.routes.Login)
	}

	if session.RequiresCompletion() {
		return r.redirect(ZoneProtected, session, r.routes.CompleteProfile)
	}

	return RenderChildren()
}

// ResolvePublic evaluates the public zone rules. Authenticated users with a
// finished profile have no business on auth screens and get sent home;
// authenticated-but-incomplete users stay, since completion itself lives in
// the public zone.
func (r *Resolver) ResolvePublic(session Session) Decision {
	if !session.Hydrated {
		return Loading()
	}

	if session.Authenticated && !session.RequiresCompletion() {
		return r.redirect(ZonePublic, session, r.routes.Home)
	}

	return RenderChildren()
}

// ResolveRoot evaluates the entry route. It follows the protected precedence
// and additionally waits for the minimum loader display before navigating;
// the final step is always a redirect to the role's landing path, never a
// render.
func (r *Resolver) ResolveRoot(session Session, perms PermissionState, minDelayElapsed bool) Decision {
	if !session.Hydrated || perms.Loading || !minDelayElapsed {
		return Loading()
	}

	if !session.Authenticated {
		return r.redirect(ZoneRoot, session, r.routes.Login)
	}

	if session.RequiresCompletion() {
		return r.redirect(ZoneRoot, session, r.routes.CompleteProfile)
	}

	return r.redirect(ZoneRoot, session, r.routes.LandingFor(session.Role()))
}

func (r *Resolver) redirect(zone string, session Session, target string) Decision {
	r.noteRedirect(zone, session, target)
	return RedirectTo(target)
}

// noteRedirect emits the one-shot diagnostic for a redirect. It fires once
// per session identity; a changed identity re-arms it. Suppression only
// affects logging, never the decision value.
func (r *Resolver) noteRedirect(zone string, session Session, target string) {
	identity := session.Identity()

	r.mu.Lock()
	if r.lastNotified == identity {
		r.mu.Unlock()
		return
	}
	r.lastNotified = identity
	r.mu.Unlock()

	r.logger.Info("navigation redirect",
		"zone", zone,
		"target", target,
		"identity", identity,
	)

	event := ActivityEvent{
		EventType:  ActivityEventRedirect,
		Identity:   identity,
		Zone:       zone,
		Target:     target,
		OccurredAt: time.Now(),
	}
	if session.User != nil {
		event.UserID = session.User.ID
	}

	if err := r.activity.Record(context.Background(), event); err != nil {
		r.logger.Warn("resolver activity sink error", "error", err)
	}
}

// LastNotifiedIdentity exposes the one-shot diagnostic key, for debug
// endpoints and tests.
func (r *Resolver) LastNotifiedIdentity() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastNotified
}
