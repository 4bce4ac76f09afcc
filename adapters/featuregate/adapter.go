package navgateadapter

import (
	"context"
	"strings"

	"github.com/goliatone/go-featuregate/gate"
	navgate "github.com/goliatone/go-navgate"
)

const defaultActorRefType = "user"

// ClaimsExtractor extracts session claims from context.
type ClaimsExtractor func(context.Context) (navgate.SessionClaims, bool)

// RoleMapper builds role identifiers from session claims.
type RoleMapper func(claims navgate.SessionClaims) []string

// ScopeMapper builds permission identifiers from session claims.
type ScopeMapper func(claims navgate.SessionClaims) []string

// ScopeFormatter formats a token scope into a permission string.
type ScopeFormatter func(scope string) string

// Option customizes ClaimsProvider behavior.
type Option func(*ClaimsProvider)

// ClaimsProvider derives feature claims from go-navgate session claims.
type ClaimsProvider struct {
	extractor      ClaimsExtractor
	roleMapper     RoleMapper
	scopeMapper    ScopeMapper
	scopeFormatter ScopeFormatter
}

// NewClaimsProvider builds a claims provider using go-navgate's context claims extractor.
func NewClaimsProvider(opts ...Option) *ClaimsProvider {
	provider := &ClaimsProvider{
		extractor:      navgate.GetClaims,
		scopeFormatter: defaultScopeFormatter,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if provider.extractor == nil {
		provider.extractor = navgate.GetClaims
	}
	if provider.scopeFormatter == nil {
		provider.scopeFormatter = defaultScopeFormatter
	}
	if provider.roleMapper == nil {
		provider.roleMapper = defaultRoleMapper
	}
	if provider.scopeMapper == nil {
		provider.scopeMapper = defaultScopeMapper(provider.scopeFormatter)
	}
	return provider
}

// WithClaimsExtractor overrides the session claims extractor.
func WithClaimsExtractor(extractor ClaimsExtractor) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.extractor = extractor
	}
}

// WithRoleMapper overrides the default role mapper.
func WithRoleMapper(mapper RoleMapper) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.roleMapper = mapper
	}
}

// WithScopeMapper overrides the default scope mapper.
func WithScopeMapper(mapper ScopeMapper) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.scopeMapper = mapper
	}
}

// WithScopeFormatter customizes how token scopes become permission strings.
func WithScopeFormatter(format ScopeFormatter) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.scopeFormatter = format
	}
}

// ClaimsFromContext implements gate.ClaimsProvider.
func (p *ClaimsProvider) ClaimsFromContext(ctx context.Context) (gate.ActorClaims, error) {
	if p == nil || p.extractor == nil {
		return gate.ActorClaims{}, nil
	}
	claims, ok := p.extractor(ctx)
	if !ok || claims == nil {
		return gate.ActorClaims{}, nil
	}
	return claimsFromSession(claims, p.roleMapper, p.scopeMapper), nil
}

// ClaimsFromSession builds ActorClaims from navgate session claims using defaults.
func ClaimsFromSession(claims navgate.SessionClaims) gate.ActorClaims {
	return claimsFromSession(claims, defaultRoleMapper, defaultScopeMapper(defaultScopeFormatter))
}

func claimsFromSession(claims navgate.SessionClaims, roleMapper RoleMapper, scopeMapper ScopeMapper) gate.ActorClaims {
	if claims == nil {
		return gate.ActorClaims{}
	}
	subjectID := claims.UserID()
	if subjectID == "" {
		subjectID = claims.Subject()
	}
	actor := gate.ActorClaims{
		SubjectID: subjectID,
		OrgID:     claims.Organization(),
	}
	if roleMapper != nil {
		actor.Roles = roleMapper(claims)
	}
	if scopeMapper != nil {
		actor.Perms = scopeMapper(claims)
	}
	return actor
}

func defaultRoleMapper(claims navgate.SessionClaims) []string {
	if claims == nil || claims.Role() == "" {
		return nil
	}
	return []string{claims.Role()}
}

// scopeCarrier is satisfied by claims that expose minted token scopes,
// like navgate.JWTClaims.
type scopeCarrier interface {
	ClaimScopes() []string
}

func defaultScopeMapper(format ScopeFormatter) ScopeMapper {
	return func(claims navgate.SessionClaims) []string {
		carrier, ok := claims.(scopeCarrier)
		if !ok {
			return nil
		}
		scopes := carrier.ClaimScopes()
		if len(scopes) == 0 {
			return nil
		}
		formatter := format
		if formatter == nil {
			formatter = defaultScopeFormatter
		}
		perms := make([]string, 0, len(scopes))
		for _, scope := range scopes {
			scope = strings.TrimSpace(scope)
			if scope == "" {
				continue
			}
			perms = append(perms, formatter(scope))
		}
		if len(perms) == 0 {
			return nil
		}
		return perms
	}
}

func defaultScopeFormatter(scope string) string {
	return "scope:" + scope
}

// PermConflictResolver combines claims perms with derived perms.
type PermConflictResolver func(existing, derived []string) []string

// PermOption customizes permission provider behavior.
type PermOption func(*PermissionProvider)

// PermissionProvider derives permissions from claims and session context.
type PermissionProvider struct {
	extractor        ClaimsExtractor
	conflictResolver PermConflictResolver
}

// NewPermissionProvider builds a permission provider using go-navgate's context claims extractor.
func NewPermissionProvider(opts ...PermOption) *PermissionProvider {
	provider := &PermissionProvider{
		extractor:        navgate.GetClaims,
		conflictResolver: mergePerms,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if provider.extractor == nil {
		provider.extractor = navgate.GetClaims
	}
	if provider.conflictResolver == nil {
		provider.conflictResolver = mergePerms
	}
	return provider
}

// WithPermClaimsExtractor overrides the claims extractor used to derive permissions.
func WithPermClaimsExtractor(extractor ClaimsExtractor) PermOption {
	return func(provider *PermissionProvider) {
		if provider == nil {
			return
		}
		provider.extractor = extractor
	}
}

// WithPermConflictResolver overrides how derived permissions are merged.
func WithPermConflictResolver(resolver PermConflictResolver) PermOption {
	return func(provider *PermissionProvider) {
		if provider == nil {
			return
		}
		provider.conflictResolver = resolver
	}
}

// Permissions implements gate.PermissionProvider.
func (p *PermissionProvider) Permissions(ctx context.Context, claims gate.ActorClaims) ([]string, error) {
	if p == nil {
		return claims.Perms, nil
	}
	var derived []string
	if p.extractor != nil {
		session, ok := p.extractor(ctx)
		if ok && session != nil {
			derived = defaultScopeMapper(defaultScopeFormatter)(session)
		}
	}
	if p.conflictResolver == nil {
		return mergePerms(claims.Perms, derived), nil
	}
	return p.conflictResolver(claims.Perms, derived), nil
}

func mergePerms(existing, derived []string) []string {
	if len(existing) == 0 && len(derived) == 0 {
		return nil
	}
	merged := make([]string, 0, len(existing)+len(derived))
	merged = append(merged, existing...)
	merged = append(merged, derived...)
	return merged
}

// ActorRefFromClaims builds an ActorRef from navgate session claims.
func ActorRefFromClaims(claims navgate.SessionClaims) gate.ActorRef {
	if claims == nil {
		return gate.ActorRef{}
	}
	id := claims.UserID()
	if id == "" {
		id = claims.Subject()
	}
	return gate.ActorRef{
		ID:   id,
		Type: defaultActorRefType,
		Name: claims.Role(),
	}
}

// ActorRefFromContext extracts an ActorRef from context.
func ActorRefFromContext(ctx context.Context) (gate.ActorRef, bool) {
	claims, ok := navgate.GetClaims(ctx)
	if !ok || claims == nil {
		return gate.ActorRef{}, false
	}
	return ActorRefFromClaims(claims), true
}

var _ gate.ClaimsProvider = (*ClaimsProvider)(nil)
var _ gate.PermissionProvider = (*PermissionProvider)(nil)
