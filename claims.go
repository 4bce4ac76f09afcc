package navgate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims represents structured JWT claims carrying the navigation
// relevant identity attributes.
type SessionClaims interface {
	Subject() string
	UserID() string
	Email() string
	Name() string
	Role() string
	ProfileComplete() bool
	Organization() string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of SessionClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string         `json:"uid,omitempty"`
	UserRole  string         `json:"role,omitempty"`
	UserEmail string         `json:"email,omitempty"`
	UserName  string         `json:"name,omitempty"`
	Complete  bool           `json:"profile_complete,omitempty"`
	Org       string         `json:"org,omitempty"`
	Scopes    []string       `json:"scopes,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"` // extension payload
}

// Verify interface compliance
var _ SessionClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the account email
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Name returns the display name
func (c *JWTClaims) Name() string {
	return c.UserName
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// ProfileComplete reports whether the account finished onboarding
func (c *JWTClaims) ProfileComplete() bool {
	return c.Complete
}

// Organization returns the organization the account belongs to
func (c *JWTClaims) Organization() string {
	return c.Org
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// ClaimScopes exposes any token scopes minted into the claims.
func (c *JWTClaims) ClaimScopes() []string {
	return c.Scopes
}

// HasRole checks if the user has a specific role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return UserRole(c.UserRole).IsAtLeast(UserRole(minRole))
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
