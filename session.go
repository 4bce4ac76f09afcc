package navgate

import (
	"fmt"
	"strconv"
	"strings"
)

// SessionUser carries the identity attributes routing decisions depend on.
type SessionUser struct {
	ID                     string   `json:"id,omitempty"`
	Email                  string   `json:"email,omitempty"`
	Name                   string   `json:"name,omitempty"`
	Role                   UserRole `json:"role,omitempty"`
	NeedsProfileCompletion bool     `json:"needs_profile_completion,omitempty"`
	OrganizationID         string   `json:"organization_id,omitempty"`
}

// Session is the navigation view of authentication state. Hydrated tells
// whether boot-time restoration has finished; until then no redirect may be
// issued based on this value.
type Session struct {
	Hydrated      bool         `json:"hydrated"`
	Authenticated bool         `json:"authenticated"`
	User          *SessionUser `json:"user,omitempty"`
}

// AnonymousSession returns a hydrated session with no authenticated user.
func AnonymousSession() Session {
	return Session{Hydrated: true}
}

// Identity returns a stable string for the session's routing relevant state:
// "<id>|<role>|<complete>" for authenticated users, "anon" otherwise. Two
// sessions that resolve to the same identity will route identically, which is
// what makes it usable as a one-shot diagnostic key.
func (s Session) Identity() string {
	if !s.Authenticated || s.User == nil {
		return "anon"
	}
	return strings.Join([]string{
		s.User.ID,
		string(s.User.Role),
		strconv.FormatBool(!s.User.NeedsProfileCompletion),
	}, "|")
}

// Role returns the session user's role, falling back to guest.
func (s Session) Role() UserRole {
	if s.User == nil {
		return RoleGuest
	}
	if role, ok := ParseRole(string(s.User.Role)); ok {
		return role
	}
	return s.User.Role
}

// RequiresCompletion reports whether routing must send this session through
// profile completion. An incomplete profile dominates any role based landing.
func (s Session) RequiresCompletion() bool {
	if s.User == nil {
		return true
	}
	return s.User.NeedsProfileCompletion || s.User.Role.RequiresCompletion()
}

// Equal compares sessions by value, including the user payload.
func (s Session) Equal(other Session) bool {
	if s.Hydrated != other.Hydrated || s.Authenticated != other.Authenticated {
		return false
	}
	if (s.User == nil) != (other.User == nil) {
		return false
	}
	if s.User == nil {
		return true
	}
	return *s.User == *other.User
}

func (s Session) clone() Session {
	if s.User == nil {
		return s
	}
	user := *s.User
	s.User = &user
	return s
}

// TODO: enable only in development!
func (s Session) String() string {
	user := "<nil>"
	if s.User != nil {
		user = fmt.Sprintf("id=%s role=%s complete=%t", s.User.ID, s.User.Role, !s.User.NeedsProfileCompletion)
	}
	return fmt.Sprintf("hydrated=%t authenticated=%t user=[%s]", s.Hydrated, s.Authenticated, user)
}

// SessionFromClaims builds an authenticated, hydrated session from validated
// token claims. Request-scoped sessions created this way shadow the store's
// snapshot inside the zone middleware.
func SessionFromClaims(claims SessionClaims) (Session, error) {
	if claims == nil {
		return Session{}, ErrUnableToMapClaims
	}

	role := UserRole(claims.Role())

	return Session{
		Hydrated:      true,
		Authenticated: true,
		User: &SessionUser{
			ID:                     claims.UserID(),
			Email:                  claims.Email(),
			Name:                   claims.Name(),
			Role:                   role,
			NeedsProfileCompletion: !claims.ProfileComplete() || role.RequiresCompletion(),
			OrganizationID:         claims.Organization(),
		},
	}, nil
}
