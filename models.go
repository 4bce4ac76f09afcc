package navgate

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel      `bun:"table:users,alias:usr"`
	ID                 uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role               UserRole       `bun:"user_role,notnull" json:"user_role,omitempty"`
	FirstName          string         `bun:"first_name" json:"first_name,omitempty"`
	LastName           string         `bun:"last_name" json:"last_name,omitempty"`
	Email              string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone              string         `bun:"phone_number" json:"phone_number,omitempty"`
	OrganizationID     *uuid.UUID     `bun:"organization_id,nullzero,type:uuid" json:"organization_id,omitempty"`
	Organization       *Organization  `bun:"rel:belongs-to,join:organization_id=id" json:"organization,omitempty"`
	ProfileCompletedAt *time.Time     `bun:"profile_completed_at,nullzero" json:"profile_completed_at,omitempty"`
	Metadata           map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt          *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt          *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// NeedsProfileCompletion reports whether the account still has to run the
// profile completion flow before it can reach a role landing.
func (u *User) NeedsProfileCompletion() bool {
	if u == nil {
		return true
	}
	if u.ProfileCompletedAt == nil {
		return true
	}
	return u.Role.RequiresCompletion()
}

// FullName joins the name parts, skipping whichever is empty.
func (u *User) FullName() string {
	switch {
	case u == nil:
		return ""
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// SessionUser maps the record into the navigation session shape.
func (u *User) SessionUser() *SessionUser {
	if u == nil {
		return nil
	}

	su := &SessionUser{
		ID:                     u.ID.String(),
		Email:                  u.Email,
		Name:                   u.FullName(),
		Role:                   u.Role,
		NeedsProfileCompletion: u.NeedsProfileCompletion(),
	}

	if u.OrganizationID != nil {
		su.OrganizationID = u.OrganizationID.String()
	}

	return su
}

// AddMetadata will append information to a metadata attribute
// TODO: make a trigger to merge metadata in database!
// https://stackoverflow.com/a/42954907/125083
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]interface{})
	}
	u.Metadata[key] = val
	return u
}

// Organization is the care organization accounts attach to during profile
// completion.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:org"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}
