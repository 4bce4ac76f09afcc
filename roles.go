package navgate

// UserRole is the user's role
type UserRole string

const (
	// RoleGuest is an unauthenticated or provisional visitor
	RoleGuest UserRole = "guest"
	// RoleUser is a registered account that has not completed onboarding
	RoleUser UserRole = "user"
	// RoleNurse is clinical staff (i.e. patient care, charting)
	RoleNurse UserRole = "nurse"
	// RoleDoctor is clinical staff with prescribing privileges
	RoleDoctor UserRole = "doctor"
	// RoleHeadDoctor leads a clinical team
	RoleHeadDoctor UserRole = "head_doctor"
	// RoleOperator runs the operational dashboard (i.e. scheduling, intake)
	RoleOperator UserRole = "operator"
	// RoleManager administers an organization
	RoleManager UserRole = "manager"
	// RoleAdmin is the platform admin role
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleGuest, RoleUser, RoleNurse, RoleDoctor, RoleHeadDoctor, RoleOperator, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsClinical checks if the role belongs to clinical staff
func (r UserRole) IsClinical() bool {
	switch r {
	case RoleNurse, RoleDoctor, RoleHeadDoctor:
		return true
	default:
		return false
	}
}

// RequiresCompletion reports whether accounts with this role must finish
// onboarding before reaching protected screens. Empty and unrecognized roles
// are treated as incomplete rather than being let through.
func (r UserRole) RequiresCompletion() bool {
	switch r {
	case RoleGuest, RoleUser, "":
		return true
	default:
		return !r.IsValid()
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleGuest:      0,
		RoleUser:       1,
		RoleNurse:      2,
		RoleDoctor:     3,
		RoleOperator:   3,
		RoleHeadDoctor: 4,
		RoleManager:    5,
		RoleAdmin:      6,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleGuest,
		RoleUser,
		RoleNurse,
		RoleDoctor,
		RoleOperator,
		RoleHeadDoctor,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
