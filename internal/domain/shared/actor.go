package shared

// Role is the access level of the operator invoking a use case.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSecretary Role = "secretary"
	RoleManager   Role = "manager"
	RoleStudent   Role = "student"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSecretary, RoleManager, RoleStudent:
		return true
	default:
		return false
	}
}

// Actor identifies who runs a use case and from where. Audit events copy it
// verbatim.
type Actor struct {
	ID   string
	Role Role
	IP   string
}

// Audit returns the actor as an audit payload.
func (a Actor) Audit() Audit {
	return Audit{ActorID: a.ID, ActorIP: a.IP}
}

// Guard is a fixed allow-list of roles for one operation.
type Guard []Role

// Allows reports whether the actor's role is on the list.
func (g Guard) Allows(a Actor) bool {
	for _, r := range g {
		if r == a.Role {
			return true
		}
	}
	return false
}

// Check returns ErrNotAllowed when the actor's role is not on the list.
func (g Guard) Check(domain, op string, a Actor) error {
	if !g.Allows(a) {
		return NotAllowed(domain, op)
	}
	return nil
}

// StaffOnly admits every role that manages academic records.
var StaffOnly = Guard{RoleAdmin, RoleSecretary, RoleManager}

// AdminOnly admits roles that may delete records or bulk-import students.
var AdminOnly = Guard{RoleAdmin, RoleSecretary}
