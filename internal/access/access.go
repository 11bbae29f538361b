// Package access decides whether a principal may perform an operation on a
// case. Decisions are pure: callers load the case and resolve the employee's
// organization before asking.
package access

import "github.com/verifyhub/case-engine/internal/store/model"

type Operation string

const (
	OpRead             Operation = "read"
	OpCreate           Operation = "create"
	OpUpdateStatus     Operation = "update_status"
	OpAssign           Operation = "assign"
	OpClaim            Operation = "claim"
	OpUpdateDocument   Operation = "update_document"
	OpUpdateJobHistory Operation = "update_job_history"
	OpFinalize         Operation = "finalize"
)

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

type Principal struct {
	ID             string
	Role           model.Role
	OrganizationID string
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// Target is the part of a case the rules look at.
type Target struct {
	EmployeeID             string
	EmployeeOrganizationID string
	AssignedTo             *string
}

func TargetFor(c *model.Case, employeeOrganizationID string) Target {
	return Target{
		EmployeeID:             c.EmployeeID,
		EmployeeOrganizationID: employeeOrganizationID,
		AssignedTo:             c.AssignedTo,
	}
}

var roleOperations = map[model.Role]map[Operation]bool{
	model.RoleEmployee: {OpRead: true, OpCreate: true},
	model.RoleEmployer: {OpRead: true},
	model.RoleVerifier: {
		OpRead:             true,
		OpUpdateStatus:     true,
		OpClaim:            true,
		OpUpdateDocument:   true,
		OpUpdateJobHistory: true,
		OpFinalize:         true,
	},
}

// RoleAllows reports whether some case exists on which role may perform op.
// It does not depend on the case and is checked before the case is loaded.
func RoleAllows(role model.Role, op Operation) bool {
	if role == model.RoleAdmin {
		return true
	}
	return roleOperations[role][op]
}

// Authorize applies the rules in order; the first one that matches decides.
func Authorize(p Principal, t Target, op Operation) Decision {
	if !RoleAllows(p.Role, op) {
		return Deny
	}

	switch p.Role {
	case model.RoleAdmin:
		return Allow
	case model.RoleEmployee:
		if t.EmployeeID == p.ID {
			return Allow
		}
	case model.RoleEmployer:
		if p.OrganizationID != "" && t.EmployeeOrganizationID == p.OrganizationID {
			return Allow
		}
	case model.RoleVerifier:
		if t.AssignedTo == nil {
			if op == OpRead || op == OpClaim {
				return Allow
			}
			return Deny
		}
		if *t.AssignedTo == p.ID && op != OpClaim {
			return Allow
		}
	}

	return Deny
}
