package model

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployer Role = "employer"
	RoleEmployee Role = "employee"
	RoleVerifier Role = "verifier"
)

// Principal is a directory entry: any actor that can authenticate, and any
// employee a case can be opened for.
type Principal struct {
	ID             string    `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt      time.Time `gorm:"not null"`
	Role           Role      `gorm:"not null;type:VARCHAR(50);index:principals_role_idx"`
	OrganizationID string    `gorm:"type:VARCHAR(255);index:principals_org_id_idx"`
	Name           string    `gorm:"type:VARCHAR(255)"`
	Email          string    `gorm:"type:VARCHAR(255)"`
	Active         bool      `gorm:"not null"`
	// MaxCapacity bounds the number of open cases a verifier should hold.
	MaxCapacity int `gorm:"not null"`
}

// VerifierWorkload counts the open (assigned or in progress) cases a verifier holds.
type VerifierWorkload struct {
	VerifierID    string
	MaxCapacity   int
	AssignedCases int
}

// Ratio is 1 for verifiers without capacity so they sort last.
func (w VerifierWorkload) Ratio() float64 {
	if w.MaxCapacity <= 0 {
		return 1
	}
	return float64(w.AssignedCases) / float64(w.MaxCapacity)
}

func (w VerifierWorkload) HasCapacity() bool {
	return w.AssignedCases < w.MaxCapacity
}
