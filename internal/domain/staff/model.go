package staff

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/console/internal/platform/auth"
)

var ErrNotFound = errors.New("not found")

// ValidationError rejects input before it is stored.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Staff maps to the staff table. UpstreamID links a doctor or
// superconsultant to the id the patient records carry.
type Staff struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Role           string     `db:"role" json:"role"`
	CenterID       *uuid.UUID `db:"center_id" json:"center_id,omitempty"`
	Specialization *string    `db:"specialization" json:"specialization,omitempty"`
	UpstreamID     *string    `db:"upstream_id" json:"upstream_id,omitempty"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

var validRoles = map[string]bool{
	auth.RoleAdmin:           true,
	auth.RoleDoctor:          true,
	auth.RoleSuperconsultant: true,
	auth.RoleReceptionist:    true,
	auth.RoleAccountant:      true,
}

// Clinical reports whether the role sees patients.
func (s *Staff) Clinical() bool {
	return s.Role == auth.RoleDoctor || s.Role == auth.RoleSuperconsultant
}

// ListFilter narrows a staff listing. Zero values match everything.
type ListFilter struct {
	Role     string
	CenterID *uuid.UUID
	Active   *bool
	Query    string
}
