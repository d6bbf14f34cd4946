package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent   UserRole = "STUDENT"
	RoleEB        UserRole = "EB"
	RolePresident UserRole = "PRESIDENT"
	RoleFaculty   UserRole = "FACULTY"
	RoleGuard     UserRole = "GUARD"
	RoleAdmin     UserRole = "ADMIN"
)

// FlagType distinguishes society advisories from authority-imposed blocks.
type FlagType string

const (
	FlagSoft FlagType = "SOFT"
	FlagHard FlagType = "HARD"
)

// Valid reports whether the flag type is a known enum value.
func (f FlagType) Valid() bool {
	return f == FlagSoft || f == FlagHard
}

// User represents an application user stored in the users table.
type User struct {
	ID        string   `db:"id" json:"id"`
	Email     string   `db:"email" json:"email"`
	FullName  string   `db:"full_name" json:"full_name"`
	Role      UserRole `db:"role" json:"role"`
	SocietyID *string  `db:"society_id" json:"society_id,omitempty"`

	IsFlagged  bool       `db:"is_flagged" json:"is_flagged"`
	FlagType   *FlagType  `db:"flag_type" json:"flag_type,omitempty"`
	FlagReason *string    `db:"flag_reason" json:"flag_reason,omitempty"`
	FlaggedBy  *string    `db:"flagged_by" json:"flagged_by,omitempty"`
	FlaggedAt  *time.Time `db:"flagged_at" json:"flagged_at,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HardFlagged reports whether the user carries an authority-imposed flag.
func (u *User) HardFlagged() bool {
	return u.IsFlagged && u.FlagType != nil && *u.FlagType == FlagHard
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
