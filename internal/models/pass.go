package models

import "time"

// PassStatus tracks a request through the fixed EB -> President -> Faculty
// approval chain.
type PassStatus string

const (
	StatusPendingEB        PassStatus = "PENDING_EB"
	StatusPendingPresident PassStatus = "PENDING_PRESIDENT"
	StatusPendingFaculty   PassStatus = "PENDING_FACULTY"
	StatusApproved         PassStatus = "APPROVED"
	StatusRejected         PassStatus = "REJECTED"
)

// Valid reports whether the status is a known enum value.
func (s PassStatus) Valid() bool {
	switch s {
	case StatusPendingEB, StatusPendingPresident, StatusPendingFaculty, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further approval transitions are accepted.
func (s PassStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// allowedNext is the closed transition table for the approval chain.
// Rejection is the only early exit; nothing leaves a terminal state.
var allowedNext = map[PassStatus][]PassStatus{
	StatusPendingEB:        {StatusPendingPresident, StatusRejected},
	StatusPendingPresident: {StatusPendingFaculty, StatusRejected},
	StatusPendingFaculty:   {StatusApproved, StatusRejected},
}

// CanTransition reports whether from -> to is present in the transition table.
func CanTransition(from, to PassStatus) bool {
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApprovalLevel identifies an actor's position in the chain.
type ApprovalLevel string

const (
	LevelEB        ApprovalLevel = "EB"
	LevelPresident ApprovalLevel = "PRESIDENT"
	LevelFaculty   ApprovalLevel = "FACULTY"
)

// Valid reports whether the level is a known enum value.
func (l ApprovalLevel) Valid() bool {
	switch l {
	case LevelEB, LevelPresident, LevelFaculty:
		return true
	}
	return false
}

// PendingStatus returns the status a request must hold for this level to act.
func (l ApprovalLevel) PendingStatus() PassStatus {
	switch l {
	case LevelEB:
		return StatusPendingEB
	case LevelPresident:
		return StatusPendingPresident
	case LevelFaculty:
		return StatusPendingFaculty
	}
	return ""
}

// ApprovedStatus returns the status an approval at this level moves to.
func (l ApprovalLevel) ApprovedStatus() PassStatus {
	switch l {
	case LevelEB:
		return StatusPendingPresident
	case LevelPresident:
		return StatusPendingFaculty
	case LevelFaculty:
		return StatusApproved
	}
	return ""
}

// LevelForStatus maps a pending status back to the level that owns it.
func LevelForStatus(s PassStatus) (ApprovalLevel, bool) {
	switch s {
	case StatusPendingEB:
		return LevelEB, true
	case StatusPendingPresident:
		return LevelPresident, true
	case StatusPendingFaculty:
		return LevelFaculty, true
	}
	return "", false
}

// Decision is an approver's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Valid reports whether the decision is a known enum value.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ActivationStatus tracks the kiosk self-activation path, independent of the
// approval chain status.
type ActivationStatus string

const (
	ActivationNone      ActivationStatus = "NONE"
	ActivationPendingEB ActivationStatus = "PENDING_EB_ACTIVATION"
	ActivationActivated ActivationStatus = "ACTIVATED"
	ActivationRejected  ActivationStatus = "REJECTED"
)

// PassRequest is one student's authorization for one outing.
type PassRequest struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
	SocietyID string `db:"society_id" json:"society_id"`
	Reason    string `db:"reason" json:"reason"`

	Date       time.Time `db:"date" json:"date"`
	ExitTime   string    `db:"exit_time" json:"exit_time"`
	ReturnTime *string   `db:"return_time" json:"return_time,omitempty"`

	Status           PassStatus       `db:"status" json:"status"`
	ActivationStatus ActivationStatus `db:"activation_status" json:"activation_status"`

	Token          *string    `db:"token" json:"token,omitempty"`
	TokenIssuedAt  *time.Time `db:"token_issued_at" json:"token_issued_at,omitempty"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`

	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy  *string    `db:"verified_by" json:"verified_by,omitempty"`
	CheckInAt   *time.Time `db:"check_in_at" json:"check_in_at,omitempty"`
	IsLate      bool       `db:"is_late" json:"is_late"`
	LateMinutes int        `db:"late_minutes" json:"late_minutes"`

	BulkRequestID *string    `db:"bulk_request_id" json:"bulk_request_id,omitempty"`
	DecidedBy     *string    `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt     *time.Time `db:"decided_at" json:"decided_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PassFilter captures filtering criteria for listing pass requests.
type PassFilter struct {
	StudentID string
	SocietyID string
	Status    *PassStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TokenGrant holds the minted token columns written on final approval.
type TokenGrant struct {
	RequestID string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
