package models

import "time"

// Gate audit outcomes. Every redemption attempt is recorded, including the
// ones that fail, so a disputed scan can always be reconstructed.
const (
	GateOutcomeVerified        = "VERIFIED"
	GateOutcomeReVerified      = "RE_VERIFIED"
	GateOutcomeCheckedIn       = "CHECKED_IN"
	GateOutcomeActivatedExit   = "ACTIVATED_EXIT"
	GateOutcomeActivatedReturn = "ACTIVATED_RETURN"
	GateOutcomeRejected        = "REJECTED"
)

// GateAuditLog is one redemption attempt at a gate or kiosk.
type GateAuditLog struct {
	ID               string    `db:"id" json:"id"`
	ActorID          *string   `db:"actor_id" json:"actor_id,omitempty"`
	RequestID        *string   `db:"request_id" json:"request_id,omitempty"`
	TokenFingerprint *string   `db:"token_fingerprint" json:"token_fingerprint,omitempty"`
	Outcome          string    `db:"outcome" json:"outcome"`
	ErrorCode        *string   `db:"error_code" json:"error_code,omitempty"`
	IPAddress        string    `db:"ip_address" json:"ip_address"`
	UserAgent        string    `db:"user_agent" json:"user_agent"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
