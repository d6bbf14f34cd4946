package dto

// VerifyRequest carries a scanned pass token to the guard endpoint.
type VerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyResponse is the guard display payload.
type VerifyResponse struct {
	Valid    bool            `json:"valid"`
	Subject  SubjectSnapshot `json:"subject"`
	FirstUse bool            `json:"first_use"`
}

// CheckInRequest records a return at the gate.
type CheckInRequest struct {
	Token string `json:"token" validate:"required"`
}

// CheckInResponse summarises the completed outing.
type CheckInResponse struct {
	Subject        SubjectSnapshot `json:"subject"`
	ElapsedMinutes int             `json:"elapsed_minutes"`
	IsLate         bool            `json:"is_late"`
	LateMinutes    int             `json:"late_minutes"`
}

// ActivateRequest is the kiosk self-service scan payload. The kiosk QR is not
// student-specific; the student id comes from the student's own session.
type ActivateRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// Kiosk activation actions.
const (
	ActivationActionExit   = "EXIT"
	ActivationActionReturn = "RETURN"
)

// ActivateResponse tells the kiosk what just happened.
type ActivateResponse struct {
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}
