package dto

import "github.com/noah-isme/campus-outpass-api/internal/models"

// SubmitPassRequest is a student's individual outing submission.
type SubmitPassRequest struct {
	SocietyID  string  `json:"society_id" validate:"required"`
	Reason     string  `json:"reason" validate:"required"`
	Date       string  `json:"date" validate:"required"`
	ExitTime   string  `json:"exit_time" validate:"required"`
	ReturnTime *string `json:"return_time"`
}

// DecisionRequest is one approver's verdict on a pending pass.
type DecisionRequest struct {
	Level    string `json:"level" validate:"required,approval_level"`
	Decision string `json:"decision" validate:"required,pass_decision"`
}

// PassQuery filters pass listings.
type PassQuery struct {
	StudentID string  `json:"student_id"`
	SocietyID string  `json:"society_id"`
	Status    *string `json:"status" validate:"omitempty,pass_status"`
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
}

// PendingQueueQuery selects an approver queue.
type PendingQueueQuery struct {
	Level     string `json:"level" validate:"required,approval_level"`
	SocietyID string `json:"society_id"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// SubjectSnapshot is what a guard display shows after a token scan.
type SubjectSnapshot struct {
	RequestID   string  `json:"request_id"`
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	SocietyID   string  `json:"society_id"`
	Status      string  `json:"status"`
	Date        string  `json:"date"`
	WindowStart string  `json:"window_start"`
	WindowEnd   string  `json:"window_end"`
	ExpiresAt   string  `json:"expires_at"`
	VerifiedAt  *string `json:"verified_at,omitempty"`
}

// PassView decorates a pass request with its subject for role-scoped lists.
type PassView struct {
	models.PassRequest
	StudentName string `db:"student_name" json:"student_name"`
}
