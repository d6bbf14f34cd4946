package dto

import "github.com/noah-isme/campus-outpass-api/internal/models"

// SubmitBulkRequest is an EB-sponsored batch submission.
type SubmitBulkRequest struct {
	SocietyID   string   `json:"society_id" validate:"required"`
	Reason      string   `json:"reason" validate:"required"`
	StartDate   string   `json:"start_date" validate:"required"`
	EndDate     *string  `json:"end_date"`
	ExitTime    string   `json:"exit_time" validate:"required"`
	ReturnTime  *string  `json:"return_time"`
	DocumentURL *string  `json:"document_url"`
	StudentIDs  []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// BulkDecisionRequest applies one verdict to a whole batch.
type BulkDecisionRequest struct {
	Decision string `json:"decision" validate:"required,pass_decision"`
}

// BulkView bundles the batch with its fan-out rows.
type BulkView struct {
	models.BulkPassRequest
	Children []models.PassRequest `json:"children"`
}
