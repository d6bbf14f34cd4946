package dto

// SetFlagRequest marks a student as flagged.
type SetFlagRequest struct {
	Type   string `json:"type" validate:"required,flag_type"`
	Reason string `json:"reason" validate:"required"`
}
