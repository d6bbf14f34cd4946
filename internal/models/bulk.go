package models

import "time"

// BulkPassRequest is one sponsor submission fanning out to many individual
// pass requests sharing a schedule. Created by EB, so the batch enters the
// chain one level up from individual submissions.
type BulkPassRequest struct {
	ID          string     `db:"id" json:"id"`
	SocietyID   string     `db:"society_id" json:"society_id"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	Reason      string     `db:"reason" json:"reason"`
	StartDate   time.Time  `db:"start_date" json:"start_date"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	ExitTime    string     `db:"exit_time" json:"exit_time"`
	ReturnTime  *string    `db:"return_time" json:"return_time,omitempty"`
	DocumentURL *string    `db:"document_url" json:"document_url,omitempty"`
	Status      PassStatus `db:"status" json:"status"`
	DecidedBy   *string    `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
