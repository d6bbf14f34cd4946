package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/pkg/notify"
)

type noticeQueue interface {
	Enqueue(notice notify.Notice) error
}

// LateReturnService turns a late check-in into escalation notices. Tiering:
// any lateness notifies the society EB; lateness beyond FacultyThreshold
// additionally notifies faculty.
type LateReturnService struct {
	queue            noticeQueue
	metrics          *MetricsService
	facultyThreshold time.Duration
	logger           *zap.Logger
}

// NewLateReturnService constructs the late-return escalator.
func NewLateReturnService(queue noticeQueue, metrics *MetricsService, facultyThreshold time.Duration, logger *zap.Logger) *LateReturnService {
	if facultyThreshold <= 0 {
		facultyThreshold = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LateReturnService{
		queue:            queue,
		metrics:          metrics,
		facultyThreshold: facultyThreshold,
		logger:           logger,
	}
}

// Audiences returns which staff tiers a given lateness reaches. The EB tier
// keys on isLate, not minutes: a return seconds past curfew truncates to
// zero minutes but is still late.
func (s *LateReturnService) Audiences(isLate bool, lateMinutes int) []notify.Audience {
	if !isLate {
		return nil
	}
	audiences := []notify.Audience{notify.AudienceEB}
	if time.Duration(lateMinutes)*time.Minute > s.facultyThreshold {
		audiences = append(audiences, notify.AudienceFaculty)
	}
	return audiences
}

// HandleCheckIn enqueues escalation notices for a late return; callers
// invoke it only when the check-in was late. Enqueue failures are logged,
// never surfaced: the check-in already happened and must not be rolled back
// over a notification.
func (s *LateReturnService) HandleCheckIn(pass *models.PassRequest, lateMinutes int, checkedInAt time.Time) {
	audiences := s.Audiences(true, lateMinutes)
	if len(audiences) == 0 {
		return
	}
	message := fmt.Sprintf("student %s returned %d minutes late on pass %s", pass.StudentID, lateMinutes, pass.ID)
	for _, audience := range audiences {
		notice := notify.Notice{
			ID:          uuid.NewString(),
			Audience:    audience,
			SocietyID:   pass.SocietyID,
			StudentID:   pass.StudentID,
			RequestID:   pass.ID,
			LateMinutes: lateMinutes,
			Message:     message,
			Enqueued:    checkedInAt,
		}
		if err := s.queue.Enqueue(notice); err != nil {
			s.logger.Error("failed to enqueue late-return notice",
				zap.String("request_id", pass.ID),
				zap.String("audience", string(audience)),
				zap.Error(err))
			continue
		}
		s.metrics.RecordEscalation(string(audience))
	}
	s.logger.Warn("late return escalated",
		zap.String("request_id", pass.ID),
		zap.String("student_id", pass.StudentID),
		zap.Int("late_minutes", lateMinutes),
		zap.Int("audiences", len(audiences)))
}
