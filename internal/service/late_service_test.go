package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/pkg/notify"
)

func TestAudiencesTiering(t *testing.T) {
	svc := NewLateReturnService(&mockQueue{}, NewMetricsService(), time.Hour, zap.NewNop())

	assert.Empty(t, svc.Audiences(false, 0))
	// late by under a minute truncates to zero minutes but still reaches EB
	assert.Equal(t, []notify.Audience{notify.AudienceEB}, svc.Audiences(true, 0))
	assert.Equal(t, []notify.Audience{notify.AudienceEB}, svc.Audiences(true, 1))
	assert.Equal(t, []notify.Audience{notify.AudienceEB}, svc.Audiences(true, 45))
	// exactly at the threshold stays EB-only; escalation needs to exceed it
	assert.Equal(t, []notify.Audience{notify.AudienceEB}, svc.Audiences(true, 60))
	assert.Equal(t, []notify.Audience{notify.AudienceEB, notify.AudienceFaculty}, svc.Audiences(true, 61))
	assert.Equal(t, []notify.Audience{notify.AudienceEB, notify.AudienceFaculty}, svc.Audiences(true, 75))
}

func TestHandleCheckInEnqueuesPerAudience(t *testing.T) {
	queue := &mockQueue{}
	svc := NewLateReturnService(queue, NewMetricsService(), time.Hour, zap.NewNop())
	pass := &models.PassRequest{ID: "req-1", StudentID: "stu-1", SocietyID: "soc-1"}
	at := time.Date(2025, 1, 10, 23, 15, 0, 0, time.UTC)

	svc.HandleCheckIn(pass, 75, at)

	require.Len(t, queue.notices, 2)
	for _, notice := range queue.notices {
		assert.Equal(t, "req-1", notice.RequestID)
		assert.Equal(t, "stu-1", notice.StudentID)
		assert.Equal(t, "soc-1", notice.SocietyID)
		assert.Equal(t, 75, notice.LateMinutes)
		assert.NotEmpty(t, notice.ID)
		assert.Equal(t, at, notice.Enqueued)
	}
	assert.NotEqual(t, queue.notices[0].Audience, queue.notices[1].Audience)
}

func TestHandleCheckInSubMinuteLateNotifiesEB(t *testing.T) {
	queue := &mockQueue{}
	svc := NewLateReturnService(queue, NewMetricsService(), time.Hour, zap.NewNop())
	pass := &models.PassRequest{ID: "req-1", StudentID: "stu-1", SocietyID: "soc-1"}

	svc.HandleCheckIn(pass, 0, time.Now())

	require.Len(t, queue.notices, 1)
	assert.Equal(t, notify.AudienceEB, queue.notices[0].Audience)
	assert.Equal(t, 0, queue.notices[0].LateMinutes)
}
