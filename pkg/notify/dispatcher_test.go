package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []Notice
	fails int
}

func (r *recordingSender) Send(_ context.Context, notice Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("transport down")
	}
	r.sent = append(r.sent, notice)
	return nil
}

func (r *recordingSender) delivered() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.sent))
	copy(out, r.sent)
	return out
}

func TestDispatcherDelivers(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 1})
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(Notice{ID: "n-1", Audience: AudienceEB, LateMinutes: 45}))

	require.Eventually(t, func() bool {
		return len(sender.delivered()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, AudienceEB, sender.delivered()[0].Audience)
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	sender := &recordingSender{fails: 1}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 1, RetryDelay: 10 * time.Millisecond})
	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(Notice{ID: "n-1", Audience: AudienceFaculty}))

	require.Eventually(t, func() bool {
		return len(sender.delivered()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcherRejectsWhenNotStarted(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, DispatcherConfig{})
	require.Error(t, d.Enqueue(Notice{ID: "n-1"}))
}
