package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Audience selects which staff tier receives an escalation notice.
type Audience string

const (
	AudienceEB      Audience = "EB"
	AudienceFaculty Audience = "FACULTY"
)

// Notice is a queued escalation notification.
type Notice struct {
	ID          string
	Audience    Audience
	SocietyID   string
	StudentID   string
	RequestID   string
	LateMinutes int
	Message     string
	Attempt     int
	Enqueued    time.Time
}

// Sender delivers a notice to its audience. Delivery transport (mail, push,
// in-app) lives outside this service.
type Sender interface {
	Send(ctx context.Context, notice Notice) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, notice Notice) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, notice Notice) error { return f(ctx, notice) }

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Dispatcher fans escalation notices out to a Sender from a bounded worker
// pool so check-in latency never depends on delivery transport.
type Dispatcher struct {
	sender Sender

	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	notices chan Notice
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewDispatcher builds a dispatcher around the provided sender.
func NewDispatcher(sender Sender, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Dispatcher{
		sender:     sender,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		notices:    make(chan Notice, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("notify dispatcher started", "workers", d.workers)
}

// Stop cancels workers and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("notify dispatcher stopped")
}

// Enqueue pushes a notice onto the dispatch channel.
func (d *Dispatcher) Enqueue(notice Notice) error {
	d.mu.Lock()
	ctx := d.ctx
	started := d.started
	d.mu.Unlock()

	if !started {
		return fmt.Errorf("notify dispatcher not started")
	}
	if notice.Enqueued.IsZero() {
		notice.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("notify dispatcher stopped: %w", ctx.Err())
	case d.notices <- notice:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case notice := <-d.notices:
			if err := d.sender.Send(d.ctx, notice); err != nil {
				d.handleFailure(notice, err)
			}
		}
	}
}

func (d *Dispatcher) handleFailure(notice Notice, err error) {
	notice.Attempt++
	if notice.Attempt > d.maxRetries {
		d.logger.Sugar().Errorw("notice exceeded retries",
			"notice_id", notice.ID, "audience", notice.Audience, "error", err)
		return
	}
	d.logger.Sugar().Warnw("notice delivery failed, retrying",
		"notice_id", notice.ID, "audience", notice.Audience, "attempt", notice.Attempt, "error", err)

	go func(n Notice) {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			if err := d.Enqueue(n); err != nil {
				d.logger.Sugar().Errorw("failed to requeue notice", "notice_id", n.ID, "error", err)
			}
		}
	}(notice)
}
