package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aysunhpl/bigob/internal/chat"
)

const (
	defaultInterval    = 2 * time.Second
	defaultMaxAttempts = 30
)

// State is the terminal outcome of a poll session.
type State string

const (
	StateDelivered State = "delivered"
	StateExhausted State = "exhausted"
	StateCancelled State = "cancelled"
)

// Result carries the terminal state; Reply is set only for StateDelivered.
type Result struct {
	State State
	Reply chat.ReplyRecord
}

// CheckFunc reads the current latest reply for a topic. ok=false means the
// topic has no replies yet. A returned error is treated as transient: the
// session swallows it and the attempt still counts, so a persistently failing
// source exhausts rather than loops forever.
type CheckFunc func(ctx context.Context, topicID int64) (chat.ReplyRecord, bool, error)

// Controller runs bounded, cancellable poll loops, at most one per topic.
// Starting a session for a topic that already has a live one cancels the
// previous session first, so a topic never surfaces the same reply twice.
type Controller struct {
	check       CheckFunc
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	mu     sync.Mutex
	active map[int64]*Session
}

// NewController creates a Controller. Non-positive interval or maxAttempts
// fall back to the defaults (2s, 30 attempts).
func NewController(check CheckFunc, interval time.Duration, maxAttempts int) *Controller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Controller{
		check:       check,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      slog.Default(),
		active:      make(map[int64]*Session),
	}
}

// Session is one live poll loop. Wait blocks until the loop reaches a
// terminal state; Cancel stops it cooperatively at the next tick boundary.
type Session struct {
	topicID  int64
	lastSeen int64
	cancel   context.CancelFunc
	done     chan struct{}
	result   Result
}

// Start begins polling for a reply newer than lastSeen (pass 0 to accept any
// reply). The previous session for the topic, if any, is cancelled.
func (c *Controller) Start(ctx context.Context, topicID, lastSeen int64) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		topicID:  topicID,
		lastSeen: lastSeen,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	if prev := c.active[topicID]; prev != nil {
		prev.cancel()
	}
	c.active[topicID] = s
	c.mu.Unlock()

	go c.run(sctx, s)
	return s
}

func (c *Controller) run(ctx context.Context, s *Session) {
	defer close(s.done)
	defer c.release(s)
	defer s.cancel()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			s.result = Result{State: StateCancelled}
			return
		case <-ticker.C:
		}

		rec, ok, err := c.check(ctx, s.topicID)
		if err != nil {
			if ctx.Err() != nil {
				s.result = Result{State: StateCancelled}
				return
			}
			// Transient; the attempt is spent regardless.
			c.logger.Debug("poll check failed", "topic_id", s.topicID, "attempt", attempt, "error", err)
			continue
		}

		if ok && (s.lastSeen == 0 || rec.ReceivedAt > s.lastSeen) {
			s.result = Result{State: StateDelivered, Reply: rec}
			return
		}
	}

	s.result = Result{State: StateExhausted}
}

// release removes the session from the active map unless it has already been
// replaced by a newer one for the same topic.
func (c *Controller) release(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[s.topicID] == s {
		delete(c.active, s.topicID)
	}
}

// Cancel stops the session. Safe to call at any time, including after the
// session has reached a terminal state.
func (s *Session) Cancel() {
	s.cancel()
}

// Wait blocks until the session is terminal and returns its Result.
func (s *Session) Wait() Result {
	<-s.done
	return s.result
}

// Done exposes the session's completion channel for select-based callers.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
