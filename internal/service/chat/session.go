package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
)

// Stream lifecycle states.
const (
	StatePending   = "pending"
	StateStreaming = "streaming"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

const (
	triggerOpen     = "open"
	triggerComplete = "complete"
	triggerFail     = "fail"
	triggerCancel   = "cancel"
)

// session tracks one reply from provider open to termination. acc holds
// everything the provider produced; delivered counts the bytes of it the
// consumer actually received.
type session struct {
	id        string
	userID    int64
	persona   string
	startedAt time.Time

	fsm *stateless.StateMachine

	mu        sync.Mutex
	acc       strings.Builder
	count     int
	delivered int
	sealed    bool
}

func newSession(userID int64, persona string) *session {
	s := &session{
		id:        uuid.NewString(),
		userID:    userID,
		persona:   persona,
		startedAt: time.Now(),
		fsm:       stateless.NewStateMachine(StatePending),
	}

	s.fsm.Configure(StatePending).
		Permit(triggerOpen, StateStreaming).
		Permit(triggerFail, StateFailed).
		Permit(triggerCancel, StateCancelled)

	s.fsm.Configure(StateStreaming).
		Permit(triggerComplete, StateCompleted).
		Permit(triggerFail, StateFailed).
		Permit(triggerCancel, StateCancelled)

	// Terminal states swallow late triggers.
	for _, st := range []string{StateCompleted, StateFailed, StateCancelled} {
		s.fsm.Configure(st).
			Ignore(triggerComplete).
			Ignore(triggerFail).
			Ignore(triggerCancel)
	}
	return s
}

func (s *session) fire(ctx context.Context, trigger string) error {
	if err := s.fsm.FireCtx(ctx, trigger); err != nil {
		return fmt.Errorf("session %s: %w", s.id, err)
	}
	return nil
}

func (s *session) state() string {
	st, _ := s.fsm.State(context.Background())
	name, _ := st.(string)
	return name
}

func (s *session) append(fragment string) {
	s.mu.Lock()
	s.acc.WriteString(fragment)
	s.count++
	s.mu.Unlock()
}

// deliver records that fragment reached the consumer. It reports false once
// the session was sealed, and the fragment must then be withheld.
func (s *session) deliver(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return false
	}
	s.delivered += len(fragment)
	return true
}

// seal stops further delivery and returns the text the consumer received.
func (s *session) seal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	text := s.acc.String()
	return text[:min(s.delivered, len(text))]
}

func (s *session) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.String()
}

func (s *session) fragments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
