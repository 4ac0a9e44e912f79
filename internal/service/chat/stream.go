package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/king-app/king/backend/internal/model/chat"
	"github.com/king-app/king/backend/internal/observability"
)

// ReplyStream is a lazy, single-consumer sequence of reply fragments. Recv
// returns io.EOF after the last fragment, or the context error when the
// stream was cancelled. Callers must Close it.
type ReplyStream struct {
	p       *Pipeline
	sess    *session
	prompt  string
	release func()
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	start     sync.Once
	fragments chan string
	done      chan struct{}

	// written by the producer before fragments is closed
	err       error
	persisted *Task
}

func newReplyStream(ctx context.Context, p *Pipeline, sess *session, prompt string, release func()) *ReplyStream {
	sctx, cancel := context.WithCancel(ctx)
	return &ReplyStream{
		p:         p,
		sess:      sess,
		prompt:    prompt,
		release:   release,
		logger:    p.logger.With("session", sess.id, "user_id", sess.userID, "persona", sess.persona),
		ctx:       sctx,
		cancel:    cancel,
		fragments: make(chan string, p.cfg.Buffer),
		done:      make(chan struct{}),
	}
}

// SessionID identifies the stream in logs and client frames.
func (s *ReplyStream) SessionID() string {
	return s.sess.id
}

// State reports the lifecycle state of the stream.
func (s *ReplyStream) State() string {
	return s.sess.state()
}

// Recv returns the next fragment.
func (s *ReplyStream) Recv() (string, error) {
	s.start.Do(func() { go s.produce() })

	fragment, ok := <-s.fragments
	if !ok {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	if !s.sess.deliver(fragment) {
		// cancelled, and the partial text was already taken
		return "", s.ctx.Err()
	}
	return fragment, nil
}

// Close stops the stream and releases the provider connection. It waits
// for the producer to exit but never for the assistant turn write.
func (s *ReplyStream) Close() error {
	s.cancel()
	s.start.Do(s.abandon)
	<-s.done
	return nil
}

// Persistence returns the background write of the assistant turn, or nil
// when nothing was dispatched. It blocks until the producer exited, so call
// it after Recv returned an error or after Close.
func (s *ReplyStream) Persistence() *Task {
	<-s.done
	return s.persisted
}

// abandon finishes a stream that was closed before the first Recv.
func (s *ReplyStream) abandon() {
	defer close(s.done)
	defer close(s.fragments)

	s.err = context.Canceled
	if err := s.sess.fire(context.Background(), triggerCancel); err != nil {
		s.logger.Warn("session transition rejected", "err", err)
	}
	s.release()
	s.logger.Info("stream closed before start")
}

func (s *ReplyStream) produce() {
	defer close(s.done)
	defer close(s.fragments)

	s.p.metrics.StreamStarted()
	s.finish(s.pump())
}

// pump forwards provider output until EOF, failure or cancellation.
func (s *ReplyStream) pump() error {
	if err := s.sess.fire(s.ctx, triggerOpen); err != nil {
		return err
	}

	opened := time.Now()
	stream, err := s.p.provider.Stream(s.ctx, s.prompt, s.p.cfg.Params)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			s.logger.Warn("provider stream close failed", "err", cerr)
		}
	}()

	first := true
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		text, ok := res.Text()
		if !ok {
			s.p.metrics.FragmentDropped()
			s.logger.Warn("dropped result without text")
			continue
		}

		select {
		case s.fragments <- text:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
		s.sess.append(text)
		s.p.metrics.FragmentDelivered()
		if first {
			s.p.metrics.FirstFragment(time.Since(opened))
			first = false
		}
	}
}

func (s *ReplyStream) finish(err error) {
	elapsed := time.Since(s.sess.startedAt)

	switch {
	case err == nil:
		s.transition(triggerComplete)
		s.persisted = s.persist(s.sess.text(), s.release)
		s.p.metrics.StreamFinished(s.sess.persona, observability.OutcomeCompleted, elapsed)
		s.logger.Info("stream completed", "fragments", s.sess.fragments(), "elapsed", elapsed)

	case s.ctx.Err() != nil:
		s.err = s.ctx.Err()
		s.transition(triggerCancel)
		partial := s.sess.seal()
		if s.p.cfg.SavePartialOnCancel && partial != "" {
			s.persisted = s.persist(partial, s.release)
		} else {
			s.release()
		}
		s.p.metrics.StreamFinished(s.sess.persona, observability.OutcomeCancelled, elapsed)
		s.logger.Info("stream cancelled", "fragments", s.sess.fragments(), "partial_saved", s.persisted != nil)

	default:
		s.transition(triggerFail)
		s.release()
		s.logger.Error("stream failed", "err", err, "fragments", s.sess.fragments())
		s.p.metrics.StreamFinished(s.sess.persona, observability.OutcomeFailed, elapsed)

		select {
		case s.fragments <- ErrorFragmentPrefix + err.Error():
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
		}
	}
}

func (s *ReplyStream) transition(trigger string) {
	if err := s.sess.fire(context.Background(), trigger); err != nil {
		s.logger.Warn("session transition rejected", "trigger", trigger, "err", err)
	}
}

// persist dispatches the assistant turn write. release runs before the task
// reports done, whether or not the job got a slot, so a serialized user
// cannot start the next reply too early and is never locked out.
func (s *ReplyStream) persist(content string, release func()) *Task {
	userID := s.sess.userID
	job := func(ctx context.Context) error {
		err := s.p.history.SaveChatHistory(ctx, userID, chat.RoleAssistant, content, chat.KindMessage)
		s.p.metrics.Persisted(err)
		if err != nil {
			s.logger.Error("assistant turn not saved", "err", err)
			return err
		}
		s.logger.Info("assistant turn saved", "chars", len(content))
		return nil
	}
	return s.p.dispatcher.GoFinally("persist-assistant-turn", job, func(err error) {
		if errors.Is(err, ErrJobNotStarted) {
			s.p.metrics.Persisted(err)
			s.logger.Error("assistant turn not saved", "err", err)
		}
		release()
	})
}
