package persistence

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// session holds the success events of its mutations until it commits. A
// rollback discards them.
type session struct {
	Session
	engine *Engine

	mu      sync.Mutex
	pending []PersistenceEvent
}

func (s *session) hold(event PersistenceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, event)
}

func (s *session) Commit(ctx context.Context) error {
	if err := s.Session.Commit(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, event := range pending {
		s.engine.emitEvent(event)
	}
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return s.Session.Rollback(ctx)
}

// Open starts a session. The caller owns it and must Commit or Rollback.
// Success events of mutations made in the session are emitted on commit.
func (e *Engine) Open(ctx context.Context) (Session, error) {
	sess, err := e.db.StartTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return &session{Session: sess, engine: e}, nil
}

// Transact runs fn inside a new session. The session is committed when fn
// returns nil and rolled back otherwise, including when fn panics.
func (e *Engine) Transact(ctx context.Context, fn func(sess Session) error) (err error) {
	sess, err := e.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			e.rollback(ctx, sess)
			panic(r)
		}
	}()

	if err = fn(sess); err != nil {
		e.rollback(ctx, sess)
		return err
	}
	if err = sess.Commit(ctx); err != nil {
		e.rollback(ctx, sess)
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

func (e *Engine) rollback(ctx context.Context, sess Session) {
	if err := sess.Rollback(ctx); err != nil {
		e.logger.Warn("Failed to roll back session", zap.Error(err))
	}
}

// withSession runs fn in the caller's session, or in a session of its own
// when sess is nil. An owned session is committed after a successful mutation
// and rolled back in every other case. A caller's session is never committed.
func (e *Engine) withSession(ctx context.Context, sess Session, mutating bool, fn func(s Session) error) error {
	if sess != nil {
		return fn(sess)
	}
	if mutating {
		return e.Transact(ctx, fn)
	}

	s, err := e.Open(ctx)
	if err != nil {
		return err
	}
	defer e.rollback(ctx, s)
	return fn(s)
}
