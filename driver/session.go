package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"memwatch/memory"
)

// ErrNotAttached means no target process is available. It is transient:
// attaching is retried.
var ErrNotAttached = errors.New("not attached")

// Handle is the capability an attach yields: memory access plus liveness.
type Handle interface {
	memory.Readable
	IsOpen() bool
	Close() error
}

// Model is a memory model: a group of watchers invalidated together at the
// start of every tick.
type Model interface {
	Invalidate()
}

// Session is the context of one attach. Everything built from its Handle
// borrows it and must not outlive Close.
type Session struct {
	ID         uuid.UUID
	Name       string
	AttachedAt time.Time

	handle Handle
	model  Model

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps a freshly attached handle.
func NewSession(name string, h Handle) *Session {
	return &Session{
		ID:         uuid.New(),
		Name:       name,
		AttachedAt: time.Now(),
		handle:     h,
	}
}

// Memory returns the session's Readable.
func (s *Session) Memory() memory.Readable { return s.handle }

// Handle returns the underlying handle.
func (s *Session) Handle() Handle { return s.handle }

// Open reports whether the target is still alive.
func (s *Session) Open() bool { return s.handle.IsOpen() }

// SetModel attaches the memory model built for this session.
func (s *Session) SetModel(m Model) { s.model = m }

// Model returns the memory model, or nil.
func (s *Session) Model() Model { return s.model }

// Close drops the model and releases the handle. It is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.model = nil
		s.closeErr = s.handle.Close()
	})
	return s.closeErr
}

// UntilCloses returns a context cancelled when parent is done or the target
// stops being open, checked every interval.
func (s *Session) UntilCloses(parent context.Context, interval time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if !s.Open() {
					cancel()
					return
				}
			}
		}
	}()
	return ctx, cancel
}

// Attacher finds and attaches to the target. It returns ErrNotAttached
// while no target is running.
type Attacher interface {
	Attach(ctx context.Context) (*Session, error)
}

// AttacherFunc adapts a function to Attacher.
type AttacherFunc func(ctx context.Context) (*Session, error)

func (f AttacherFunc) Attach(ctx context.Context) (*Session, error) { return f(ctx) }
