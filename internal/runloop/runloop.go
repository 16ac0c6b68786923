// Package runloop owns the goroutine the tree models live on.
//
// Models are not safe for concurrent use. The Loop receives every backend
// result from a Notifier and every call made on behalf of HTTP handlers, and
// executes them one at a time.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/logger"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("run loop stopped")

// Handler consumes backend results. HandleEvent returns false for values it
// does not recognize.
type Handler interface {
	HandleEvent(ev any) bool
}

type call struct {
	fn   func() error
	done chan error
}

// Loop dispatches backend results and calls on a single goroutine.
type Loop struct {
	notifier backend.Notifier
	handlers []Handler
	logger   *slog.Logger
	calls    chan call

	stopped   chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
}

// New creates a loop delivering every result of notifier to each handler.
func New(notifier backend.Notifier, log *slog.Logger, handlers ...Handler) *Loop {
	return &Loop{
		notifier: notifier,
		handlers: handlers,
		logger:   logger.Component(log, "run_loop"),
		calls:    make(chan call),
		stopped:  make(chan struct{}),
	}
}

// Run processes results and calls until ctx is cancelled or the notifier
// channel is closed. onStart, when not nil, runs on the loop before anything
// else, which is where models are started.
func (l *Loop) Run(ctx context.Context, onStart func()) error {
	started := false
	l.startOnce.Do(func() { started = true })
	if !started {
		return errors.New("run loop already running")
	}
	defer l.stopOnce.Do(func() { close(l.stopped) })

	l.logger.Info("run loop starting", "handlers", len(l.handlers))
	if onStart != nil {
		onStart()
	}

	events := l.notifier.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				l.logger.Info("notifier closed, run loop stopping")
				return nil
			}
			l.dispatch(ev)

		case c := <-l.calls:
			c.done <- l.invoke(c.fn)

		case <-ctx.Done():
			l.logger.Info("run loop stopping")
			return nil
		}
	}
}

// Do runs fn on the loop and returns its error. It fails with ErrStopped when
// the loop is not running and with the context error when ctx ends first.
// fn may still run after ctx ended if it was already handed over.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	c := call{fn: fn, done: make(chan error, 1)}

	select {
	case l.calls <- c:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query runs fn on the loop and returns its result. On any error the result
// is the zero T, including when ctx ends while fn is still running.
func Query[T any](ctx context.Context, l *Loop, fn func() (T, error)) (T, error) {
	result := make(chan T, 1)
	err := l.Do(ctx, func() error {
		out, err := fn()
		result <- out
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return <-result, nil
}

func (l *Loop) dispatch(ev any) {
	handled := false
	for _, h := range l.handlers {
		if h.HandleEvent(ev) {
			handled = true
		}
	}
	if !handled {
		l.logger.Debug("unhandled backend result", "type", fmt.Sprintf("%T", ev))
	}
}

// invoke runs fn, turning a panic into an error so one bad call cannot take
// the models down.
func (l *Loop) invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in run loop call", "panic", r)
			err = fmt.Errorf("run loop call panicked: %v", r)
		}
	}()
	return fn()
}
