package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fortresslogs/ctfround/internal/report"
	"go.uber.org/zap"
)

// Listener receives every published report.
type Listener func(ctx context.Context, r *report.Report) error

type namedListener struct {
	handle   int
	name     string
	callback Listener
}

// Bus delivers finished reports to their consumers (archive, database, live feed).
// Listeners run synchronously in subscription order; a failing listener does not
// stop the others.
type Bus struct {
	logger     *zap.Logger
	mu         sync.RWMutex
	listeners  []namedListener
	nextHandle int
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a listener and returns its handle.
func (b *Bus) Subscribe(name string, listener Listener) int {
	if listener == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	handle := b.nextHandle
	b.nextHandle++
	b.listeners = append(b.listeners, namedListener{handle: handle, name: name, callback: listener})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (b *Bus) Unsubscribe(handle int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.listeners {
		if b.listeners[i].handle == handle {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers r to every listener and joins their errors.
func (b *Bus) Publish(ctx context.Context, r *report.Report) error {
	b.mu.RLock()
	listeners := make([]namedListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l.callback(ctx, r); err != nil {
			if b.logger != nil {
				b.logger.Error("report listener failed",
					zap.String("listener", l.name),
					zap.String("report_id", r.ID.String()),
					zap.Error(err),
				)
			}
			errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
		}
	}
	return errors.Join(errs...)
}
