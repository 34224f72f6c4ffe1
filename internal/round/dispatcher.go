package round

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"go.uber.org/zap"
)

// ErrOutOfOrder is returned when an event is older than the one before it.
var ErrOutOfOrder = errors.New("event out of chronological order")

// Subscriber consumes the events of a round, phase by phase.
type Subscriber interface {
	// PhaseStart is called before the first event of a phase.
	PhaseStart(phase ctf.Phase, state *ctf.RoundState) error

	// HandleEvent is called once per event, in log order.
	HandleEvent(ev *ctf.Event, phase ctf.Phase, state *ctf.RoundState) (ctf.HandlerRequest, error)

	// PhaseEnd is called after the last event of a phase.
	PhaseEnd(phase ctf.Phase, state *ctf.RoundState) error
}

// Dispatcher feeds the events of a round to its subscribers. Subscribers are
// driven in registration order and synchronously; the first error aborts the round.
type Dispatcher struct {
	logger      *zap.Logger
	subscribers []Subscriber
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Register adds a subscriber.
func (d *Dispatcher) Register(sub Subscriber) {
	if sub == nil {
		return
	}
	d.subscribers = append(d.subscribers, sub)
}

// Len returns the number of registered subscribers.
func (d *Dispatcher) Len() int {
	return len(d.subscribers)
}

// Run drives every subscriber through the main phase of a round: PhaseStart,
// one HandleEvent per event, then PhaseEnd. The events are then replayed once
// more for the post-main phase, which has no start or end signal.
func (d *Dispatcher) Run(ctx context.Context, state *ctf.RoundState, events []*ctf.Event) error {
	for _, sub := range d.subscribers {
		if err := sub.PhaseStart(ctf.PhaseMain, state); err != nil {
			return fmt.Errorf("start %s phase: %w", ctf.PhaseMain, err)
		}
	}

	if err := d.dispatch(ctx, ctf.PhaseMain, state, events); err != nil {
		return err
	}

	for _, sub := range d.subscribers {
		if err := sub.PhaseEnd(ctf.PhaseMain, state); err != nil {
			return fmt.Errorf("end %s phase: %w", ctf.PhaseMain, err)
		}
	}

	if err := d.dispatch(ctx, ctf.PhasePostMain, state, events); err != nil {
		return err
	}

	if d.logger != nil {
		d.logger.Debug("round dispatched",
			zap.String("map", state.MapName),
			zap.Int("events", len(events)),
			zap.Int("subscribers", len(d.subscribers)),
		)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, phase ctf.Phase, state *ctf.RoundState, events []*ctf.Event) error {
	last := 0
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && ev.GameTime < last {
			return ctf.NewLogicError(fmt.Errorf("%w: line %d at %ds after %ds", ErrOutOfOrder, ev.LineNumber, ev.GameTime, last))
		}
		last = ev.GameTime
		for _, sub := range d.subscribers {
			if _, err := sub.HandleEvent(ev, phase, state); err != nil {
				return fmt.Errorf("%s phase, %s event at line %d: %w", phase, ev.Type, ev.LineNumber, err)
			}
		}
	}
	return nil
}
