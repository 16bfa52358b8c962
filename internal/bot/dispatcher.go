package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/bot/handlers"
	"github.com/aurafarm/farm-bot/internal/state"
)

// Dispatcher resolves the sender's conversation state and hands plain-text
// updates to the handler registered for it (phone, code, password, prices,
// group id).
type Dispatcher struct {
	fsm     state.StateMachine
	log     *slog.Logger
	mu      sync.RWMutex
	byState map[state.State]handlers.Handler
}

func NewDispatcher(fsm state.StateMachine, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		fsm:     fsm,
		log:     log,
		byState: make(map[state.State]handlers.Handler),
	}
}

func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byState[s] = h
}

// HandlerFor returns the handler registered for the sender's current state,
// or nil when there is none. A missing state record counts as idle.
func (d *Dispatcher) HandlerFor(c telebot.Context) (handlers.Handler, error) {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return nil, nil
	}

	current := state.StateIdle
	stored, err := d.fsm.GetState(context.Background(), c.Sender().ID)
	if err != nil {
		if !errors.Is(err, state.ErrStateNotFound) {
			return nil, err
		}
	} else if stored != nil {
		current = stored.CurrentState
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byState[current], nil
}
