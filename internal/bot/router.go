package bot

import (
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/bot/handlers"
)

// Router maps commands and callback prefixes to handlers and falls through
// to the state dispatcher for free-form text.
type Router struct {
	mu          sync.RWMutex
	commands    map[string]handlers.Handler
	callbacks   map[string]handlers.CallbackHandler
	middlewares []handlers.Middleware
	dispatcher  *Dispatcher
	log         *slog.Logger
}

func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		commands:   make(map[string]handlers.Handler),
		callbacks:  make(map[string]handlers.CallbackHandler),
		dispatcher: dispatcher,
		log:        log,
	}
}

func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback matches callback data by prefix, so "on:" catches
// "on:42".
func (r *Router) RegisterCallback(prefix string, h handlers.CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = h
}

// Use appends a middleware. Middlewares wrap every routed handler in
// registration order.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route is registered with telebot for OnText and OnCallback.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	if cb := c.Callback(); cb != nil {
		return r.routeCallback(c, strings.TrimPrefix(cb.Data, "\f"))
	}
	return r.routeText(c)
}

func (r *Router) routeCallback(c telebot.Context, data string) error {
	r.mu.RLock()
	var match handlers.CallbackHandler
	for prefix, h := range r.callbacks {
		if strings.HasPrefix(data, prefix) {
			match = h
			break
		}
	}
	r.mu.RUnlock()

	if match == nil {
		r.log.Info("unrouted callback", slog.String("data", data))
		return nil
	}
	return r.run(handlers.Handler(match), c)
}

func (r *Router) routeText(c telebot.Context) error {
	text := c.Text()
	if strings.HasPrefix(text, "/") {
		r.mu.RLock()
		h := r.commands[commandName(text)]
		r.mu.RUnlock()
		if h != nil {
			return r.run(h, c)
		}
	}

	if r.dispatcher == nil {
		return nil
	}
	h, err := r.dispatcher.HandlerFor(c)
	if err != nil || h == nil {
		return err
	}
	return r.run(h, c)
}

// run wraps the handler with the middleware chain and executes it.
func (r *Router) run(h handlers.Handler, c telebot.Context) error {
	r.mu.RLock()
	chain := make([]handlers.Middleware, len(r.middlewares))
	copy(chain, r.middlewares)
	r.mu.RUnlock()

	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h(c)
}

// commandName strips arguments and the @botname suffix from a command.
func commandName(text string) string {
	cmd := text
	if idx := strings.IndexByte(cmd, ' '); idx != -1 {
		cmd = cmd[:idx]
	}
	if idx := strings.IndexByte(cmd, '@'); idx != -1 {
		cmd = cmd[:idx]
	}
	return cmd
}
