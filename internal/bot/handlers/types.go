// Package handlers implements the control-bot command, callback and
// conversation-state handlers.
package handlers

import telebot "gopkg.in/telebot.v3"

// Handler processes a command or a state-driven text reply.
type Handler func(c telebot.Context) error

// CallbackHandler processes an inline keyboard callback.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(Handler) Handler
