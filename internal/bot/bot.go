package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/aurafarm/farm-bot/internal/approval"
	"github.com/aurafarm/farm-bot/internal/bot/handlers"
	"github.com/aurafarm/farm-bot/internal/bot/keyboard"
	apperrors "github.com/aurafarm/farm-bot/internal/errors"
	"github.com/aurafarm/farm-bot/internal/farm"
	"github.com/aurafarm/farm-bot/internal/ratelimit"
	"github.com/aurafarm/farm-bot/internal/repository"
	"github.com/aurafarm/farm-bot/internal/settings"
	"github.com/aurafarm/farm-bot/internal/state"
	"github.com/aurafarm/farm-bot/internal/userbot"
	"github.com/aurafarm/farm-bot/pkg/config"
)

// Bot wraps telebot.Bot with the router, FSM dispatcher, and prompt hub for
// the control surface.
type Bot struct {
	telebot    *telebot.Bot
	cfg        config.Config
	log        *slog.Logger
	fsm        state.StateMachine
	router     *Router
	dispatcher *Dispatcher
	keyboard   *keyboard.Builder
	prompts    *PromptHub
	errHandler *apperrors.Handler
}

// Deps carries the services wired into command handlers.
type Deps struct {
	Manager   *userbot.Manager
	Approvals approval.Service
	Admins    repository.AdminRepository
	Sessions  repository.SessionRepository
	Settings  settings.Service
	Registry  *farm.Registry
}

// New builds the control bot and its middleware chain. Command routes are
// registered separately via RegisterRoutes once the userbot manager exists.
func New(cfg config.Config, log *slog.Logger, fsm state.StateMachine, limiter ratelimit.Limiter) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	tbSettings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		tbSettings.Poller = &telebot.Webhook{
			Listen: cfg.Server.Port,
		}
	} else {
		tbSettings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(tbSettings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	dispatcher := NewDispatcher(fsm, log)
	router := NewRouter(dispatcher, log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	prompts := NewPromptHub(fsm, log)
	prompts.Bind(tb)

	b := &Bot{
		telebot:    tb,
		cfg:        cfg,
		log:        log,
		fsm:        fsm,
		router:     router,
		dispatcher: dispatcher,
		keyboard:   keyboard.NewBuilder(log),
		prompts:    prompts,
		errHandler: errHandler,
	}

	router.Use(RecoveryMiddleware(log, errHandler))
	router.Use(RateLimitMiddleware(limiter, cfg.Bot.RateLimit, cfg.Bot.RateWindow, log))
	router.Use(ErrorHandlingMiddleware(errHandler))
	router.Use(LoggingMiddleware(log))
	router.Use(MetricsMiddleware)

	return b, nil
}

// Prompts exposes the login prompt hub for the userbot manager.
func (b *Bot) Prompts() *PromptHub {
	return b.prompts
}

// Telebot exposes the underlying bot for notifications and health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	b.log.Info("stopping control bot")
	b.telebot.Stop()
}

// RegisterRoutes wires commands, callbacks, and FSM state handlers.
//
// baseCtx scopes the userbot clients spawned by login commands; it should be
// the application context, not a request context.
func (b *Bot) RegisterRoutes(baseCtx context.Context, deps Deps) {
	gate := NewGate(deps.Approvals, deps.Admins, b.cfg.Bot.OwnerID, b.log)

	// Open commands.
	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(b.fsm, b.log))
	b.router.RegisterCommand(CommandHelp, handlers.NewHelpHandler(b.keyboard))
	b.router.RegisterCommand(CommandPing, handlers.NewPingHandler())
	b.router.RegisterCommand(CommandApprovalStatus, handlers.NewApprovalStatusHandler(deps.Approvals))

	// Farming commands, approval-gated.
	b.router.RegisterCommand(CommandSetup, gate.Approved(
		handlers.NewSetupHandler(baseCtx, deps.Manager, deps.Sessions, b.fsm, b.log)))
	b.router.RegisterCommand(CommandCancel, gate.Approved(
		handlers.NewCancelHandler(deps.Manager, b.fsm, b.log)))
	b.router.RegisterCommand(CommandDelete, gate.Approved(
		handlers.NewDeleteHandler(deps.Manager, deps.Sessions, b.fsm, b.log)))
	b.router.RegisterCommand(CommandToggle, gate.Approved(
		handlers.NewToggleHandler(deps.Manager, b.keyboard)))
	b.router.RegisterCommand(CommandRate, gate.Approved(
		handlers.NewRateHandler(deps.Settings, b.keyboard)))
	b.router.RegisterCommand(CommandGroupNoti, gate.Approved(
		handlers.NewGroupNotiHandler(deps.Settings, b.fsm, b.keyboard)))
	b.router.RegisterCommand(CommandDebug, gate.Approved(
		handlers.NewDebugHandler(deps.Manager)))

	// Admin commands.
	b.router.RegisterCommand(CommandApprove, gate.AdminOnly(
		handlers.NewApproveHandler(deps.Approvals, b.log)))
	b.router.RegisterCommand(CommandUnapprove, gate.AdminOnly(
		handlers.NewUnapproveHandler(deps.Approvals)))
	b.router.RegisterCommand(CommandApproveList, gate.AdminOnly(
		handlers.NewApproveListHandler(deps.Approvals)))
	b.router.RegisterCommand(CommandStats, gate.AdminOnly(
		handlers.NewStatsHandler(deps.Approvals, deps.Admins, deps.Sessions, deps.Registry)))

	// Owner commands.
	b.router.RegisterCommand(CommandPromote, gate.OwnerOnly(
		handlers.NewPromoteHandler(deps.Admins, b.log)))
	b.router.RegisterCommand(CommandDemote, gate.OwnerOnly(
		handlers.NewDemoteHandler(deps.Admins, b.log)))
	b.router.RegisterCommand(CommandAdminList, gate.OwnerOnly(
		handlers.NewAdminListHandler(deps.Admins)))

	// Inline callbacks.
	b.router.RegisterCallback(keyboard.ActionHelpUser, handlers.NewHelpCallback())
	b.router.RegisterCallback(keyboard.ActionHelpAdmin, handlers.NewHelpCallback())
	b.router.RegisterCallback(keyboard.ActionFarmOn+keyboard.CallbackDataSeparator,
		handlers.NewToggleCallback(deps.Manager, gate, b.log))
	b.router.RegisterCallback(keyboard.ActionFarmOff+keyboard.CallbackDataSeparator,
		handlers.NewToggleCallback(deps.Manager, gate, b.log))
	b.router.RegisterCallback(keyboard.ActionRatePearl+keyboard.CallbackDataSeparator,
		handlers.NewRateCallback(deps.Settings, b.fsm, gate, b.log))
	b.router.RegisterCallback(keyboard.ActionRateTicket+keyboard.CallbackDataSeparator,
		handlers.NewRateCallback(deps.Settings, b.fsm, gate, b.log))
	b.router.RegisterCallback("gcnoti_",
		handlers.NewGroupNotiCallback(deps.Settings, b.fsm, gate, b.log))

	// Conversation states.
	b.dispatcher.RegisterStateHandler(state.StateAwaitingPhone,
		handlers.NewPhoneStateHandler(baseCtx, deps.Manager, b.fsm, b.log))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingCode,
		handlers.NewCodeStateHandler(b.prompts, b.fsm, b.log))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingPassword,
		handlers.NewPasswordStateHandler(b.prompts, b.fsm, b.log))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingGroupID,
		handlers.NewGroupIDStateHandler(deps.Settings, b.fsm, b.keyboard, b.log))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingPearlPrice,
		handlers.NewPearlPriceStateHandler(deps.Settings, b.fsm, b.log))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingTicketPrice,
		handlers.NewTicketPriceStateHandler(deps.Settings, b.fsm, b.log))

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
}
