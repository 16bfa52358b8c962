package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aurafarm/farm-bot/internal/approval"
	"github.com/aurafarm/farm-bot/internal/farm"
	"github.com/aurafarm/farm-bot/internal/jobs"
)

// ApprovalCleanupHandler sweeps lapsed approvals, switches the affected
// users' farming off and tells them why.
type ApprovalCleanupHandler struct {
	approvals approval.Service
	engine    *farm.Engine
	notifier  farm.Notifier
	log       *slog.Logger
}

func NewApprovalCleanupHandler(approvals approval.Service, engine *farm.Engine, notifier farm.Notifier, log *slog.Logger) *ApprovalCleanupHandler {
	return &ApprovalCleanupHandler{
		approvals: approvals,
		engine:    engine,
		notifier:  notifier,
		log:       log,
	}
}

func (h *ApprovalCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.ApprovalCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "approval cleanup: failed to decode payload",
				slog.String("task_type", t.Type()), slog.Any("error", err))
		}
		return err
	}

	ids, err := h.approvals.CleanupExpired(ctx)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "approval cleanup failed", slog.Any("error", err))
		}
		return err
	}

	for _, id := range ids {
		if session := h.engine.Registry().Get(id); session != nil {
			session.SetEnabled(false)
		}
		if h.notifier != nil {
			h.notifier.Notify(ctx, id, "⏳ Your approval has expired. Contact an admin to renew access.")
		}
	}

	if h.log != nil && len(ids) > 0 {
		h.log.InfoContext(ctx, "approval cleanup finished", slog.Int("revoked", len(ids)))
	}
	return nil
}

// SessionAuditHandler compares stored session blobs with live connections so
// operators can spot users that failed to reconnect after a restart.
type SessionAuditHandler struct {
	stored  SessionCounter
	engine  *farm.Engine
	log     *slog.Logger
}

// SessionCounter is the slice of the session repository the audit needs.
type SessionCounter interface {
	Count(ctx context.Context) (int64, error)
}

func NewSessionAuditHandler(stored SessionCounter, engine *farm.Engine, log *slog.Logger) *SessionAuditHandler {
	return &SessionAuditHandler{
		stored: stored,
		engine: engine,
		log:    log,
	}
}

func (h *SessionAuditHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.SessionAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	stored, err := h.stored.Count(ctx)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "session audit: count failed", slog.Any("error", err))
		}
		return err
	}

	live := int64(h.engine.Registry().Len())
	if h.log != nil {
		h.log.InfoContext(ctx, "session audit",
			slog.Int64("stored_sessions", stored),
			slog.Int64("live_sessions", live),
			slog.Int64("disconnected", stored-live),
		)
	}
	return nil
}
