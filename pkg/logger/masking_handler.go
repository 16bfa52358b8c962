package logger

import (
	"context"
	"log/slog"
	"strings"
)

// Attribute keys whose values never reach a log sink. Login flows carry
// phones, codes and 2FA passwords through handler state, so the set is wider
// than the usual token/secret pair.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"api_hash":      {},
	"authorization": {},
	"phone":         {},
	"otp":           {},
	"session":       {},
}

const maskedValue = "***"

// MaskingHandler replaces sensitive attribute values before delegating to
// the wrapped handler.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for i, attr := range attrs {
		if sensitive(attr.Key) {
			attrs[i].Value = slog.StringValue(maskedValue)
		}
	}
	return &MaskingHandler{next: h.next.WithAttrs(attrs)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		if sensitive(attr.Key) {
			attr.Value = slog.StringValue(maskedValue)
		}
		masked.AddAttrs(attr)
		return true
	})
	return h.next.Handle(ctx, masked)
}

func sensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}
