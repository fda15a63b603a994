package ledger

import (
	"context"
	"log/slog"
)

// Notification reports the outcome of a settlement action.
// Err is nil on success.
type Notification struct {
	GroupID      string
	SettlementID string
	Actor        string
	Message      string
	Err          error
}

// Notifier delivers notifications to members.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the default slog logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) {
	if n.Err != nil {
		slog.WarnContext(ctx, "Settlement action failed",
			"group_id", n.GroupID,
			"settlement_id", n.SettlementID,
			"user_id", n.Actor,
			"message", n.Message,
			"error", n.Err,
		)
		return
	}
	slog.InfoContext(ctx, "Settlement updated",
		"group_id", n.GroupID,
		"settlement_id", n.SettlementID,
		"user_id", n.Actor,
		"message", n.Message,
	)
}
