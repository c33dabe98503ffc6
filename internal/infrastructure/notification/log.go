package notification

import (
	"context"

	appnotify "github.com/Zhima-Mochi/minishop-storefront/internal/application/notification"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
)

// LogNotifier records notifications in the structured log instead of sending them.
type LogNotifier struct {
	log observability.Logger
}

func NewLogNotifier(logger observability.Logger) *LogNotifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogNotifier{log: logger.With(observability.F("component", "notifier"))}
}

func (n *LogNotifier) Notify(ctx context.Context, m appnotify.Message) error {
	logctx.FromOr(ctx, n.log).Info("notification_sent",
		observability.F("user_id", m.UserID),
		observability.F("topic", m.Topic),
		observability.F("subject", m.Subject),
		observability.F("ref", m.Ref),
	)
	return nil
}
