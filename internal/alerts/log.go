package alerts

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/quickquid/internal/marketplace"
)

// LogNotifier writes events to the application log. It is the default
// driver when no broker is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Publish(_ context.Context, ev marketplace.Event) error {
	logEvent(n.log, ev)
	return nil
}

func logEvent(logger zerolog.Logger, ev marketplace.Event) {
	logger.Info().
		Str("event", string(ev.Type)).
		Str("entity_id", ev.EntityID).
		Str("recipient", Recipient(ev)).
		Time("occurred_at", ev.OccurredAt).
		Msg("marketplace event")
}
