package streaming

import (
	"context"
	"log/slog"

	"github.com/seanmmay/b0t-sub000/internal/store"
)

// PublishingLog is a store.RunEventLog that publishes every event to a hub
// once the wrapped log has persisted it, so subscribers see sequence numbers.
type PublishingLog struct {
	store.RunEventLog
	hub    EventHub
	logger *slog.Logger
}

var _ store.RunEventLog = (*PublishingLog)(nil)

// NewPublishingLog wraps log. A nil logger uses slog.Default.
func NewPublishingLog(log store.RunEventLog, hub EventHub, logger *slog.Logger) *PublishingLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishingLog{RunEventLog: log, hub: hub, logger: logger}
}

// AppendRunEvent persists ev, then publishes it. Publish failures never
// fail the append.
func (p *PublishingLog) AppendRunEvent(ctx context.Context, ev *store.RunEvent) error {
	if err := p.RunEventLog.AppendRunEvent(ctx, ev); err != nil {
		return err
	}
	if err := p.hub.Publish(ctx, ev); err != nil {
		p.logger.Debug("run event not published", "run_id", ev.RunID, "event_type", ev.Type, "error", err)
	}
	return nil
}
