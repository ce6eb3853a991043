package streaming

import (
	"context"

	"github.com/seanmmay/b0t-sub000/internal/store"
)

// EventFilter specifies which run events a subscriber wants to receive.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for live run events.
type EventHub interface {
	Publish(ctx context.Context, event *store.RunEvent) error
	// Subscribe returns a channel of matching events and a cancel func that
	// removes the subscription and closes the channel.
	Subscribe(ctx context.Context, filter EventFilter) (<-chan *store.RunEvent, func(), error)
}
