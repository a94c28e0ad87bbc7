package dispatcher

import (
	"context"

	"github.com/garyjia/procurement-hub/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// AllEvents is the subscription key for handlers that receive every event type
const AllEvents event.Type = "*"

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string     `json:"name"`
	EventType   event.Type `json:"event_type"`
	Handler     Handler    `json:"-"`
	Description string     `json:"description,omitempty"`
	// Ordered handlers receive asynchronous events one at a time in dispatch order
	Ordered bool `json:"ordered,omitempty"`

	queue chan queuedEvent
}

type queuedEvent struct {
	ctx context.Context
	evt *event.Event
}
