package dispatcher

import (
	"context"

	"workledger/internal/domain/event"
)

// Handler processes change-feed events.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo carries handler metadata for registration and debugging.
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
