package port

import (
	"context"

	"workledger/internal/domain/event"
)

// FeedPublisher pushes a change-feed event to subscribed sessions after a
// persisted mutation. Publishing happens outside the persistence transaction;
// a crash between commit and publish means subscribers catch up on their next
// full load, which the idempotent merge rules tolerate.
type FeedPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}
