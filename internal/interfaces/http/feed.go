package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"workledger/internal/application/dispatcher"
	"workledger/internal/domain/event"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPingInterval = 30 * time.Second

	// feedBufferSize bounds events queued per connection. A client that stops
	// reading loses events rather than blocking the hub; it must resync with a
	// full load anyway, since the feed guarantees no complete delivery.
	feedBufferSize = 64
)

// FeedHandler pushes change-feed events to websocket clients.
type FeedHandler struct {
	feed     dispatcher.Dispatcher
	logger   *zap.Logger
	upgrader websocket.Upgrader
	nextConn atomic.Int64
}

// NewFeedHandler creates a websocket feed handler.
func NewFeedHandler(feed dispatcher.Dispatcher, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		feed:   feed,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /api/feed: it upgrades the connection and forwards every
// change-feed event until the client disconnects.
func (f *FeedHandler) Serve(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	name := fmt.Sprintf("ws-%s-%d", actor(c).ID, f.nextConn.Add(1))
	events := make(chan *event.Event, feedBufferSize)

	f.feed.SubscribeAll(name, func(_ context.Context, evt *event.Event) error {
		select {
		case events <- evt:
		default:
			f.logger.Warn("Feed subscriber fell behind, dropping event",
				zap.String("subscriber", name),
				zap.String("event_id", evt.ID))
		}
		return nil
	})

	f.logger.Info("Feed subscriber connected", zap.String("subscriber", name))

	done := make(chan struct{})

	// Reader: the client never sends application data; this loop exists to
	// observe the close handshake.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	f.writeLoop(conn, name, events, done)

	f.feed.Unsubscribe(name)
	conn.Close()
	f.logger.Info("Feed subscriber disconnected", zap.String("subscriber", name))
}

func (f *FeedHandler) writeLoop(conn *websocket.Conn, name string, events <-chan *event.Event, done <-chan struct{}) {
	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return

		case evt := <-events:
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				f.logger.Warn("Feed write failed",
					zap.String("subscriber", name),
					zap.Error(err))
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
