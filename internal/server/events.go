package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v3"

	"github.com/roach88/textflow/internal/engine"
)

// eventBuffer is how many updates a stream may fall behind before updates
// are dropped for it.
const eventBuffer = 16

// broadcaster fans engine updates out to event streams. Listeners must not
// block, so a slow stream loses updates instead of stalling mutations.
type broadcaster struct {
	logger      *slog.Logger
	unsubscribe func()

	mu     sync.Mutex
	subs   map[int]chan []byte
	next   int
	closed bool
}

func newBroadcaster(e *engine.Engine, logger *slog.Logger) *broadcaster {
	b := &broadcaster{
		logger: logger,
		subs:   make(map[int]chan []byte),
	}
	b.unsubscribe = e.Subscribe(b.publish)
	return b
}

// publish is the engine listener.
func (b *broadcaster) publish(_ context.Context, u engine.Update) {
	g, err := encodeGraph(u.View)
	if err != nil {
		b.logger.Error("encode update", "seq", u.Pass.Seq, "error", err)
		return
	}
	data, err := json.Marshal(updateJSON{Pass: encodePass(u.Pass), Graph: g})
	if err != nil {
		b.logger.Error("encode update", "seq", u.Pass.Seq, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- data:
		default:
			b.logger.Warn("event stream is behind, update dropped", "stream", id, "seq", u.Pass.Seq)
		}
	}
}

// subscribe returns a stream of encoded updates. The channel is closed by
// cancel or when the broadcaster closes.
func (b *broadcaster) subscribe() (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan []byte, eventBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

func (b *broadcaster) close() {
	b.unsubscribe()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// streamEvents writes one server-sent event per update until the client
// goes away or the server closes.
func (s *Server) streamEvents(c fiber.Ctx) error {
	updates, cancel := s.events.subscribe()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for data := range updates {
			if _, err := fmt.Fprintf(w, "event: pass\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	})
}
