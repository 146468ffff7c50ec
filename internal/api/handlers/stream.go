/**
 * @description
 * Deployment status stream.
 * Relays worker-published status events over Server-Sent Events. Delivery is
 * best-effort: the worker publishes to Redis pub/sub and nothing blocks on a
 * subscriber being present.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/queue: status channel subscription
 */

package handlers

import (
	"bufio"
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/polydocs/backend/internal/queue"
)

type StreamHandler struct {
	Dispatcher *queue.Dispatcher
}

func NewStreamHandler(dispatcher *queue.Dispatcher) *StreamHandler {
	return &StreamHandler{Dispatcher: dispatcher}
}

// StreamDeployments streams deployment status events to the caller.
// GET /deployments/stream
func (h *StreamHandler) StreamDeployments(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()

	ctx, cancel := context.WithCancel(context.Background())

	pubsub := h.Dispatcher.SubscribeStatus(ctx)
	ch := pubsub.Channel()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cancel()
			_ = pubsub.Close()
		}()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
