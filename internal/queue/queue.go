/**
 * @description
 * Deployment event dispatch.
 * Phase 1 pushes DeployEvents onto a Redis list; the worker pops and handles
 * them. Best-effort, at-most-once, no deduplication and no ordering across
 * deployments — a dropped event is observable only via logs and chain state.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 * - github.com/google/uuid: event correlation ids
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/polydocs/backend/internal/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultQueueKey is the Redis list holding pending deploy events.
	DefaultQueueKey = "polydocs:deploy:events"
	// DefaultStatusChannel is the pub/sub channel for deployment status.
	DefaultStatusChannel = "polydocs:deploy:status"

	popTimeout = 5 * time.Second
)

// DeployEvent carries everything phase 2 needs to configure a contract without
// re-reading the registry.
type DeployEvent struct {
	ID                string `json:"id"` // correlation id, log tracing only
	Address           string `json:"address"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	Renderer          string `json:"renderer,omitempty"`
	Template          string `json:"template,omitempty"`
	URI               string `json:"uri"`
	RoyaltyRecipient  string `json:"royaltyRecipient,omitempty"`
	RoyaltyPercentage string `json:"royaltyPercentage,omitempty"`
	ChainID           string `json:"chainId"`
	ContractAddress   string `json:"contractAddress"`
}

// Deployment status values published on the status channel.
const (
	StatusDeploying  = "deploying"
	StatusConfigured = "configured"
	StatusFailed     = "failed"
)

// StatusEvent is a best-effort progress notification. Nothing blocks on it.
type StatusEvent struct {
	ID              string `json:"id"`
	ChainID         string `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
	Status          string `json:"status"`
	Detail          string `json:"detail,omitempty"`
}

// Dispatcher moves deploy events between phase 1 and the worker.
type Dispatcher struct {
	rdb           *redis.Client
	queueKey      string
	statusChannel string
}

// NewDispatcher creates a dispatcher; empty keys fall back to the defaults.
func NewDispatcher(rdb *redis.Client, queueKey, statusChannel string) *Dispatcher {
	if queueKey == "" {
		queueKey = DefaultQueueKey
	}
	if statusChannel == "" {
		statusChannel = DefaultStatusChannel
	}
	return &Dispatcher{rdb: rdb, queueKey: queueKey, statusChannel: statusChannel}
}

// Dispatch enqueues a deploy event. The push is synchronous; completion of the
// handling is not awaited and carries no delivery guarantee.
func (d *Dispatcher) Dispatch(ctx context.Context, event DeployEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, d.queueKey, payload).Err()
}

// PublishStatus publishes a status event. Errors are logged, never surfaced.
func (d *Dispatcher) PublishStatus(ctx context.Context, event StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal status event: %v", err)
		return
	}
	if err := d.rdb.Publish(ctx, d.statusChannel, payload).Err(); err != nil {
		logger.Error("Failed to publish deploy status: %v", err)
	}
}

// SubscribeStatus subscribes to the status channel.
func (d *Dispatcher) SubscribeStatus(ctx context.Context) *redis.PubSub {
	return d.rdb.Subscribe(ctx, d.statusChannel)
}

// Consume pops deploy events until ctx is cancelled, invoking handler for each.
// Malformed payloads are logged and dropped.
func (d *Dispatcher) Consume(ctx context.Context, handler func(context.Context, DeployEvent)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := d.rdb.BRPop(ctx, popTimeout, d.queueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Failed to pop deploy event: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var event DeployEvent
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			logger.Error("Dropping malformed deploy event: %v", err)
			continue
		}

		handler(ctx, event)
	}
}
