package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-orchestrator/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventsChannel = "events:payments"

// Emitter publishes domain events on a Redis channel for downstream
// consumers (notifications, analytics). Delivery is best effort: a
// publish failure is logged and never fails the business operation
// that produced the event.
type Emitter struct {
	client *goredis.Client
	log    zerolog.Logger
}

// NewEmitter creates a new Redis pub/sub event emitter.
func NewEmitter(client *goredis.Client, log zerolog.Logger) *Emitter {
	return &Emitter{client: client, log: log}
}

// Emit publishes the event as JSON.
func (e *Emitter) Emit(ctx context.Context, event ports.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := e.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		e.log.Warn().Err(err).Str("type", event.Type).Msg("Failed to publish event")
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
