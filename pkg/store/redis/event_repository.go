package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"trafficwaker/pkg/interfaces"

	"github.com/go-redis/redis/v8"
)

const (
	eventKeyPrefix   = "trafficwaker:"  // trafficwaker:{namespace}:events
	eventKeySuffix   = ":events"
	defaultMaxEvents = 200
)

// EventRepository keeps a capped, newest-first list of wake/sleep events
// per namespace. Used when MySQL is not configured.
type EventRepository struct {
	redis     *redis.Client
	maxEvents int64
}

// NewEventRepository creates event repository; maxEvents <= 0 uses the default cap
func NewEventRepository(redisClient *RedisClient, maxEvents int) *EventRepository {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &EventRepository{
		redis:     redisClient.GetClient(),
		maxEvents: int64(maxEvents),
	}
}

func eventKey(namespace string) string {
	return eventKeyPrefix + namespace + eventKeySuffix
}

// Record prepends the event and trims the list to the cap
func (r *EventRepository) Record(ctx context.Context, event *interfaces.WakeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := eventKey(event.Namespace)
	pipe := r.redis.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, r.maxEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// ListRecent newest-first events of a namespace
func (r *EventRepository) ListRecent(ctx context.Context, namespace string, limit int) ([]*interfaces.WakeEvent, error) {
	if limit <= 0 || int64(limit) > r.maxEvents {
		limit = int(r.maxEvents)
	}

	values, err := r.redis.LRange(ctx, eventKey(namespace), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*interfaces.WakeEvent, 0, len(values))
	for _, v := range values {
		var event interfaces.WakeEvent
		if err := json.Unmarshal([]byte(v), &event); err != nil {
			// Skip corrupt entries
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}
