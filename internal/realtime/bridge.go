package realtime

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "strconv"
    "strings"

    "github.com/redis/go-redis/v9"
)

// channelPrefix namespaces the Redis pub/sub channels used for event
// mirroring.  One channel per show: seatlock:events:<showID>.
const channelPrefix = "seatlock:events:"

// Bridge mirrors lock events through Redis pub/sub so that every
// server instance sharing the store fans out its peers' events to its
// own subscribers.  Events published here are pushed to Redis and
// come back through Run, which feeds the local Broadcaster exactly
// once.  When no Redis client is configured the bridge degrades to
// direct local delivery, which is sufficient for a single instance.
type Bridge struct {
    rdb   *redis.Client
    local *Broadcaster
}

// NewBridge wires a bridge to the given Redis client (which may be
// nil) and local broadcaster.
func NewBridge(rdb *redis.Client, local *Broadcaster) *Bridge {
    return &Bridge{rdb: rdb, local: local}
}

// Publish sends an event to all subscribers on all instances.  On a
// Redis failure the event is still delivered locally so subscribers
// on this instance are never worse off than single-node mode.
func (b *Bridge) Publish(ctx context.Context, e Event) {
    if b.rdb == nil {
        b.local.Publish(e)
        return
    }
    payload, err := json.Marshal(e)
    if err != nil {
        log.Printf("event-bridge: marshal event failed: %v", err)
        return
    }
    channel := channelPrefix + strconv.FormatUint(e.ShowID, 10)
    if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
        log.Printf("event-bridge: redis publish failed: %v; delivering locally", err)
        b.local.Publish(e)
    }
}

// Run subscribes to the event channels of all shows and forwards
// incoming events to the local broadcaster.  It blocks until the
// context is cancelled.  Without a Redis client it returns
// immediately; Publish already delivers locally in that mode.
func (b *Bridge) Run(ctx context.Context) error {
    if b.rdb == nil {
        return nil
    }
    sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
    defer func() { _ = sub.Close() }()

    // Fail fast when the initial subscription cannot be established.
    if _, err := sub.Receive(ctx); err != nil {
        return fmt.Errorf("event-bridge: subscribe: %w", err)
    }

    msgs := sub.Channel()
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case msg, ok := <-msgs:
            if !ok {
                return fmt.Errorf("event-bridge: subscription channel closed")
            }
            var e Event
            if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
                log.Printf("event-bridge: drop malformed event on %s: %v", msg.Channel, err)
                continue
            }
            // The channel name is authoritative for routing; ignore
            // payloads published on a mismatched channel.
            if got := channelPrefix + strconv.FormatUint(e.ShowID, 10); !strings.EqualFold(got, msg.Channel) {
                log.Printf("event-bridge: drop event for show %d published on %s", e.ShowID, msg.Channel)
                continue
            }
            b.local.Publish(e)
        }
    }
}
