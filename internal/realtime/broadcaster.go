package realtime

import "sync"

// subscriberBuffer is the channel depth given to each subscriber.  A
// subscriber that falls further behind than this has events dropped;
// the periodic snapshot reconciliation catches it up.
const subscriberBuffer = 16

// Broadcaster fans events out to the subscribers of each show.  It is
// purely in-process and ephemeral: subscriptions carry no durable
// state and are rebuilt by clients after a restart or disconnect.
// Delivery is at-most-once with no replay.
type Broadcaster struct {
    mu    sync.Mutex
    shows map[uint64]map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
    return &Broadcaster{shows: make(map[uint64]map[chan Event]struct{})}
}

// Subscribe registers a new subscriber for the given show and returns
// its event channel.  The caller must Unsubscribe when done or the
// channel leaks.
func (b *Broadcaster) Subscribe(showID uint64) chan Event {
    ch := make(chan Event, subscriberBuffer)
    b.mu.Lock()
    subs, ok := b.shows[showID]
    if !ok {
        subs = make(map[chan Event]struct{})
        b.shows[showID] = subs
    }
    subs[ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

// Unsubscribe removes a subscriber and closes its channel.  It is a
// no-op for channels that were never subscribed or already removed.
func (b *Broadcaster) Unsubscribe(showID uint64, ch chan Event) {
    b.mu.Lock()
    if subs, ok := b.shows[showID]; ok {
        if _, ok := subs[ch]; ok {
            delete(subs, ch)
            close(ch)
        }
        if len(subs) == 0 {
            delete(b.shows, showID)
        }
    }
    b.mu.Unlock()
}

// Publish delivers an event to every subscriber of its show.  Sends
// never block: a subscriber whose buffer is full simply misses the
// event and relies on its next reconciliation poll.
func (b *Broadcaster) Publish(e Event) {
    b.mu.Lock()
    for ch := range b.shows[e.ShowID] {
        select {
        case ch <- e:
        default:
            // lagging subscriber; snapshot poll will catch it up
        }
    }
    b.mu.Unlock()
}

// SubscriberCount returns the number of live subscribers for a show.
func (b *Broadcaster) SubscriberCount(showID uint64) int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return len(b.shows[showID])
}
