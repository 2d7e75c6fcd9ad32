package lock

import (
    "context"
    "log"
    "time"

    "github.com/showgrid/seatlock/internal/realtime"
)

// Reaper periodically deletes lapsed locks and announces the freed
// seats.  It is the only cleanup path for abandoned holds: a client
// that disconnects without releasing simply waits out its TTL.
// Because every read path already treats expired locks as absent, a
// failed sweep merely delays cleanup; it can never corrupt state.
type Reaper struct {
    store    Store
    events   EventSink
    interval time.Duration
}

// NewReaper constructs a Reaper sweeping at the given interval.
func NewReaper(store Store, events EventSink, interval time.Duration) *Reaper {
    if store == nil || events == nil {
        panic("nil dependency passed to NewReaper")
    }
    if interval <= 0 {
        panic("non-positive interval passed to NewReaper")
    }
    return &Reaper{store: store, events: events, interval: interval}
}

// Run sweeps on a fixed ticker until the context is cancelled.
// Sweep failures are logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) {
    ticker := time.NewTicker(r.interval)
    defer ticker.Stop()
    log.Printf("reaper: sweeping expired locks every %s", r.interval)
    for {
        select {
        case <-ctx.Done():
            log.Printf("reaper: stopped")
            return
        case <-ticker.C:
            r.Sweep(ctx)
        }
    }
}

// Sweep runs one pass: delete every expired lock, warn each affected
// holder with a scoped seats-auto-released event, and broadcast
// seats-available so every viewer's map unlocks the freed seats.
func (r *Reaper) Sweep(ctx context.Context) {
    removed, err := r.store.DeleteExpired(ctx)
    if err != nil {
        log.Printf("reaper: sweep failed: %v; retrying next interval", err)
        return
    }
    if len(removed) == 0 {
        return
    }

    type holderKey struct {
        showID uint64
        holder string
    }
    byHolder := make(map[holderKey][]uint64)
    byShow := make(map[uint64][]uint64)
    for _, l := range removed {
        hk := holderKey{l.ShowID, l.HolderID}
        byHolder[hk] = append(byHolder[hk], l.SeatID)
        byShow[l.ShowID] = append(byShow[l.ShowID], l.SeatID)
    }
    for hk, seats := range byHolder {
        r.events.Publish(ctx, realtime.Event{
            Type:     realtime.EventSeatsAutoReleased,
            ShowID:   hk.showID,
            SeatIDs:  seats,
            HolderID: hk.holder,
            Message:  "your seat selection expired",
        })
    }
    for showID, seats := range byShow {
        r.events.Publish(ctx, realtime.Event{
            Type:    realtime.EventSeatsAvailable,
            ShowID:  showID,
            SeatIDs: seats,
        })
    }
    log.Printf("reaper: removed %d expired locks across %d shows", len(removed), len(byShow))
}
