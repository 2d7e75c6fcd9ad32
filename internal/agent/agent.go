// Package agent implements the per-viewer seat-map synchronizer.  An
// Agent consumes the broadcast event stream of one show and keeps
// three local sets: booked seats, seats locked by other viewers, and
// the viewer's own selection.  Because event delivery is best-effort
// with no replay, the agent also polls the full live-lock snapshot on
// a fixed interval and reconciles, which bounds staleness even after
// a missed event.  The local sets are caches, never authoritative;
// the lock store remains the only shared truth.
package agent

import (
    "context"
    "log"
    "sort"
    "sync"
    "time"

    "github.com/showgrid/seatlock/internal/realtime"
)

// SnapshotFunc fetches the seat IDs of every live lock on the agent's
// show.  The HTTP viewer wires this to GET /v1/shows/:id/seats/locked.
type SnapshotFunc func(ctx context.Context) ([]uint64, error)

// Agent tracks one viewer's local view of one show's seat map.
type Agent struct {
    showID   uint64
    holderID string
    events   <-chan realtime.Event
    snapshot SnapshotFunc
    poll     time.Duration

    mu             sync.Mutex
    booked         map[uint64]struct{}
    lockedByOthers map[uint64]struct{}
    selectedByMe   map[uint64]struct{}

    // OnExpired fires when the viewer's own hold lapses (the
    // holder-scoped auto-release warning).  Optional.
    OnExpired func(seatIDs []uint64, message string)
    // OnConflict fires when the viewer's selection was rejected.
    // Optional.
    OnConflict func(seatIDs []uint64, message string)
    // OnChange fires after every applied event or reconciliation, so
    // a UI can re-render.  Optional.
    OnChange func()
}

// New constructs an Agent for one show and holder.  events is the
// subscribed broadcast channel; snapshot is the reconciliation poll.
func New(showID uint64, holderID string, events <-chan realtime.Event, snapshot SnapshotFunc, poll time.Duration) *Agent {
    if events == nil || snapshot == nil {
        panic("nil dependency passed to agent.New")
    }
    return &Agent{
        showID:         showID,
        holderID:       holderID,
        events:         events,
        snapshot:       snapshot,
        poll:           poll,
        booked:         make(map[uint64]struct{}),
        lockedByOthers: make(map[uint64]struct{}),
        selectedByMe:   make(map[uint64]struct{}),
    }
}

// Run consumes events and reconciles until the context is cancelled
// or the event channel closes.  It reconciles once up front so a
// freshly connected viewer starts from current state rather than an
// empty map.
func (a *Agent) Run(ctx context.Context) error {
    if err := a.Reconcile(ctx); err != nil {
        log.Printf("sync-agent: initial snapshot failed: %v", err)
    }
    ticker := time.NewTicker(a.poll)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case e, ok := <-a.events:
            if !ok {
                return nil
            }
            a.Apply(e)
        case <-ticker.C:
            if err := a.Reconcile(ctx); err != nil {
                log.Printf("sync-agent: snapshot poll failed: %v", err)
            }
        }
    }
}

// Apply folds one broadcast event into the local sets.  Events for
// other shows and holder-scoped events for other holders are ignored.
func (a *Agent) Apply(e realtime.Event) {
    if e.ShowID != a.showID {
        return
    }
    if e.HolderScoped() && e.HolderID != a.holderID {
        return
    }
    a.mu.Lock()
    switch e.Type {
    case realtime.EventSeatsSelected:
        for _, id := range e.SeatIDs {
            if e.HolderID == a.holderID {
                a.selectedByMe[id] = struct{}{}
                delete(a.lockedByOthers, id)
            } else {
                a.lockedByOthers[id] = struct{}{}
            }
        }
    case realtime.EventSeatsReleased, realtime.EventSeatsAvailable:
        for _, id := range e.SeatIDs {
            delete(a.lockedByOthers, id)
            if e.HolderID == a.holderID {
                delete(a.selectedByMe, id)
            }
        }
    case realtime.EventSeatsBooked:
        for _, id := range e.SeatIDs {
            a.booked[id] = struct{}{}
            delete(a.lockedByOthers, id)
            delete(a.selectedByMe, id)
        }
    case realtime.EventSeatsAutoReleased:
        for _, id := range e.SeatIDs {
            delete(a.selectedByMe, id)
        }
        a.mu.Unlock()
        if a.OnExpired != nil {
            a.OnExpired(e.SeatIDs, e.Message)
        }
        a.changed()
        return
    case realtime.EventSeatConflict:
        a.mu.Unlock()
        if a.OnConflict != nil {
            a.OnConflict(e.SeatIDs, e.Message)
        }
        return
    default:
        a.mu.Unlock()
        return
    }
    a.mu.Unlock()
    a.changed()
}

// Reconcile replaces lockedByOthers with the server's live-lock
// snapshot, minus the seats this viewer holds or knows to be booked.
func (a *Agent) Reconcile(ctx context.Context) error {
    locked, err := a.snapshot(ctx)
    if err != nil {
        return err
    }
    a.mu.Lock()
    next := make(map[uint64]struct{}, len(locked))
    for _, id := range locked {
        if _, mine := a.selectedByMe[id]; mine {
            continue
        }
        if _, booked := a.booked[id]; booked {
            continue
        }
        next[id] = struct{}{}
    }
    a.lockedByOthers = next
    a.mu.Unlock()
    a.changed()
    return nil
}

// Booked returns the booked-seat set in ascending order.
func (a *Agent) Booked() []uint64 { return a.sorted(&a.booked) }

// LockedByOthers returns the seats other viewers hold, ascending.
func (a *Agent) LockedByOthers() []uint64 { return a.sorted(&a.lockedByOthers) }

// SelectedByMe returns this viewer's own selection, ascending.
func (a *Agent) SelectedByMe() []uint64 { return a.sorted(&a.selectedByMe) }

func (a *Agent) sorted(set *map[uint64]struct{}) []uint64 {
    a.mu.Lock()
    out := make([]uint64, 0, len(*set))
    for id := range *set {
        out = append(out, id)
    }
    a.mu.Unlock()
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

func (a *Agent) changed() {
    if a.OnChange != nil {
        a.OnChange()
    }
}
