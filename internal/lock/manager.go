package lock

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/showgrid/seatlock/internal/catalog"
    "github.com/showgrid/seatlock/internal/realtime"
)

// Manager composes the conflict detector and the lock store into
// all-or-nothing batch semantics: a selection either locks every
// requested seat to the holder or locks nothing and reports the full
// conflict set.  First atomic acquirer wins; there is no queueing,
// a loser retries with a fresh choice.
type Manager struct {
    store   Store
    catalog catalog.Catalog
    events  EventSink
    ttl     time.Duration
}

// NewManager constructs a Manager.  All dependencies must be non-nil
// and the TTL must be positive.
func NewManager(store Store, cat catalog.Catalog, events EventSink, ttl time.Duration) *Manager {
    if store == nil || cat == nil || events == nil {
        panic("nil dependency passed to NewManager")
    }
    if ttl <= 0 {
        panic("non-positive lock TTL passed to NewManager")
    }
    return &Manager{store: store, catalog: cat, events: events, ttl: ttl}
}

// TTL returns the hold duration granted to successful selections.
func (m *Manager) TTL() time.Duration { return m.ttl }

// SelectSeats attempts to lock every requested seat for the holder.
// On success it publishes seats-selected and returns the hold
// deadline.  On any conflict it releases whatever this call acquired,
// publishes a holder-scoped seat-conflict event and returns a
// ConflictError listing the seats that were booked or held by someone
// else.  Store failures are returned as plain errors so callers can
// distinguish a retryable outage from a business conflict.
func (m *Manager) SelectSeats(ctx context.Context, showID uint64, holderID string, seatIDs []uint64) (time.Time, error) {
    seatIDs = dedupeSeatIDs(seatIDs)
    if len(seatIDs) == 0 {
        return time.Time{}, ErrNoSeats
    }
    if _, err := m.catalog.GetShow(ctx, showID); err != nil {
        return time.Time{}, err
    }

    // Permanent conflicts first: booked seats can never be selected.
    booked, err := m.catalog.BookedSeatIDs(ctx, showID)
    if err != nil {
        return time.Time{}, fmt.Errorf("load booked seats for show %d: %w", showID, err)
    }
    bookedSet := make(map[uint64]struct{}, len(booked))
    for _, id := range booked {
        bookedSet[id] = struct{}{}
    }
    var conflicts []uint64
    for _, id := range seatIDs {
        if _, ok := bookedSet[id]; ok {
            conflicts = append(conflicts, id)
        }
    }
    if len(conflicts) > 0 {
        m.publishConflict(ctx, showID, holderID, conflicts, "seats already booked")
        return time.Time{}, &ConflictError{SeatIDs: conflicts}
    }

    // Acquire seat by seat; the store's conditional write decides
    // every race.  Keep going on conflicts so the caller learns the
    // full conflict set in one round-trip.
    var acquired []uint64
    for _, id := range seatIDs {
        res, err := m.store.TryAcquire(ctx, showID, id, holderID, m.ttl)
        if err != nil {
            m.rollback(ctx, showID, holderID, acquired)
            return time.Time{}, fmt.Errorf("acquire seat %d: %w", id, err)
        }
        if !res.Acquired {
            conflicts = append(conflicts, id)
            continue
        }
        acquired = append(acquired, id)
    }
    if len(conflicts) > 0 {
        m.rollback(ctx, showID, holderID, acquired)
        m.publishConflict(ctx, showID, holderID, conflicts, "seats held by another viewer")
        return time.Time{}, &ConflictError{SeatIDs: conflicts}
    }

    m.events.Publish(ctx, realtime.Event{
        Type:     realtime.EventSeatsSelected,
        ShowID:   showID,
        SeatIDs:  seatIDs,
        HolderID: holderID,
    })
    return time.Now().UTC().Add(m.ttl), nil
}

// ReleaseSeats releases the holder's locks on the given seats and
// publishes seats-released for whatever was actually released.  Seats
// the holder does not own are skipped silently, which makes the call
// idempotent.
func (m *Manager) ReleaseSeats(ctx context.Context, showID uint64, holderID string, seatIDs []uint64) (int, error) {
    seatIDs = dedupeSeatIDs(seatIDs)
    var released []uint64
    for _, id := range seatIDs {
        outcome, err := m.store.Release(ctx, showID, id, holderID)
        if err != nil {
            return len(released), fmt.Errorf("release seat %d: %w", id, err)
        }
        if outcome == Released {
            released = append(released, id)
        }
    }
    if len(released) > 0 {
        m.events.Publish(ctx, realtime.Event{
            Type:     realtime.EventSeatsReleased,
            ShowID:   showID,
            SeatIDs:  released,
            HolderID: holderID,
        })
    }
    return len(released), nil
}

// LockedSeats returns the seat IDs of every live lock on the show.
// This is the full-snapshot poll clients reconcile against.
func (m *Manager) LockedSeats(ctx context.Context, showID uint64) ([]uint64, error) {
    locks, err := m.store.ListLive(ctx, showID)
    if err != nil {
        return nil, fmt.Errorf("list live locks for show %d: %w", showID, err)
    }
    ids := make([]uint64, 0, len(locks))
    for _, l := range locks {
        ids = append(ids, l.SeatID)
    }
    return ids, nil
}

// rollback undoes the acquisitions of a partially successful batch so
// the caller ends up holding nothing after a conflict.
func (m *Manager) rollback(ctx context.Context, showID uint64, holderID string, seatIDs []uint64) {
    for _, id := range seatIDs {
        if _, err := m.store.Release(ctx, showID, id, holderID); err != nil {
            // the TTL bounds the damage if this release is lost
            log.Printf("lock-manager: rollback release of seat %d failed: %v", id, err)
        }
    }
}

func (m *Manager) publishConflict(ctx context.Context, showID uint64, holderID string, seatIDs []uint64, reason string) {
    m.events.Publish(ctx, realtime.Event{
        Type:     realtime.EventSeatConflict,
        ShowID:   showID,
        SeatIDs:  seatIDs,
        HolderID: holderID,
        Message:  reason,
    })
}

// dedupeSeatIDs drops zero and duplicate IDs, preserving order.
func dedupeSeatIDs(ids []uint64) []uint64 {
    out := make([]uint64, 0, len(ids))
    seen := make(map[uint64]struct{}, len(ids))
    for _, id := range ids {
        if id == 0 {
            continue
        }
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            out = append(out, id)
        }
    }
    return out
}
