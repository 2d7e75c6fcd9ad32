// Package lock implements the seat-reservation concurrency core: the
// lock store contract, the batch lock manager, the expiry reaper and
// the booking finalizer.  All exclusivity rests on the store's atomic
// conditional write; nothing in this package coordinates through
// in-process mutexes, so multiple server instances may safely share
// one durable store.
package lock

import (
    "context"
    "time"

    "github.com/showgrid/seatlock/internal/model"
    "github.com/showgrid/seatlock/internal/realtime"
)

// AcquireResult is the outcome of one TryAcquire call.  When the seat
// could not be acquired, HolderID names the current holder; it is
// empty when the seat is blocked by a permanent booking instead of a
// live lock.
type AcquireResult struct {
    Acquired bool
    HolderID string
}

// ReleaseOutcome classifies a Release call.  NotOwner and NotFound
// are informational: callers treat them as no-ops, never as errors.
type ReleaseOutcome int

const (
    Released ReleaseOutcome = iota
    NotOwner
    NotFound
)

// Store is the durable lock keyspace.  Implementations must make
// TryAcquire a single atomic conditional write keyed by
// (showID, seatID): it succeeds only when no live lock exists or the
// existing lock already belongs to the requester.  Re-acquiring an
// own live lock succeeds without extending its expiration.  All read
// paths treat locks past their expiration as absent.
type Store interface {
    TryAcquire(ctx context.Context, showID, seatID uint64, holderID string, ttl time.Duration) (AcquireResult, error)
    Release(ctx context.Context, showID, seatID uint64, holderID string) (ReleaseOutcome, error)
    // ListLive returns the live locks of one show.
    ListLive(ctx context.Context, showID uint64) ([]model.SeatLock, error)
    // DeleteExpired removes every lapsed lock across all shows and
    // returns what it removed so the caller can notify subscribers.
    DeleteExpired(ctx context.Context) ([]model.SeatLock, error)
}

// Bookings persists finalized bookings.  Finalize must atomically
// re-verify availability, write the booking with its seats, and
// delete the consumed locks; on any failed re-check it writes nothing
// and returns an UnavailableError naming the failing seats.
type Bookings interface {
    Finalize(ctx context.Context, b *model.Booking, seats []model.BookingSeat) error
}

// EventSink receives every state change for fan-out to viewers.  The
// realtime.Bridge is the production sink.
type EventSink interface {
    Publish(ctx context.Context, e realtime.Event)
}
