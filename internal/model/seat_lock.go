package model

import "time"

// SeatLock represents a temporary, exclusive claim on one seat of a
// show by one holder.  At most one live SeatLock may exist per
// (show, seat) pair; this is enforced by a unique key in the lock
// store.  A lock past its expiration is logically gone even before
// the reaper physically removes the row; every read path must treat
// it as absent.
//
// Fields:
//  ShowID    – show to which the seat belongs.
//  SeatID    – seat being held.
//  HolderID  – opaque session/user identity that owns the hold.
//  CreatedAt – when the hold was taken.
//  ExpiresAt – hard deadline after which the hold is void.
type SeatLock struct {
    ShowID    uint64    // seat_locks.show_id
    SeatID    uint64    // seat_locks.seat_id
    HolderID  string    // seat_locks.holder_id
    CreatedAt time.Time // seat_locks.created_at
    ExpiresAt time.Time // seat_locks.expires_at
}

// Live reports whether the lock is still in force at the given
// instant.  Expiration is exclusive: a lock whose ExpiresAt equals
// now is already dead.
func (l SeatLock) Live(now time.Time) bool {
    return now.Before(l.ExpiresAt)
}
