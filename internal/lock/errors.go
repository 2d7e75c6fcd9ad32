package lock

import (
    "errors"
    "fmt"
)

// ErrNoSeats is returned when a request names no valid seats.
var ErrNoSeats = errors.New("no seats requested")

// ErrUnknownSeat is returned when a requested seat is not part of the
// show's layout.
var ErrUnknownSeat = errors.New("seat not in show layout")

// ConflictError reports a rejected selection: every seat listed is
// either booked or live-locked by another holder.  The batch is
// all-or-nothing, so the caller holds none of its requested seats
// after receiving this error.
type ConflictError struct {
    SeatIDs []uint64
}

func (e *ConflictError) Error() string {
    return fmt.Sprintf("seats already taken: %v", e.SeatIDs)
}

// UnavailableError reports a failed finalize re-check: the listed
// seats were re-claimed or booked by someone else after the caller's
// hold lapsed.  Nothing was booked.
type UnavailableError struct {
    SeatIDs []uint64
}

func (e *UnavailableError) Error() string {
    return fmt.Sprintf("seats no longer available: %v", e.SeatIDs)
}
