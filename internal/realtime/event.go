// Package realtime implements per-show event fan-out for seat-map
// synchronization.  Every state change in the lock subsystem is
// published as an Event; connected viewers receive them over a
// per-show channel with best-effort, at-most-once delivery.
package realtime

// Event type names carried on the wire.  Holder-scoped types are
// delivered only to the holder they name; broadcast types go to every
// subscriber of the show.
const (
    EventSeatsSelected     = "seats-selected"      // broadcast: seats now held
    EventSeatsReleased     = "seats-released"      // broadcast: holder gave seats back
    EventSeatsBooked       = "seats-booked"        // broadcast: seats permanently booked
    EventSeatsAutoReleased = "seats-auto-released" // holder-scoped: your hold expired
    EventSeatsAvailable    = "seats-available"     // broadcast: reaped seats free again
    EventSeatConflict      = "seat-conflict"       // holder-scoped: your selection was rejected
)

// Event is one seat-state change for one show.  SeatIDs always names
// the affected seats so clients can update their map without a
// round-trip.  HolderID is set on every event that has an originating
// holder; Message carries the human-readable reason on conflicts.
type Event struct {
    Type     string   `json:"type"`
    ShowID   uint64   `json:"show_id"`
    SeatIDs  []uint64 `json:"seat_ids"`
    HolderID string   `json:"holder_id,omitempty"`
    Message  string   `json:"message,omitempty"`
}

// HolderScoped reports whether the event must be delivered only to
// the holder it names rather than broadcast to every viewer.
func (e Event) HolderScoped() bool {
    return e.Type == EventSeatsAutoReleased || e.Type == EventSeatConflict
}
