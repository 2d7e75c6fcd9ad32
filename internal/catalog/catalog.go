// Package catalog defines the read-only show/seat collaborator
// consumed by the reservation core.  Show lifecycle, seat layout and
// pricing are authored elsewhere; this package only describes how
// they are read.
package catalog

import (
    "context"
    "errors"

    "github.com/showgrid/seatlock/internal/model"
)

// ErrShowNotFound is returned when the requested show does not exist.
var ErrShowNotFound = errors.New("show not found")

// Catalog exposes the show data the reservation core needs: the show
// itself, its seat layout with pricing, and the set of seats already
// consumed by permanent bookings.
type Catalog interface {
    // GetShow returns the show or ErrShowNotFound.
    GetShow(ctx context.Context, showID uint64) (*model.Show, error)
    // Seats returns the full seat layout of the show with per-seat
    // pricing, or ErrShowNotFound.
    Seats(ctx context.Context, showID uint64) ([]model.ShowSeat, error)
    // BookedSeatIDs returns the seats of the show that belong to a
    // permanent booking.  Unknown shows yield an empty set.
    BookedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error)
}
