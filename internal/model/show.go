package model

import "time"

// Seat status values used in seat-map snapshots.  A seat is FREE when
// it has neither a live lock nor a booking, HELD while a live lock
// exists, and BOOKED once a finalized booking contains it.
const (
    SeatStatusFree   = "FREE"
    SeatStatusHeld   = "HELD"
    SeatStatusBooked = "BOOKED"
)

// Show is the read-only catalog view of a scheduled screening as this
// service consumes it.  The catalog collaborator owns the show
// lifecycle; here a show is just an identity, a seat inventory and
// pricing.
//
// Fields:
//  ID             – show identifier.
//  Title          – movie title or an external reference.
//  StartsAt       – when the show begins.
//  TotalSeats     – number of seats in the seating layout.
//  BasePriceCents – default price for seats without an override.
type Show struct {
    ID             uint64    // shows.id
    Title          string    // shows.title
    StartsAt       time.Time // shows.starts_at
    TotalSeats     uint32    // derived from the layout
    BasePriceCents uint32    // shows.base_price_cents
}

// ShowSeat is one seat of a show's layout together with its price.
// The layout is authored by the catalog and consumed read-only.
//
// Fields:
//  SeatID     – seat identifier, unique within the show.
//  RowLabel   – letter or string designating the row.
//  SeatNumber – number of the seat within the row.
//  SeatType   – type of seat (STANDARD, VIP, ACCESSIBLE).
//  PriceCents – price for this seat in cents.
type ShowSeat struct {
    SeatID     uint64 // show_seats.seat_id
    RowLabel   string // seats.row_label
    SeatNumber uint32 // seats.seat_number
    SeatType   string // seats.seat_type
    PriceCents uint32 // show_seats.price_cents
}
