package model

import "time"

// Booking records the permanent outcome of a finalized hold: a set of
// seats irrevocably assigned to a holder for one show.  Bookings are
// append-only; nothing in this service updates or deletes them.
//
// Fields:
//  ID               – booking identifier (UUID string).
//  ShowID           – show being booked.
//  HolderID         – holder the seats were finalized for.
//  TotalAmountCents – total price in cents across all seats.
//  PaymentRef       – external payment reference supplied at finalize.
//  CreatedAt        – when the booking was committed.
type Booking struct {
    ID               string    // bookings.id
    ShowID           uint64    // bookings.show_id
    HolderID         string    // bookings.holder_id
    TotalAmountCents uint32    // bookings.total_amount_cents
    PaymentRef       string    // bookings.payment_ref
    CreatedAt        time.Time // bookings.created_at
}

// BookingSeat links a booking to one seat.  The unique key on
// (show_id, seat_id) is the final guard against two bookings ever
// containing the same seat of the same show.
//
// Fields:
//  BookingID  – owning booking.
//  ShowID     – show in which the seat is booked.
//  SeatID     – booked seat.
//  PriceCents – price paid for this seat in cents.
type BookingSeat struct {
    BookingID  string // booking_seats.booking_id
    ShowID     uint64 // booking_seats.show_id
    SeatID     uint64 // booking_seats.seat_id
    PriceCents uint32 // booking_seats.price_cents
}
