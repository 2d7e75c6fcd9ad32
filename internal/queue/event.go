// Package queue defines message payloads exchanged over the message
// broker and the background consumer that processes them.
package queue

// BookingFinalizedEvent is published when a hold is converted into a
// permanent booking.  It carries enough information for downstream
// consumers (ticket delivery, notifications, analytics) to act
// without querying the primary database.
type BookingFinalizedEvent struct {
    BookingID        string   `json:"booking_id"`
    ShowID           uint64   `json:"show_id"`
    HolderID         string   `json:"holder_id"`
    SeatIDs          []uint64 `json:"seat_ids"`
    TotalAmountCents uint32   `json:"total_amount_cents"`
    PaymentRef       string   `json:"payment_ref"`
    FinalizedAt      string   `json:"finalized_at"`
}
