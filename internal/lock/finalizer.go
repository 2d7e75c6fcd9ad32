package lock

import (
    "context"
    "fmt"
    "time"

    "github.com/google/uuid"

    "github.com/showgrid/seatlock/internal/catalog"
    "github.com/showgrid/seatlock/internal/model"
    "github.com/showgrid/seatlock/internal/realtime"
)

// Finalizer converts a holder's live locks into a permanent booking.
// It is the only component allowed to write bookings.  Availability
// is re-verified at commit time by the Bookings store, because the
// hold may have lapsed during the external payment round-trip; a
// failed re-check books nothing and surfaces an UnavailableError for
// the caller's refund/retry flow.
type Finalizer struct {
    bookings Bookings
    catalog  catalog.Catalog
    events   EventSink

    // Notify, when set, is called after a successful finalize with
    // the committed booking and its seats.  Wired to the message
    // queue publisher in main; failures there must not affect the
    // booking, so the hook returns nothing.
    Notify func(ctx context.Context, b model.Booking, seatIDs []uint64)
}

// NewFinalizer constructs a Finalizer.  All dependencies must be
// non-nil.
func NewFinalizer(bookings Bookings, cat catalog.Catalog, events EventSink) *Finalizer {
    if bookings == nil || cat == nil || events == nil {
        panic("nil dependency passed to NewFinalizer")
    }
    return &Finalizer{bookings: bookings, catalog: cat, events: events}
}

// Finalize books the given seats for the holder.  Each seat must be
// either still live-locked by the holder or unheld and unbooked.  On
// success the consumed locks are gone, the booking is durable, and
// seats-booked has been broadcast.
func (f *Finalizer) Finalize(ctx context.Context, showID uint64, holderID string, seatIDs []uint64, paymentRef string) (*model.Booking, error) {
    seatIDs = dedupeSeatIDs(seatIDs)
    if len(seatIDs) == 0 {
        return nil, ErrNoSeats
    }
    if _, err := f.catalog.GetShow(ctx, showID); err != nil {
        return nil, err
    }
    layout, err := f.catalog.Seats(ctx, showID)
    if err != nil {
        return nil, fmt.Errorf("load layout for show %d: %w", showID, err)
    }
    prices := make(map[uint64]uint32, len(layout))
    for _, seat := range layout {
        prices[seat.SeatID] = seat.PriceCents
    }

    var total uint32
    seats := make([]model.BookingSeat, 0, len(seatIDs))
    booking := model.Booking{
        ID:         uuid.NewString(),
        ShowID:     showID,
        HolderID:   holderID,
        PaymentRef: paymentRef,
        CreatedAt:  time.Now().UTC(),
    }
    for _, id := range seatIDs {
        price, ok := prices[id]
        if !ok {
            return nil, fmt.Errorf("seat %d: %w", id, ErrUnknownSeat)
        }
        total += price
        seats = append(seats, model.BookingSeat{
            BookingID:  booking.ID,
            ShowID:     showID,
            SeatID:     id,
            PriceCents: price,
        })
    }
    booking.TotalAmountCents = total

    if err := f.bookings.Finalize(ctx, &booking, seats); err != nil {
        return nil, err
    }

    f.events.Publish(ctx, realtime.Event{
        Type:     realtime.EventSeatsBooked,
        ShowID:   showID,
        SeatIDs:  seatIDs,
        HolderID: holderID,
    })
    if f.Notify != nil {
        f.Notify(ctx, booking, seatIDs)
    }
    return &booking, nil
}
