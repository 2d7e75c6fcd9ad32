package catalog

import (
    "context"
    "fmt"
    "time"

    "github.com/showgrid/seatlock/internal/model"
)

// Static is an in-memory Catalog used by the memory backend and the
// test suite.  Shows and layouts are fixed at construction; booked
// seats are read through the Booked hook so the caller can point it
// at whatever booking store is in use.
type Static struct {
    shows map[uint64]model.Show
    seats map[uint64][]model.ShowSeat

    // Booked supplies the permanently booked seats per show.  Nil
    // means no seats are ever booked, which is only useful in tests.
    Booked func(ctx context.Context, showID uint64) ([]uint64, error)
}

// NewStatic creates an empty static catalog.
func NewStatic() *Static {
    return &Static{
        shows: make(map[uint64]model.Show),
        seats: make(map[uint64][]model.ShowSeat),
    }
}

// AddShow registers a show and its seat layout.
func (s *Static) AddShow(show model.Show, seats []model.ShowSeat) {
    show.TotalSeats = uint32(len(seats))
    s.shows[show.ID] = show
    s.seats[show.ID] = seats
}

// NewDemo builds a static catalog with a single demo show: ten rows
// (A–J) of ten seats each at the given base price.  Seat IDs are
// assigned row-major starting at 1.
func NewDemo(showID uint64, basePriceCents uint32) *Static {
    s := NewStatic()
    seats := make([]model.ShowSeat, 0, 100)
    id := uint64(1)
    for row := 0; row < 10; row++ {
        label := string(rune('A' + row))
        for n := uint32(1); n <= 10; n++ {
            seats = append(seats, model.ShowSeat{
                SeatID:     id,
                RowLabel:   label,
                SeatNumber: n,
                SeatType:   "STANDARD",
                PriceCents: basePriceCents,
            })
            id++
        }
    }
    s.AddShow(model.Show{
        ID:             showID,
        Title:          fmt.Sprintf("demo show %d", showID),
        StartsAt:       time.Now().UTC().Add(2 * time.Hour),
        BasePriceCents: basePriceCents,
    }, seats)
    return s
}

// GetShow implements Catalog.
func (s *Static) GetShow(_ context.Context, showID uint64) (*model.Show, error) {
    show, ok := s.shows[showID]
    if !ok {
        return nil, ErrShowNotFound
    }
    return &show, nil
}

// Seats implements Catalog.
func (s *Static) Seats(_ context.Context, showID uint64) ([]model.ShowSeat, error) {
    seats, ok := s.seats[showID]
    if !ok {
        return nil, ErrShowNotFound
    }
    out := make([]model.ShowSeat, len(seats))
    copy(out, seats)
    return out, nil
}

// BookedSeatIDs implements Catalog via the Booked hook.
func (s *Static) BookedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error) {
    if s.Booked == nil {
        return nil, nil
    }
    return s.Booked(ctx, showID)
}
