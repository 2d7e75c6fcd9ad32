package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/showgrid/seatlock/internal/catalog"
    "github.com/showgrid/seatlock/internal/model"
)

// ShowRepo implements catalog.Catalog over the shows, seats and
// show_seats tables the catalog collaborator maintains, plus the
// booking_seats this service writes.  Everything here is read-only:
// the reservation core never creates or mutates shows or layouts.
type ShowRepo struct {
    db *sql.DB
}

// NewShowRepo returns a ShowRepo bound to the provided database.
func NewShowRepo(db *sql.DB) *ShowRepo { return &ShowRepo{db: db} }

// GetShow implements catalog.Catalog.
func (r *ShowRepo) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
    var s model.Show
    err := r.db.QueryRowContext(ctx,
        `SELECT sh.id, sh.title, sh.starts_at, sh.base_price_cents,
                (SELECT COUNT(*) FROM show_seats ss WHERE ss.show_id = sh.id)
         FROM shows sh
         WHERE sh.id = ?`,
        showID,
    ).Scan(&s.ID, &s.Title, &s.StartsAt, &s.BasePriceCents, &s.TotalSeats)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, catalog.ErrShowNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load show %d: %w", showID, err)
    }
    return &s, nil
}

// Seats implements catalog.Catalog.  Seats without a price override
// fall back to the show's base price.
func (r *ShowRepo) Seats(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT ss.seat_id, st.row_label, st.seat_number, st.seat_type,
                COALESCE(ss.price_cents, sh.base_price_cents)
         FROM show_seats ss
         JOIN seats st ON st.id = ss.seat_id
         JOIN shows sh ON sh.id = ss.show_id
         WHERE ss.show_id = ?
         ORDER BY st.row_label, st.seat_number`,
        showID,
    )
    if err != nil {
        return nil, fmt.Errorf("load layout for show %d: %w", showID, err)
    }
    defer rows.Close()
    var seats []model.ShowSeat
    for rows.Next() {
        var s model.ShowSeat
        if err := rows.Scan(&s.SeatID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.PriceCents); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(seats) == 0 {
        // Distinguish an unknown show from one with no layout rows.
        if _, err := r.GetShow(ctx, showID); err != nil {
            return nil, err
        }
    }
    return seats, nil
}

// BookedSeatIDs implements catalog.Catalog.
func (r *ShowRepo) BookedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT seat_id FROM booking_seats WHERE show_id = ? ORDER BY seat_id`,
        showID,
    )
    if err != nil {
        return nil, fmt.Errorf("load booked seats for show %d: %w", showID, err)
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}
