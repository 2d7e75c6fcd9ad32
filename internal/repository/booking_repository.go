package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"

    "github.com/showgrid/seatlock/internal/lock"
    "github.com/showgrid/seatlock/internal/model"
)

// BookingRepo implements lock.Bookings on the bookings and
// booking_seats tables.  Bookings are append-only; nothing in this
// service ever updates or deletes a committed row.
//
// Schema expectations:
//
//	CREATE TABLE bookings (
//	    id                 CHAR(36)        NOT NULL PRIMARY KEY,
//	    show_id            BIGINT UNSIGNED NOT NULL,
//	    holder_id          VARCHAR(128)    NOT NULL,
//	    total_amount_cents INT UNSIGNED    NOT NULL,
//	    payment_ref        VARCHAR(191)    NOT NULL DEFAULT '',
//	    created_at         DATETIME        NOT NULL DEFAULT UTC_TIMESTAMP()
//	);
//	CREATE TABLE booking_seats (
//	    booking_id  CHAR(36)        NOT NULL,
//	    show_id     BIGINT UNSIGNED NOT NULL,
//	    seat_id     BIGINT UNSIGNED NOT NULL,
//	    price_cents INT UNSIGNED    NOT NULL,
//	    PRIMARY KEY (show_id, seat_id),
//	    KEY idx_booking_seats_booking (booking_id)
//	);
//
// The primary key on booking_seats (show_id, seat_id) is the final
// guard against a double booking: even if every re-check were
// defeated, the second insert for a seat fails.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Finalize implements lock.Bookings.  One transaction re-verifies
// availability with the relevant rows locked, writes the booking and
// its seats, and deletes the consumed locks.  A failed re-check
// writes nothing and returns an UnavailableError naming the seats
// that are gone.
func (r *BookingRepo) Finalize(ctx context.Context, b *model.Booking, seats []model.BookingSeat) error {
    if len(seats) == 0 {
        return lock.ErrNoSeats
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return fmt.Errorf("begin finalize transaction: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    seatIDs := make([]uint64, 0, len(seats))
    for _, s := range seats {
        seatIDs = append(seatIDs, s.SeatID)
    }
    placeholders, args := inClause(b.ShowID, seatIDs)

    // Lock and read the current holds on these seats.  Expired rows
    // are ignored here; they are logically absent and the delete at
    // the end consumes them along with our own.
    holders := make(map[uint64]string, len(seatIDs))
    rows, err := tx.QueryContext(ctx,
        `SELECT seat_id, holder_id FROM seat_locks
         WHERE show_id = ? AND seat_id IN (`+placeholders+`) AND expires_at > UTC_TIMESTAMP()
         FOR UPDATE`,
        args...,
    )
    if err != nil {
        return fmt.Errorf("lock seat rows: %w", err)
    }
    for rows.Next() {
        var seatID uint64
        var holder string
        if scanErr := rows.Scan(&seatID, &holder); scanErr != nil {
            rows.Close()
            return scanErr
        }
        holders[seatID] = holder
    }
    if err := rows.Close(); err != nil {
        return err
    }

    // Seats already part of a booking.
    bookedRows, err := tx.QueryContext(ctx,
        `SELECT seat_id FROM booking_seats
         WHERE show_id = ? AND seat_id IN (`+placeholders+`)
         FOR UPDATE`,
        args...,
    )
    if err != nil {
        return fmt.Errorf("check booked seats: %w", err)
    }
    booked := make(map[uint64]struct{})
    for bookedRows.Next() {
        var seatID uint64
        if scanErr := bookedRows.Scan(&seatID); scanErr != nil {
            bookedRows.Close()
            return scanErr
        }
        booked[seatID] = struct{}{}
    }
    if err := bookedRows.Close(); err != nil {
        return err
    }

    // Re-check at commit time: each seat must be live-locked by the
    // booking's holder, or unheld and unbooked.
    var unavailable []uint64
    for _, seatID := range seatIDs {
        if _, ok := booked[seatID]; ok {
            unavailable = append(unavailable, seatID)
            continue
        }
        if holder, ok := holders[seatID]; ok && holder != b.HolderID {
            unavailable = append(unavailable, seatID)
        }
    }
    if len(unavailable) > 0 {
        return &lock.UnavailableError{SeatIDs: unavailable}
    }

    if _, err := tx.ExecContext(ctx,
        `INSERT INTO bookings (id, show_id, holder_id, total_amount_cents, payment_ref, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
        b.ID, b.ShowID, b.HolderID, b.TotalAmountCents, b.PaymentRef, formatTime(b.CreatedAt),
    ); err != nil {
        return fmt.Errorf("insert booking: %w", err)
    }

    insert := `INSERT INTO booking_seats (booking_id, show_id, seat_id, price_cents) VALUES `
    insertArgs := make([]interface{}, 0, len(seats)*4)
    for i, s := range seats {
        if i > 0 {
            insert += ","
        }
        insert += "(?, ?, ?, ?)"
        insertArgs = append(insertArgs, s.BookingID, s.ShowID, s.SeatID, s.PriceCents)
    }
    if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            // A concurrent finalize slipped in; the unique key caught it.
            return &lock.UnavailableError{SeatIDs: seatIDs}
        }
        return fmt.Errorf("insert booking seats: %w", err)
    }

    // Consume the holder's locks (and any expired leftovers) on the
    // now-booked seats.
    if _, err := tx.ExecContext(ctx,
        `DELETE FROM seat_locks WHERE show_id = ? AND seat_id IN (`+placeholders+`)`,
        args...,
    ); err != nil {
        return fmt.Errorf("consume seat locks: %w", err)
    }

    if err := tx.Commit(); err != nil {
        return fmt.Errorf("commit finalize transaction: %w", err)
    }
    committed = true
    return nil
}

// inClause builds the "?, ?, ..." placeholder list and argument slice
// for queries filtering one show by a set of seats.
func inClause(showID uint64, seatIDs []uint64) (string, []interface{}) {
    placeholders := ""
    args := make([]interface{}, 0, len(seatIDs)+1)
    args = append(args, showID)
    for i, id := range seatIDs {
        if i > 0 {
            placeholders += ","
        }
        placeholders += "?"
        args = append(args, id)
    }
    return placeholders, args
}
