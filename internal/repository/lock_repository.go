// Package repository contains the MySQL adapters behind the lock,
// booking and catalog ports.  All timestamps are compared in UTC on
// the database side (UTC_TIMESTAMP()) so that every server instance
// sharing the store agrees on expiry regardless of its own clock.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/showgrid/seatlock/internal/lock"
    "github.com/showgrid/seatlock/internal/model"
)

// mysqlDuplicateEntry is the server error code raised when an insert
// violates a unique key.
const mysqlDuplicateEntry = 1062

// LockRepo implements lock.Store on the seat_locks table.
//
// Schema expectations:
//
//	CREATE TABLE seat_locks (
//	    show_id    BIGINT UNSIGNED NOT NULL,
//	    seat_id    BIGINT UNSIGNED NOT NULL,
//	    holder_id  VARCHAR(128)    NOT NULL,
//	    created_at DATETIME        NOT NULL DEFAULT UTC_TIMESTAMP(),
//	    expires_at DATETIME        NOT NULL,
//	    PRIMARY KEY (show_id, seat_id),
//	    KEY idx_seat_locks_expires (expires_at)
//	);
//
// The primary key on (show_id, seat_id) is what makes TryAcquire
// atomic across independently deployed server processes: two
// concurrent inserts for the same seat cannot both succeed, and the
// takeover UPDATE is guarded by the expiry predicate so only one of
// two racing takeovers observes rows affected.
type LockRepo struct {
    db *sql.DB
}

// NewLockRepo returns a LockRepo bound to the provided database.
func NewLockRepo(db *sql.DB) *LockRepo { return &LockRepo{db: db} }

// TryAcquire implements lock.Store.  It first attempts a plain
// insert; a duplicate-key error means a row exists, in which case a
// conditional UPDATE takes the lock over only if the row has
// expired.  Re-acquiring an own live lock succeeds without touching
// the row, so the TTL is never silently extended.
func (r *LockRepo) TryAcquire(ctx context.Context, showID, seatID uint64, holderID string, ttl time.Duration) (lock.AcquireResult, error) {
    expiresAt := time.Now().UTC().Add(ttl)
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO seat_locks (show_id, seat_id, holder_id, created_at, expires_at)
         VALUES (?, ?, ?, UTC_TIMESTAMP(), ?)`,
        showID, seatID, holderID, formatTime(expiresAt),
    )
    if err == nil {
        return lock.AcquireResult{Acquired: true}, nil
    }
    var me *mysql.MySQLError
    if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
        return lock.AcquireResult{}, fmt.Errorf("insert seat lock: %w", err)
    }

    // A row exists.  Take it over only if it has lapsed.
    res, err := r.db.ExecContext(ctx,
        `UPDATE seat_locks
         SET holder_id = ?, created_at = UTC_TIMESTAMP(), expires_at = ?
         WHERE show_id = ? AND seat_id = ? AND expires_at <= UTC_TIMESTAMP()`,
        holderID, formatTime(expiresAt), showID, seatID,
    )
    if err != nil {
        return lock.AcquireResult{}, fmt.Errorf("take over seat lock: %w", err)
    }
    if n, err := res.RowsAffected(); err == nil && n > 0 {
        return lock.AcquireResult{Acquired: true}, nil
    }

    // Still live: success iff we already own it.
    var holder string
    err = r.db.QueryRowContext(ctx,
        `SELECT holder_id FROM seat_locks
         WHERE show_id = ? AND seat_id = ? AND expires_at > UTC_TIMESTAMP()`,
        showID, seatID,
    ).Scan(&holder)
    switch {
    case errors.Is(err, sql.ErrNoRows):
        // Expired between our UPDATE and SELECT and not yet retaken;
        // report the lost race, the caller retries from scratch.
        return lock.AcquireResult{Acquired: false}, nil
    case err != nil:
        return lock.AcquireResult{}, fmt.Errorf("read seat lock holder: %w", err)
    case holder == holderID:
        return lock.AcquireResult{Acquired: true}, nil
    default:
        return lock.AcquireResult{Acquired: false, HolderID: holder}, nil
    }
}

// Release implements lock.Store.  Only a live lock owned by the
// caller is deleted; expired rows are left for the reaper so the
// holder still gets its auto-release notification.
func (r *LockRepo) Release(ctx context.Context, showID, seatID uint64, holderID string) (lock.ReleaseOutcome, error) {
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM seat_locks
         WHERE show_id = ? AND seat_id = ? AND holder_id = ? AND expires_at > UTC_TIMESTAMP()`,
        showID, seatID, holderID,
    )
    if err != nil {
        return lock.NotFound, fmt.Errorf("delete seat lock: %w", err)
    }
    if n, err := res.RowsAffected(); err == nil && n > 0 {
        return lock.Released, nil
    }
    var holder string
    err = r.db.QueryRowContext(ctx,
        `SELECT holder_id FROM seat_locks
         WHERE show_id = ? AND seat_id = ? AND expires_at > UTC_TIMESTAMP()`,
        showID, seatID,
    ).Scan(&holder)
    switch {
    case errors.Is(err, sql.ErrNoRows):
        return lock.NotFound, nil
    case err != nil:
        return lock.NotFound, fmt.Errorf("read seat lock holder: %w", err)
    default:
        return lock.NotOwner, nil
    }
}

// ListLive implements lock.Store.
func (r *LockRepo) ListLive(ctx context.Context, showID uint64) ([]model.SeatLock, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT show_id, seat_id, holder_id, created_at, expires_at
         FROM seat_locks
         WHERE show_id = ? AND expires_at > UTC_TIMESTAMP()
         ORDER BY seat_id`,
        showID,
    )
    if err != nil {
        return nil, fmt.Errorf("list live locks: %w", err)
    }
    defer rows.Close()
    var locks []model.SeatLock
    for rows.Next() {
        var l model.SeatLock
        if err := rows.Scan(&l.ShowID, &l.SeatID, &l.HolderID, &l.CreatedAt, &l.ExpiresAt); err != nil {
            return nil, err
        }
        locks = append(locks, l)
    }
    return locks, rows.Err()
}

// DeleteExpired implements lock.Store.  The select and delete run in
// one transaction with the rows locked, so every removed lock is
// reported exactly once even when several instances sweep at the
// same moment.
func (r *LockRepo) DeleteExpired(ctx context.Context) ([]model.SeatLock, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, fmt.Errorf("begin reap transaction: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    rows, err := tx.QueryContext(ctx,
        `SELECT show_id, seat_id, holder_id, created_at, expires_at
         FROM seat_locks
         WHERE expires_at <= UTC_TIMESTAMP()
         ORDER BY show_id, seat_id
         FOR UPDATE SKIP LOCKED`,
    )
    if err != nil {
        return nil, fmt.Errorf("select expired locks: %w", err)
    }
    var removed []model.SeatLock
    for rows.Next() {
        var l model.SeatLock
        if scanErr := rows.Scan(&l.ShowID, &l.SeatID, &l.HolderID, &l.CreatedAt, &l.ExpiresAt); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        removed = append(removed, l)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(removed) == 0 {
        return nil, tx.Commit()
    }
    for _, l := range removed {
        if _, err := tx.ExecContext(ctx,
            `DELETE FROM seat_locks WHERE show_id = ? AND seat_id = ?`,
            l.ShowID, l.SeatID,
        ); err != nil {
            return nil, fmt.Errorf("delete expired lock: %w", err)
        }
    }
    if err := tx.Commit(); err != nil {
        return nil, fmt.Errorf("commit reap transaction: %w", err)
    }
    committed = true
    return removed, nil
}

// formatTime renders a timestamp the way the DATETIME columns expect.
func formatTime(t time.Time) string {
    return t.UTC().Format("2006-01-02 15:04:05")
}
