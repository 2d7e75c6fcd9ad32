package lock

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/showgrid/seatlock/internal/model"
)

type seatKey struct {
    showID uint64
    seatID uint64
}

// MemoryStore is an in-process implementation of Store and Bookings.
// It honors the same TTL and atomicity semantics as the MySQL
// implementation but shares nothing across processes, so it is only
// suitable for single-instance development (LOCK_STORE=memory) and
// for the test suite.
type MemoryStore struct {
    mu       sync.Mutex
    locks    map[seatKey]model.SeatLock
    booked   map[seatKey]string // seat -> booking ID
    bookings map[string]model.Booking
    now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        locks:    make(map[seatKey]model.SeatLock),
        booked:   make(map[seatKey]string),
        bookings: make(map[string]model.Booking),
        now:      func() time.Time { return time.Now().UTC() },
    }
}

// TryAcquire implements Store.  The whole check-and-insert runs under
// one mutex hold, giving the same first-writer-wins ordering as the
// database's unique key.
func (s *MemoryStore) TryAcquire(_ context.Context, showID, seatID uint64, holderID string, ttl time.Duration) (AcquireResult, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    k := seatKey{showID, seatID}
    if _, ok := s.booked[k]; ok {
        return AcquireResult{Acquired: false}, nil
    }
    now := s.now()
    if existing, ok := s.locks[k]; ok && existing.Live(now) {
        if existing.HolderID == holderID {
            // idempotent re-select; the TTL is not extended
            return AcquireResult{Acquired: true}, nil
        }
        return AcquireResult{Acquired: false, HolderID: existing.HolderID}, nil
    }
    s.locks[k] = model.SeatLock{
        ShowID:    showID,
        SeatID:    seatID,
        HolderID:  holderID,
        CreatedAt: now,
        ExpiresAt: now.Add(ttl),
    }
    return AcquireResult{Acquired: true}, nil
}

// Release implements Store.  An expired lock is already logically
// absent, so releasing it reports NotFound and leaves the row for the
// reaper to announce.
func (s *MemoryStore) Release(_ context.Context, showID, seatID uint64, holderID string) (ReleaseOutcome, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    k := seatKey{showID, seatID}
    existing, ok := s.locks[k]
    if !ok || !existing.Live(s.now()) {
        return NotFound, nil
    }
    if existing.HolderID != holderID {
        return NotOwner, nil
    }
    delete(s.locks, k)
    return Released, nil
}

// ListLive implements Store.
func (s *MemoryStore) ListLive(_ context.Context, showID uint64) ([]model.SeatLock, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    now := s.now()
    var out []model.SeatLock
    for k, l := range s.locks {
        if k.showID == showID && l.Live(now) {
            out = append(out, l)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
    return out, nil
}

// DeleteExpired implements Store.
func (s *MemoryStore) DeleteExpired(_ context.Context) ([]model.SeatLock, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    now := s.now()
    var removed []model.SeatLock
    for k, l := range s.locks {
        if !l.Live(now) {
            removed = append(removed, l)
            delete(s.locks, k)
        }
    }
    sort.Slice(removed, func(i, j int) bool {
        if removed[i].ShowID != removed[j].ShowID {
            return removed[i].ShowID < removed[j].ShowID
        }
        return removed[i].SeatID < removed[j].SeatID
    })
    return removed, nil
}

// Finalize implements Bookings.  The re-check and the writes happen
// under one mutex hold, mirroring the SELECT ... FOR UPDATE
// transaction of the MySQL implementation.
func (s *MemoryStore) Finalize(_ context.Context, b *model.Booking, seats []model.BookingSeat) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    now := s.now()
    var bad []uint64
    for _, seat := range seats {
        k := seatKey{seat.ShowID, seat.SeatID}
        if _, ok := s.booked[k]; ok {
            bad = append(bad, seat.SeatID)
            continue
        }
        if l, ok := s.locks[k]; ok && l.Live(now) && l.HolderID != b.HolderID {
            bad = append(bad, seat.SeatID)
        }
    }
    if len(bad) > 0 {
        return &UnavailableError{SeatIDs: bad}
    }
    for _, seat := range seats {
        k := seatKey{seat.ShowID, seat.SeatID}
        s.booked[k] = b.ID
        delete(s.locks, k)
    }
    s.bookings[b.ID] = *b
    return nil
}

// BookedSeatIDs returns the permanently booked seats of a show.  It
// backs the Booked hook of the static catalog in memory mode.
func (s *MemoryStore) BookedSeatIDs(_ context.Context, showID uint64) ([]uint64, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []uint64
    for k := range s.booked {
        if k.showID == showID {
            out = append(out, k.seatID)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out, nil
}
