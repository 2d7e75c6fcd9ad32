package lock

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/showgrid/seatlock/internal/catalog"
    "github.com/showgrid/seatlock/internal/realtime"
)

func TestSweep_RemovesExpiredAndAnnounces(t *testing.T) {
    m, store, sink := newTestManager(t)
    ctx := context.Background()

    base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
    store.now = func() time.Time { return base }
    _, err := m.SelectSeats(ctx, testShowID, "h1", []uint64{1, 2})
    require.NoError(t, err)
    _, err = m.SelectSeats(ctx, testShowID, "h2", []uint64{3})
    require.NoError(t, err)

    // h3's hold is younger and must survive the sweep.
    store.now = func() time.Time { return base.Add(testTTL - time.Minute) }
    _, err = m.SelectSeats(ctx, testShowID, "h3", []uint64{4})
    require.NoError(t, err)

    store.now = func() time.Time { return base.Add(testTTL + time.Second) }
    reaper := NewReaper(store, sink, time.Minute)
    reaper.Sweep(ctx)

    locked, err := m.LockedSeats(ctx, testShowID)
    require.NoError(t, err)
    assert.Equal(t, []uint64{4}, locked)

    // One scoped warning per affected holder.
    auto := sink.byType(realtime.EventSeatsAutoReleased)
    require.Len(t, auto, 2)
    byHolder := map[string][]uint64{}
    for _, e := range auto {
        assert.Equal(t, testShowID, e.ShowID)
        assert.Equal(t, "your seat selection expired", e.Message)
        byHolder[e.HolderID] = e.SeatIDs
    }
    assert.Equal(t, []uint64{1, 2}, byHolder["h1"])
    assert.Equal(t, []uint64{3}, byHolder["h2"])

    // One broadcast per show listing every freed seat.
    avail := sink.byType(realtime.EventSeatsAvailable)
    require.Len(t, avail, 1)
    assert.Equal(t, testShowID, avail[0].ShowID)
    assert.ElementsMatch(t, []uint64{1, 2, 3}, avail[0].SeatIDs)
    assert.Empty(t, avail[0].HolderID)
}

func TestSweep_NothingExpired(t *testing.T) {
    m, store, sink := newTestManager(t)
    ctx := context.Background()
    _, err := m.SelectSeats(ctx, testShowID, "h1", []uint64{1})
    require.NoError(t, err)

    reaper := NewReaper(store, sink, time.Minute)
    reaper.Sweep(ctx)

    assert.Empty(t, sink.byType(realtime.EventSeatsAutoReleased))
    assert.Empty(t, sink.byType(realtime.EventSeatsAvailable))
}

func TestSweep_StoreErrorIsNotFatal(t *testing.T) {
    sink := &captureSink{}
    reaper := NewReaper(&failingStore{}, sink, time.Minute)

    // Must not panic and must not publish anything.
    reaper.Sweep(context.Background())
    assert.Empty(t, sink.events)
}

func TestReaperRun_StopsOnCancel(t *testing.T) {
    store := NewMemoryStore()
    reaper := NewReaper(store, &captureSink{}, time.Millisecond)

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        reaper.Run(ctx)
        close(done)
    }()

    time.Sleep(10 * time.Millisecond)
    cancel()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("reaper did not stop after context cancellation")
    }
}

func TestReaperRun_SweepsOnTick(t *testing.T) {
    m, store, sink := newTestManager(t)
    ctx := context.Background()

    base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
    store.now = func() time.Time { return base }
    _, err := m.SelectSeats(ctx, testShowID, "h1", []uint64{1})
    require.NoError(t, err)
    store.now = func() time.Time { return base.Add(testTTL + time.Second) }

    runCtx, cancel := context.WithCancel(context.Background())
    defer cancel()
    reaper := NewReaper(store, sink, 5*time.Millisecond)
    go reaper.Run(runCtx)

    require.Eventually(t, func() bool {
        return len(sink.byType(realtime.EventSeatsAvailable)) > 0
    }, time.Second, 5*time.Millisecond)
}

func TestNewReaper_PanicsOnBadArguments(t *testing.T) {
    store := NewMemoryStore()
    sink := &captureSink{}
    assert.Panics(t, func() { NewReaper(nil, sink, time.Minute) })
    assert.Panics(t, func() { NewReaper(store, nil, time.Minute) })
    assert.Panics(t, func() { NewReaper(store, sink, 0) })
}

// Ensure the static demo catalog stays a valid fixture for these tests.
func TestDemoCatalogLayout(t *testing.T) {
    cat := catalog.NewDemo(testShowID, 1500)
    show, err := cat.GetShow(context.Background(), testShowID)
    require.NoError(t, err)
    assert.Equal(t, uint32(100), show.TotalSeats)
    seats, err := cat.Seats(context.Background(), testShowID)
    require.NoError(t, err)
    require.Len(t, seats, 100)
    assert.Equal(t, "A", seats[0].RowLabel)
    assert.Equal(t, "J", seats[99].RowLabel)
    assert.Equal(t, uint64(1), seats[0].SeatID)
    assert.Equal(t, uint64(100), seats[99].SeatID)
}
