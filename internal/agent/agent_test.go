package agent

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/showgrid/seatlock/internal/realtime"
)

const agentShowID = uint64(1)

func newTestAgent(snapshot SnapshotFunc) (*Agent, chan realtime.Event) {
    events := make(chan realtime.Event, 8)
    if snapshot == nil {
        snapshot = func(context.Context) ([]uint64, error) { return nil, nil }
    }
    return New(agentShowID, "me", events, snapshot, time.Minute), events
}

func TestApply_TracksSelections(t *testing.T) {
    a, _ := newTestAgent(nil)

    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{2, 1}, HolderID: "me"})
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{5}, HolderID: "other"})

    assert.Equal(t, []uint64{1, 2}, a.SelectedByMe())
    assert.Equal(t, []uint64{5}, a.LockedByOthers())
    assert.Empty(t, a.Booked())
}

func TestApply_ReleaseAndAvailableFreeSeats(t *testing.T) {
    a, _ := newTestAgent(nil)
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{5, 6}, HolderID: "other"})
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{1}, HolderID: "me"})

    a.Apply(realtime.Event{Type: realtime.EventSeatsReleased, ShowID: agentShowID, SeatIDs: []uint64{5}, HolderID: "other"})
    assert.Equal(t, []uint64{6}, a.LockedByOthers())

    a.Apply(realtime.Event{Type: realtime.EventSeatsReleased, ShowID: agentShowID, SeatIDs: []uint64{1}, HolderID: "me"})
    assert.Empty(t, a.SelectedByMe())

    a.Apply(realtime.Event{Type: realtime.EventSeatsAvailable, ShowID: agentShowID, SeatIDs: []uint64{6}})
    assert.Empty(t, a.LockedByOthers())
}

func TestApply_BookedIsTerminal(t *testing.T) {
    a, _ := newTestAgent(nil)
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{3}, HolderID: "other"})

    a.Apply(realtime.Event{Type: realtime.EventSeatsBooked, ShowID: agentShowID, SeatIDs: []uint64{3}, HolderID: "other"})
    assert.Equal(t, []uint64{3}, a.Booked())
    assert.Empty(t, a.LockedByOthers())
}

func TestApply_IgnoresOtherShows(t *testing.T) {
    a, _ := newTestAgent(nil)
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: 99, SeatIDs: []uint64{1}, HolderID: "other"})
    assert.Empty(t, a.LockedByOthers())
}

func TestApply_AutoReleaseOnlyForThisHolder(t *testing.T) {
    a, _ := newTestAgent(nil)
    var expired []uint64
    a.OnExpired = func(seatIDs []uint64, _ string) { expired = seatIDs }

    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{1, 2}, HolderID: "me"})

    // Somebody else's expiry warning must not touch our selection.
    a.Apply(realtime.Event{Type: realtime.EventSeatsAutoReleased, ShowID: agentShowID, SeatIDs: []uint64{1}, HolderID: "other"})
    assert.Equal(t, []uint64{1, 2}, a.SelectedByMe())
    assert.Nil(t, expired)

    a.Apply(realtime.Event{Type: realtime.EventSeatsAutoReleased, ShowID: agentShowID, SeatIDs: []uint64{1, 2}, HolderID: "me", Message: "your seat selection expired"})
    assert.Empty(t, a.SelectedByMe())
    assert.Equal(t, []uint64{1, 2}, expired)
}

func TestApply_ConflictHook(t *testing.T) {
    a, _ := newTestAgent(nil)
    var gotSeats []uint64
    var gotMsg string
    a.OnConflict = func(seatIDs []uint64, message string) {
        gotSeats, gotMsg = seatIDs, message
    }

    a.Apply(realtime.Event{Type: realtime.EventSeatConflict, ShowID: agentShowID, SeatIDs: []uint64{7}, HolderID: "other", Message: "taken"})
    assert.Nil(t, gotSeats, "foreign conflicts are not ours")

    a.Apply(realtime.Event{Type: realtime.EventSeatConflict, ShowID: agentShowID, SeatIDs: []uint64{7}, HolderID: "me", Message: "taken"})
    assert.Equal(t, []uint64{7}, gotSeats)
    assert.Equal(t, "taken", gotMsg)
}

func TestReconcile_ReplacesForeignLocks(t *testing.T) {
    snapshot := func(context.Context) ([]uint64, error) { return []uint64{1, 2, 3}, nil }
    a, _ := newTestAgent(snapshot)

    // Seat 1 is ours, seat 9 is stale local state the snapshot no
    // longer contains.
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{1}, HolderID: "me"})
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{9}, HolderID: "other"})

    require.NoError(t, a.Reconcile(context.Background()))
    assert.Equal(t, []uint64{2, 3}, a.LockedByOthers())
    assert.Equal(t, []uint64{1}, a.SelectedByMe())
}

func TestReconcile_SnapshotError(t *testing.T) {
    wantErr := errors.New("server unreachable")
    a, _ := newTestAgent(func(context.Context) ([]uint64, error) { return nil, wantErr })
    a.Apply(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{4}, HolderID: "other"})

    assert.ErrorIs(t, a.Reconcile(context.Background()), wantErr)
    // Local state is untouched on a failed poll.
    assert.Equal(t, []uint64{4}, a.LockedByOthers())
}

func TestRun_AppliesStreamedEventsAndStops(t *testing.T) {
    a, events := newTestAgent(nil)

    changed := make(chan struct{}, 8)
    a.OnChange = func() {
        select {
        case changed <- struct{}{}:
        default:
        }
    }

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan error, 1)
    go func() { done <- a.Run(ctx) }()

    events <- realtime.Event{Type: realtime.EventSeatsSelected, ShowID: agentShowID, SeatIDs: []uint64{8}, HolderID: "other"}
    require.Eventually(t, func() bool {
        locked := a.LockedByOthers()
        return len(locked) == 1 && locked[0] == 8
    }, time.Second, 5*time.Millisecond)

    cancel()
    select {
    case err := <-done:
        assert.ErrorIs(t, err, context.Canceled)
    case <-time.After(time.Second):
        t.Fatal("agent did not stop after context cancellation")
    }
}

func TestRun_ReturnsWhenStreamCloses(t *testing.T) {
    a, events := newTestAgent(nil)
    done := make(chan error, 1)
    go func() { done <- a.Run(context.Background()) }()

    close(events)
    select {
    case err := <-done:
        assert.NoError(t, err)
    case <-time.After(time.Second):
        t.Fatal("agent did not return after its event stream closed")
    }
}
