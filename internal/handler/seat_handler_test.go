package handler_test

import (
    "bufio"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/showgrid/seatlock/internal/catalog"
    "github.com/showgrid/seatlock/internal/handler"
    "github.com/showgrid/seatlock/internal/lock"
    "github.com/showgrid/seatlock/internal/realtime"
    "github.com/showgrid/seatlock/internal/router"
)

const (
    testSecret = "test-secret"
    testShow   = "/v1/shows/1"
)

// newTestServer wires the full HTTP stack on the in-memory backend,
// the same composition cmd/server uses with LOCK_STORE=memory.
func newTestServer(t *testing.T) (*echo.Echo, *realtime.Broadcaster) {
    t.Helper()
    store := lock.NewMemoryStore()
    cat := catalog.NewDemo(1, 1500)
    cat.Booked = store.BookedSeatIDs

    broadcaster := realtime.NewBroadcaster()
    bridge := realtime.NewBridge(nil, broadcaster)

    manager := lock.NewManager(store, cat, bridge, 5*time.Minute)
    finalizer := lock.NewFinalizer(store, cat, bridge)

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e)
    router.RegisterSeats(e, handler.NewSeatHandler(manager, finalizer, cat), handler.NewEventsHandler(broadcaster), testSecret, nil)
    return e, broadcaster
}

func bearerToken(t *testing.T, subject string) string {
    t.Helper()
    tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": subject,
        "exp": time.Now().Add(time.Hour).Unix(),
    })
    signed, err := tok.SignedString([]byte(testSecret))
    require.NoError(t, err)
    return "Bearer " + signed
}

func doJSON(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
    var reader *strings.Reader
    if body == "" {
        reader = strings.NewReader("")
    } else {
        reader = strings.NewReader(body)
    }
    req := httptest.NewRequest(method, path, reader)
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    if token != "" {
        req.Header.Set(echo.HeaderAuthorization, token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
    t.Helper()
    var out map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
    return out
}

func TestHealthz(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodGet, "/healthz", "", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "ok", rec.Body.String())
}

func TestSelectSeats_RequiresToken(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", "", `{"seat_ids":[1]}`)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelectSeats_RejectsBadToken(t *testing.T) {
    e, _ := newTestServer(t)
    tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "h1"})
    signed, err := tok.SignedString([]byte("wrong-secret"))
    require.NoError(t, err)
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", "Bearer "+signed, `{"seat_ids":[1]}`)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelectSeats_Success(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h1"), `{"seat_ids":[1,2]}`)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    body := decode(t, rec)
    assert.Equal(t, []any{float64(1), float64(2)}, body["seat_ids"])
    heldUntil, err := time.Parse(time.RFC3339, body["held_until"].(string))
    require.NoError(t, err)
    assert.True(t, heldUntil.After(time.Now()))
}

func TestSelectSeats_ConflictNamesSeats(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h1"), `{"seat_ids":[3]}`)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h2"), `{"seat_ids":[3,4]}`)
    require.Equal(t, http.StatusConflict, rec.Code)
    body := decode(t, rec)
    assert.Equal(t, []any{float64(3)}, body["conflicting_seat_ids"])

    // All-or-nothing: seat 4 stayed free for anyone.
    rec = doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h3"), `{"seat_ids":[4]}`)
    assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSelectSeats_EmptyBatch(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h1"), `{"seat_ids":[]}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectSeats_UnknownShow(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, "/v1/shows/42/seats/select", bearerToken(t, "h1"), `{"seat_ids":[1]}`)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectSeats_InvalidShowID(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, "/v1/shows/abc/seats/select", bearerToken(t, "h1"), `{"seat_ids":[1]}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseSeats_Idempotent(t *testing.T) {
    e, _ := newTestServer(t)
    token := bearerToken(t, "h1")
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", token, `{"seat_ids":[5]}`)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = doJSON(e, http.MethodPost, testShow+"/seats/release", token, `{"seat_ids":[5]}`)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, float64(1), decode(t, rec)["released"])

    rec = doJSON(e, http.MethodPost, testShow+"/seats/release", token, `{"seat_ids":[5]}`)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, float64(0), decode(t, rec)["released"])
}

func TestLockedSeats_SnapshotForReconciliation(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodGet, testShow+"/seats/locked", bearerToken(t, "viewer"), "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, []any{}, decode(t, rec)["locked_seats"], "empty snapshot must be a JSON array")

    rec = doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h1"), `{"seat_ids":[2,1]}`)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = doJSON(e, http.MethodGet, testShow+"/seats/locked", bearerToken(t, "viewer"), "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, []any{float64(1), float64(2)}, decode(t, rec)["locked_seats"])
}

func TestShowSeats_Statuses(t *testing.T) {
    e, _ := newTestServer(t)
    holder := bearerToken(t, "h1")
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", holder, `{"seat_ids":[1,2]}`)
    require.Equal(t, http.StatusOK, rec.Code)
    rec = doJSON(e, http.MethodPost, testShow+"/finalize", holder, `{"seat_ids":[1],"payment_ref":"pay-1"}`)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

    rec = doJSON(e, http.MethodGet, testShow+"/seats", bearerToken(t, "viewer"), "")
    require.Equal(t, http.StatusOK, rec.Code)

    var body struct {
        Seats []struct {
            SeatID     uint64 `json:"seat_id"`
            RowLabel   string `json:"row_label"`
            PriceCents uint32 `json:"price_cents"`
            Status     string `json:"status"`
        } `json:"seats"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    require.Len(t, body.Seats, 100)

    statuses := map[uint64]string{}
    for _, s := range body.Seats {
        statuses[s.SeatID] = s.Status
    }
    assert.Equal(t, "BOOKED", statuses[1])
    assert.Equal(t, "HELD", statuses[2])
    assert.Equal(t, "FREE", statuses[3])
    assert.Equal(t, "A", body.Seats[0].RowLabel)
    assert.Equal(t, uint32(1500), body.Seats[0].PriceCents)
}

func TestFinalize_SuccessAndDoubleBookGuard(t *testing.T) {
    e, _ := newTestServer(t)
    h1 := bearerToken(t, "h1")
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", h1, `{"seat_ids":[7,8]}`)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = doJSON(e, http.MethodPost, testShow+"/finalize", h1, `{"seat_ids":[7,8],"payment_ref":"pay-7"}`)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    body := decode(t, rec)
    assert.NotEmpty(t, body["booking_id"])
    assert.Equal(t, float64(3000), body["total_amount_cents"])

    // Booked seats are permanent conflicts for everyone else.
    rec = doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h2"), `{"seat_ids":[7]}`)
    require.Equal(t, http.StatusConflict, rec.Code)
}

func TestFinalize_WithoutHoldOnContestedSeat(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, testShow+"/seats/select", bearerToken(t, "h1"), `{"seat_ids":[9]}`)
    require.Equal(t, http.StatusOK, rec.Code)

    // h2 never held seat 9; the commit-time re-check rejects it.
    rec = doJSON(e, http.MethodPost, testShow+"/finalize", bearerToken(t, "h2"), `{"seat_ids":[9]}`)
    require.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, []any{float64(9)}, decode(t, rec)["seat_ids"])
}

func TestFinalize_UnknownSeat(t *testing.T) {
    e, _ := newTestServer(t)
    rec := doJSON(e, http.MethodPost, testShow+"/finalize", bearerToken(t, "h1"), `{"seat_ids":[1000]}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsStream_DeliversAndFilters(t *testing.T) {
    e, broadcaster := newTestServer(t)

    srv := httptest.NewServer(e)
    defer srv.Close()

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+testShow+"/events", nil)
    require.NoError(t, err)
    req.Header.Set(echo.HeaderAuthorization, bearerToken(t, "h1"))

    resp, err := http.DefaultClient.Do(req)
    require.NoError(t, err)
    defer func() { _ = resp.Body.Close() }()
    require.Equal(t, http.StatusOK, resp.StatusCode)
    require.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

    // Wait for the subscription before publishing.
    require.Eventually(t, func() bool {
        return broadcaster.SubscriberCount(1) == 1
    }, time.Second, 5*time.Millisecond)

    // A scoped event for another holder must be filtered out; the
    // broadcast that follows is the first data frame on the wire.
    broadcaster.Publish(realtime.Event{Type: realtime.EventSeatConflict, ShowID: 1, SeatIDs: []uint64{4}, HolderID: "h2"})
    broadcaster.Publish(realtime.Event{Type: realtime.EventSeatsSelected, ShowID: 1, SeatIDs: []uint64{4}, HolderID: "h2"})

    scanner := bufio.NewScanner(resp.Body)
    var data string
    for scanner.Scan() {
        line := scanner.Text()
        if strings.HasPrefix(line, "data: ") {
            data = strings.TrimPrefix(line, "data: ")
            break
        }
    }
    require.NotEmpty(t, data, "no event frame received")

    var got realtime.Event
    require.NoError(t, json.Unmarshal([]byte(data), &got))
    assert.Equal(t, realtime.EventSeatsSelected, got.Type)
    assert.Equal(t, []uint64{4}, got.SeatIDs)
}
