package handler

import (
    "encoding/json"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/showgrid/seatlock/internal/middleware"
    "github.com/showgrid/seatlock/internal/realtime"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 25 * time.Second

// EventsHandler streams a show's seat events to one viewer over
// Server-Sent Events.  Delivery is best-effort and at-most-once: a
// disconnected viewer misses events until it reconnects and
// re-syncs from the locked-seats snapshot.  Holder-scoped events are
// forwarded only when the stream's authenticated holder matches.
type EventsHandler struct {
    Broadcaster *realtime.Broadcaster
}

// NewEventsHandler constructs an EventsHandler.
func NewEventsHandler(b *realtime.Broadcaster) *EventsHandler {
    if b == nil {
        panic("nil broadcaster passed to NewEventsHandler")
    }
    return &EventsHandler{Broadcaster: b}
}

// Stream handles GET /v1/shows/:id/events.
func (h *EventsHandler) Stream(c echo.Context) error {
    holderID := middleware.HolderID(c)
    if holderID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    showID, err := parseShowID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
    }

    resp := c.Response()
    resp.Header().Set(echo.HeaderContentType, "text/event-stream")
    resp.Header().Set("Cache-Control", "no-store")
    resp.Header().Set("Connection", "keep-alive")
    resp.WriteHeader(http.StatusOK)

    events := h.Broadcaster.Subscribe(showID)
    defer h.Broadcaster.Unsubscribe(showID, events)

    // Confirm the subscription immediately so clients can tell a
    // stalled proxy from a working stream.
    if _, err := resp.Write([]byte(": connected\n\n")); err != nil {
        return nil
    }
    resp.Flush()

    heartbeat := time.NewTicker(heartbeatInterval)
    defer heartbeat.Stop()
    ctx := c.Request().Context()

    for {
        select {
        case <-ctx.Done():
            return nil
        case <-heartbeat.C:
            if _, err := resp.Write([]byte(": ping\n\n")); err != nil {
                return nil
            }
            resp.Flush()
        case e, ok := <-events:
            if !ok {
                return nil
            }
            if e.HolderScoped() && e.HolderID != holderID {
                continue
            }
            payload, err := json.Marshal(e)
            if err != nil {
                c.Logger().Errorf("events: marshal: %v", err)
                continue
            }
            if _, err := resp.Write([]byte("event: " + e.Type + "\ndata: ")); err != nil {
                return nil
            }
            if _, err := resp.Write(payload); err != nil {
                return nil
            }
            if _, err := resp.Write([]byte("\n\n")); err != nil {
                return nil
            }
            resp.Flush()
        }
    }
}
