package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/showgrid/seatlock/internal/catalog"
    "github.com/showgrid/seatlock/internal/lock"
    "github.com/showgrid/seatlock/internal/middleware"
    "github.com/showgrid/seatlock/internal/model"
)

// SeatHandler exposes the seat-reservation concurrency core over
// HTTP: batch selection, release, the lock snapshot used by clients
// as a reconciliation backstop, the seat-map view, and booking
// finalization.  All methods assume the holder-identity middleware
// already ran; they return 401 when no holder is present.
//
// Conflict responses always name the specific seats so the UI can
// highlight them; infrastructure failures use a distinct 503 shape so
// clients retry instead of re-selecting.
type SeatHandler struct {
    Manager   *lock.Manager
    Finalizer *lock.Finalizer
    Catalog   catalog.Catalog
}

// NewSeatHandler constructs a SeatHandler.  All dependencies must be
// non-nil.
func NewSeatHandler(manager *lock.Manager, finalizer *lock.Finalizer, cat catalog.Catalog) *SeatHandler {
    if manager == nil || finalizer == nil || cat == nil {
        panic("nil dependency passed to NewSeatHandler")
    }
    return &SeatHandler{Manager: manager, Finalizer: finalizer, Catalog: cat}
}

// SelectSeats handles POST /v1/shows/:id/seats/select.  The request
// body carries a "seat_ids" array.  The batch is all-or-nothing: on
// any conflict the caller holds nothing and receives 409 with the
// conflicting seat IDs.
func (h *SeatHandler) SelectSeats(c echo.Context) error {
    holderID := middleware.HolderID(c)
    if holderID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    showID, err := parseShowID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
    }
    var body struct {
        SeatIDs []uint64 `json:"seat_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    heldUntil, err := h.Manager.SelectSeats(c.Request().Context(), showID, holderID, body.SeatIDs)
    if err != nil {
        var conflict *lock.ConflictError
        switch {
        case errors.Is(err, lock.ErrNoSeats):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
        case errors.Is(err, catalog.ErrShowNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
        case errors.As(err, &conflict):
            return c.JSON(http.StatusConflict, echo.Map{
                "error":                "some seats are already taken",
                "conflicting_seat_ids": conflict.SeatIDs,
            })
        default:
            return storeUnavailable(c, err)
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "seat_ids":   body.SeatIDs,
        "held_until": heldUntil.Format(time.RFC3339),
    })
}

// ReleaseSeats handles POST /v1/shows/:id/seats/release.  Releasing
// seats the holder does not own is a no-op, so the endpoint is
// idempotent and always returns 200 unless the store is down.
func (h *SeatHandler) ReleaseSeats(c echo.Context) error {
    holderID := middleware.HolderID(c)
    if holderID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    showID, err := parseShowID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
    }
    var body struct {
        SeatIDs []uint64 `json:"seat_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    released, err := h.Manager.ReleaseSeats(c.Request().Context(), showID, holderID, body.SeatIDs)
    if err != nil {
        return storeUnavailable(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// LockedSeats handles GET /v1/shows/:id/seats/locked.  It returns the
// seat IDs of every live lock on the show, the full-snapshot poll
// the client sync agent reconciles against.
func (h *SeatHandler) LockedSeats(c echo.Context) error {
    showID, err := parseShowID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
    }
    locked, err := h.Manager.LockedSeats(c.Request().Context(), showID)
    if err != nil {
        return storeUnavailable(c, err)
    }
    if locked == nil {
        locked = []uint64{}
    }
    return c.JSON(http.StatusOK, echo.Map{"locked_seats": locked})
}

// seatView is one row of the seat-map snapshot.
type seatView struct {
    SeatID     uint64 `json:"seat_id"`
    RowLabel   string `json:"row_label"`
    SeatNumber uint32 `json:"seat_number"`
    SeatType   string `json:"seat_type"`
    PriceCents uint32 `json:"price_cents"`
    Status     string `json:"status"`
}

// ShowSeats handles GET /v1/shows/:id/seats.  It composes the catalog
// layout with live locks and bookings into a full seat map, each seat
// carrying FREE, HELD or BOOKED.
func (h *SeatHandler) ShowSeats(c echo.Context) error {
    showID, err := parseShowID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
    }
    ctx := c.Request().Context()
    layout, err := h.Catalog.Seats(ctx, showID)
    if err != nil {
        if errors.Is(err, catalog.ErrShowNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
        }
        return storeUnavailable(c, err)
    }
    booked, err := h.Catalog.BookedSeatIDs(ctx, showID)
    if err != nil {
        return storeUnavailable(c, err)
    }
    locked, err := h.Manager.LockedSeats(ctx, showID)
    if err != nil {
        return storeUnavailable(c, err)
    }
    bookedSet := toSet(booked)
    lockedSet := toSet(locked)

    seats := make([]seatView, 0, len(layout))
    for _, s := range layout {
        status := model.SeatStatusFree
        if _, ok := bookedSet[s.SeatID]; ok {
            status = model.SeatStatusBooked
        } else if _, ok := lockedSet[s.SeatID]; ok {
            status = model.SeatStatusHeld
        }
        seats = append(seats, seatView{
            SeatID:     s.SeatID,
            RowLabel:   s.RowLabel,
            SeatNumber: s.SeatNumber,
            SeatType:   s.SeatType,
            PriceCents: s.PriceCents,
            Status:     status,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// Finalize handles POST /v1/shows/:id/finalize.  It converts the
// holder's live locks into a permanent booking.  When the re-check
// fails (TTL raced with the payment round-trip) the response is 409
// with the seats that are gone; the payment reconciliation is the
// external caller's responsibility.
func (h *SeatHandler) Finalize(c echo.Context) error {
    holderID := middleware.HolderID(c)
    if holderID == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    showID, err := parseShowID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
    }
    var body struct {
        SeatIDs    []uint64 `json:"seat_ids"`
        PaymentRef string   `json:"payment_ref"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    booking, err := h.Finalizer.Finalize(c.Request().Context(), showID, holderID, body.SeatIDs, body.PaymentRef)
    if err != nil {
        var unavailable *lock.UnavailableError
        switch {
        case errors.Is(err, lock.ErrNoSeats):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
        case errors.Is(err, lock.ErrUnknownSeat):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown seat in request"})
        case errors.Is(err, catalog.ErrShowNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
        case errors.As(err, &unavailable):
            return c.JSON(http.StatusConflict, echo.Map{
                "error":    "seats no longer available",
                "seat_ids": unavailable.SeatIDs,
            })
        default:
            return storeUnavailable(c, err)
        }
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "booking_id":         booking.ID,
        "total_amount_cents": booking.TotalAmountCents,
    })
}

// parseShowID extracts the numeric show ID path parameter.
func parseShowID(c echo.Context) (uint64, error) {
    showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || showID == 0 {
        return 0, errors.New("invalid show id")
    }
    return showID, nil
}

// storeUnavailable renders an infrastructure failure.  The shape is
// deliberately different from a business conflict so clients know to
// retry rather than re-select.
func storeUnavailable(c echo.Context, err error) error {
    c.Logger().Errorf("store error: %v", err)
    c.Response().Header().Set("Retry-After", "1")
    return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable, retry"})
}

func toSet(ids []uint64) map[uint64]struct{} {
    set := make(map[uint64]struct{}, len(ids))
    for _, id := range ids {
        set[id] = struct{}{}
    }
    return set
}
