package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/showgrid/seatlock/internal/handler"    // import the handlers that implement the seat endpoints
    "github.com/showgrid/seatlock/internal/middleware" // import middleware for holder identity and rate limiting
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  Currently that is only the health
// check used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterSeats registers the seat-reservation endpoints and their
// middleware.  Everything lives under /v1 behind the holder-identity
// middleware: every lock operation is keyed by the token's subject.
// The write endpoints that create load on the lock store (select and
// finalize) additionally pass the Redis token bucket.
func RegisterSeats(e *echo.Echo, s *handler.SeatHandler, ev *handler.EventsHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
    v1 := e.Group("/v1")
    v1.Use(middleware.HolderAuth(jwtSecret))

    // Read-side: snapshot poll, seat map, event stream.
    v1.GET("/shows/:id/seats", s.ShowSeats)
    v1.GET("/shows/:id/seats/locked", s.LockedSeats)
    v1.GET("/shows/:id/events", ev.Stream)

    // Write-side: select and finalize are rate limited; release is
    // not, so a throttled client can always back out of its holds.
    writes := v1.Group("")
    if limiter != nil {
        writes.Use(limiter)
    }
    writes.POST("/shows/:id/seats/select", s.SelectSeats)
    writes.POST("/shows/:id/finalize", s.Finalize)
    v1.POST("/shows/:id/seats/release", s.ReleaseSeats)
}
