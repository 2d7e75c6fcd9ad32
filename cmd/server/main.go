package main // Entry point package

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"    // loads .env files in development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/showgrid/seatlock/internal/catalog"
    "github.com/showgrid/seatlock/internal/config"
    "github.com/showgrid/seatlock/internal/database"
    "github.com/showgrid/seatlock/internal/handler"
    "github.com/showgrid/seatlock/internal/lock"
    "github.com/showgrid/seatlock/internal/middleware"
    "github.com/showgrid/seatlock/internal/model"
    "github.com/showgrid/seatlock/internal/queue"
    "github.com/showgrid/seatlock/internal/realtime"
    "github.com/showgrid/seatlock/internal/repository"
    "github.com/showgrid/seatlock/internal/router"
    queue_publisher "github.com/showgrid/seatlock/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real environment wins
    cfg := config.Load()

    // Realtime fan-out: local broadcaster plus the Redis bridge that
    // mirrors events between server instances.  Without Redis the
    // bridge delivers locally only.
    broadcaster := realtime.NewBroadcaster()
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; events stay instance-local and rate limiting is off")
    }
    bridge := realtime.NewBridge(rdb, broadcaster)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    // Lock store backend selection.  The store is the single source
    // of truth for seat exclusivity; everything else is rebuildable.
    var (
        store    lock.Store
        bookings lock.Bookings
        cat      catalog.Catalog
    )
    switch cfg.LockStore {
    case "memory":
        mem := lock.NewMemoryStore()
        demo := catalog.NewDemo(cfg.DemoShowID, 1500)
        demo.Booked = mem.BookedSeatIDs
        store, bookings, cat = mem, mem, demo
        log.Printf("using in-memory lock store with demo show %d (single instance only)", cfg.DemoShowID)
    case "mysql":
        db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
        if err != nil {
            log.Fatalf("open database: %v", err)
        }
        defer db.Close()
        store = repository.NewLockRepo(db)
        bookings = repository.NewBookingRepo(db)
        cat = repository.NewShowRepo(db)
    default:
        log.Fatalf("unknown LOCK_STORE %q (want mysql or memory)", cfg.LockStore)
    }

    manager := lock.NewManager(store, cat, bridge, cfg.LockTTL)
    finalizer := lock.NewFinalizer(bookings, cat, bridge)
    finalizer.Notify = func(ctx context.Context, b model.Booking, seatIDs []uint64) {
        // broker failures are logged inside the publisher and must
        // not affect the committed booking
        _ = queue_publisher.PublishBookingFinalized(ctx, queue.BookingFinalizedEvent{
            BookingID:        b.ID,
            ShowID:           b.ShowID,
            HolderID:         b.HolderID,
            SeatIDs:          seatIDs,
            TotalAmountCents: b.TotalAmountCents,
            PaymentRef:       b.PaymentRef,
            FinalizedAt:      b.CreatedAt.Format(time.RFC3339),
        })
    }

    // Background workers: expiry reaper, event bridge, queue consumer.
    reaper := lock.NewReaper(store, bridge, cfg.ReapInterval)
    go reaper.Run(ctx)
    go func() {
        if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
            log.Printf("event bridge stopped: %v", err)
        }
    }()
    go func() {
        if err := queue.StartBookingConsumer(); err != nil {
            log.Printf("booking consumer stopped: %v", err)
        }
    }()

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e)
    limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    router.RegisterSeats(e,
        handler.NewSeatHandler(manager, finalizer, cat),
        handler.NewEventsHandler(broadcaster),
        cfg.JWTSecret,
        limiter,
    )

    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = e.Shutdown(shutdownCtx)
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s, store=%s, ttl=%s)", addr, cfg.Env, cfg.LockStore, cfg.LockTTL)
    if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
        log.Fatal(err)
    }
}
