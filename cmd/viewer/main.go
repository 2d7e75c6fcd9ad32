// Command viewer is a terminal seat-map viewer.  It connects to a
// running seatlock server, follows one show's event stream and keeps a
// reconciled local seat view via the sync agent, printing the map on
// every change.  It is the reference client for the event contract.
package main

import (
    "bufio"
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "github.com/showgrid/seatlock/internal/agent"
    "github.com/showgrid/seatlock/internal/realtime"
)

func main() {
    server := flag.String("server", "http://localhost:8080", "seatlock server base URL")
    showID := flag.Uint64("show", 1, "show to watch")
    token := flag.String("token", "", "bearer token identifying this viewer (required)")
    poll := flag.Duration("poll", 5*time.Second, "snapshot reconciliation interval")
    flag.Parse()

    if *token == "" {
        log.Fatal("-token is required")
    }
    holderID, err := subjectOf(*token)
    if err != nil {
        log.Fatalf("parse token: %v", err)
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    client := &http.Client{}
    events := make(chan realtime.Event, 16)
    go streamEvents(ctx, client, *server, *showID, *token, events)

    a := agent.New(*showID, holderID, events, func(ctx context.Context) ([]uint64, error) {
        return fetchLockedSeats(ctx, client, *server, *showID, *token)
    }, *poll)
    a.OnExpired = func(seatIDs []uint64, message string) {
        fmt.Printf("\n!! %s: seats %v\n", message, seatIDs)
    }
    a.OnConflict = func(seatIDs []uint64, message string) {
        fmt.Printf("\n!! %s: seats %v\n", message, seatIDs)
    }
    a.OnChange = func() { render(a) }

    log.Printf("watching show %d as %s", *showID, holderID)
    if err := a.Run(ctx); err != nil && ctx.Err() == nil {
        log.Fatalf("agent stopped: %v", err)
    }
}

// subjectOf extracts the sub claim without verifying the signature;
// verification is the server's job, the viewer only needs to know who
// it is for filtering holder-scoped events.
func subjectOf(token string) (string, error) {
    var claims jwt.MapClaims
    if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
        return "", err
    }
    sub, ok := claims["sub"].(string)
    if !ok || sub == "" {
        return "", fmt.Errorf("token has no subject")
    }
    return sub, nil
}

// streamEvents follows the SSE endpoint and pushes decoded events
// into the agent's channel, reconnecting with a short delay until the
// context is cancelled.
func streamEvents(ctx context.Context, client *http.Client, server string, showID uint64, token string, out chan<- realtime.Event) {
    url := fmt.Sprintf("%s/v1/shows/%d/events", server, showID)
    for ctx.Err() == nil {
        if err := followStream(ctx, client, url, token, out); err != nil && ctx.Err() == nil {
            log.Printf("event stream: %v; reconnecting", err)
        }
        select {
        case <-ctx.Done():
            return
        case <-time.After(2 * time.Second):
        }
    }
}

func followStream(ctx context.Context, client *http.Client, url, token string, out chan<- realtime.Event) error {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        return err
    }
    req.Header.Set("Authorization", "Bearer "+token)
    req.Header.Set("Accept", "text/event-stream")
    resp, err := client.Do(req)
    if err != nil {
        return err
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return fmt.Errorf("unexpected status %s", resp.Status)
    }

    scanner := bufio.NewScanner(resp.Body)
    for scanner.Scan() {
        line := scanner.Text()
        if !strings.HasPrefix(line, "data: ") {
            continue // comments, event names and blank separators
        }
        var e realtime.Event
        if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
            log.Printf("event stream: drop malformed event: %v", err)
            continue
        }
        select {
        case out <- e:
        case <-ctx.Done():
            return ctx.Err()
        }
    }
    return scanner.Err()
}

// fetchLockedSeats is the snapshot poll backing reconciliation.
func fetchLockedSeats(ctx context.Context, client *http.Client, server string, showID uint64, token string) ([]uint64, error) {
    url := fmt.Sprintf("%s/v1/shows/%d/seats/locked", server, showID)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        return nil, err
    }
    req.Header.Set("Authorization", "Bearer "+token)
    resp, err := client.Do(req)
    if err != nil {
        return nil, err
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return nil, fmt.Errorf("unexpected status %s", resp.Status)
    }
    var body struct {
        LockedSeats []uint64 `json:"locked_seats"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, err
    }
    return body.LockedSeats, nil
}

func render(a *agent.Agent) {
    fmt.Printf("mine=%v  others=%v  booked=%v\n",
        a.SelectedByMe(), a.LockedByOthers(), a.Booked())
}
