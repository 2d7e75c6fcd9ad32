package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time parses the duration tunables
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Required identifiers and
// secrets are enforced at startup; the concurrency tunables all have
// defaults matching the design constants.
type Config struct {
    Env          string        // application environment (e.g. "dev", "prod")
    Port         string        // HTTP port to listen on
    LockStore    string        // lock store backend: "mysql" or "memory"
    DBUser       string        // database username (mysql backend)
    DBPass       string        // database password (optional)
    DBHost       string        // database host address
    DBPort       string        // database port number
    DBName       string        // database name
    JWTSecret    string        // secret used to verify holder tokens
    LockTTL      time.Duration // how long a seat hold lives without being finalized
    ReapInterval time.Duration // how often the expiry reaper sweeps
    DemoShowID   uint64        // show seeded by the memory backend
}

// Load reads configuration values from environment variables and
// returns a Config.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
// The database variables are required only for the mysql backend.
func Load() Config {
    cfg := Config{
        Env:          must("APP_ENV"),                            // environment (dev/test/prod)
        Port:         must("APP_PORT"),                           // port to bind the HTTP server
        LockStore:    envStr("LOCK_STORE", "mysql"),              // lock store backend
        JWTSecret:    must("JWT_SECRET"),                         // secret used to verify holder tokens
        LockTTL:      envDur("LOCK_TTL", 5*time.Minute),          // seat hold TTL
        ReapInterval: envDur("REAPER_INTERVAL", 30*time.Second),  // reaper sweep interval
        DemoShowID:   uint64(envInt("DEMO_SHOW_ID", 1)),          // memory backend demo show
    }
    if cfg.LockStore == "mysql" {
        cfg.DBUser = must("DB_USER")      // database user
        cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
        cfg.DBHost = must("DB_HOST")      // database host
        cfg.DBPort = must("DB_PORT")      // database port
        cfg.DBName = must("DB_NAME")      // database name
    }
    if cfg.LockTTL <= 0 {
        log.Fatalf("LOCK_TTL must be positive, got %s", cfg.LockTTL)
    }
    if cfg.ReapInterval <= 0 {
        log.Fatalf("REAPER_INTERVAL must be positive, got %s", cfg.ReapInterval)
    }
    return cfg
}

// must retrieves the value of a required environment variable.  If
// the variable is unset or empty, the application logs a fatal error
// and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// envStr returns the variable's value or the default when unset.
func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

// envInt parses an integer variable, falling back to the default on
// absence or parse failure.
func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

// envDur parses a duration variable ("30s", "5m"), falling back to
// the default on absence or parse failure.
func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if d, err := time.ParseDuration(v); err == nil {
        return d
    }
    return def
}
