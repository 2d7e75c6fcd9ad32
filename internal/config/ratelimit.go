package config

import "time"

// RateLimitConfig defines settings for the Redis token-bucket
// middleware guarding the seat-selection routes.  When Enabled is
// false or no Redis client is available the middleware is a no-op.
type RateLimitConfig struct {
    Enabled        bool          // master switch
    Capacity       int           // bucket size (burst)
    RefillTokens   int           // tokens added per interval
    RefillInterval time.Duration // refill cadence
    TTL            time.Duration // idle bucket expiry in Redis
    Prefix         string        // key namespace
}

// LoadRateLimitConfig reads environment variables to build a
// RateLimitConfig.  Defaults allow 30 selection attempts with one
// token refilled per second, which is generous for a human clicking
// seats and tight enough to blunt scripted hoarding.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envStr("RATE_LIMIT_ENABLED", "true") == "true",
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
        cfg.TTL = minTTL
    }
    return cfg
}
