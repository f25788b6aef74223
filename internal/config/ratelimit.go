package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// RateLimitConfig describes one token bucket.  Capacity tokens are
// available up front and RefillTokens are added every RefillInterval.
// KeyStrategy picks what a bucket is keyed on: ip, user, route or a
// combination joined by underscores (ip_user_route is the default).
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// RateLimits holds the global bucket and the stricter per-endpoint ones.
// Checkout covers /checkout and /buy-now; Scan covers the gate endpoint.
type RateLimits struct {
    Global   RateLimitConfig
    Checkout RateLimitConfig
    Scan     RateLimitConfig
}

// LoadRateLimits reads RATE_LIMIT_* for the global bucket and
// RATE_LIMIT_CHECKOUT_* / RATE_LIMIT_SCAN_* for the endpoint buckets.
// RATE_LIMIT_ENABLED=false turns all of them off.
func LoadRateLimits() RateLimits {
    global := loadRateLimit("RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       60,
        RefillTokens:   1,
        RefillInterval: time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip_user_route",
        Prefix:         "tiketloka:rl",
    })
    scoped := func(name string, capacity, refill int, every time.Duration) RateLimitConfig {
        cfg := loadRateLimit("RATE_LIMIT_"+strings.ToUpper(name), RateLimitConfig{
            Enabled:        global.Enabled,
            Capacity:       capacity,
            RefillTokens:   refill,
            RefillInterval: every,
            TTL:            global.TTL,
            KeyStrategy:    "user",
            Prefix:         global.Prefix + ":" + name,
            Debug:          global.Debug,
        })
        cfg.Enabled = cfg.Enabled && global.Enabled
        return cfg
    }
    return RateLimits{
        Global:   global,
        Checkout: scoped("checkout", 5, 1, 10*time.Second),
        Scan:     scoped("scan", 30, 5, time.Second),
    }
}

func loadRateLimit(prefix string, def RateLimitConfig) RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool(prefix+"_ENABLED", def.Enabled),
        Capacity:       envInt(prefix+"_CAPACITY", def.Capacity),
        RefillTokens:   envInt(prefix+"_REFILL_TOKENS", def.RefillTokens),
        RefillInterval: envDur(prefix+"_REFILL_INTERVAL", def.RefillInterval),
        TTL:            envDur(prefix+"_TTL", def.TTL),
        KeyStrategy:    envStr(prefix+"_KEY_STRATEGY", def.KeyStrategy),
        Prefix:         envStr(prefix+"_PREFIX", def.Prefix),
        Debug:          envBool(prefix+"_DEBUG", def.Debug),
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
    // a bucket must outlive a full refill cycle or it resets early
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
        cfg.TTL = minTTL
    }
    return cfg
}

func envStr(k, d string) string {
    if v := strings.TrimSpace(os.Getenv(k)); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    if v, err := strconv.ParseBool(envStr(k, "")); err == nil {
        return v
    }
    switch strings.ToLower(envStr(k, "")) {
    case "yes", "on":
        return true
    case "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(envStr(k, "")); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(envStr(k, "")); err == nil {
        return dur
    }
    return d
}
