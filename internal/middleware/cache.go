package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/config"
)

// cacheBackend is the subset of *redis.Client the response cache uses.
type cacheBackend interface {
    Get(ctx context.Context, key string) *redis.StringCmd
    SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
    Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
    Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ResponseCache stores complete 200 responses of public GETs in Redis,
// headers included, so a hit is byte-identical to the original.  Entries
// are grouped by request path so writers can purge what they changed.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb cacheBackend
}

// NewResponseCache returns nil when caching is disabled or rdb is nil.
// A nil *ResponseCache is valid and caches nothing.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    return newResponseCache(cfg, rdb)
}

func newResponseCache(cfg config.CacheConfig, rdb cacheBackend) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return &ResponseCache{cfg: cfg, rdb: rdb}
}

func digest(s string) string {
    sum := sha1.Sum([]byte(s))
    return hex.EncodeToString(sum[:])
}

// pathPrefix is shared by every entry for one request path.
func (rc *ResponseCache) pathPrefix(path string) string {
    return rc.cfg.Prefix + ":p:" + digest(path) + ":"
}

func (rc *ResponseCache) key(r *http.Request) string {
    return rc.pathPrefix(r.URL.Path) + digest(r.Method+"?"+r.URL.RawQuery)
}

// Middleware caches eligible requests.  Requests carrying Authorization
// always reach the handler.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if rc == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            r := c.Request()
            if !rc.cfg.Methods[strings.ToUpper(r.Method)] || r.Header.Get(echo.HeaderAuthorization) != "" {
                return next(c)
            }
            key := rc.key(r)
            if rc.serveHit(c, key) {
                return nil
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.overflow(rc.cfg.MaxBodyBytes) {
                return nil
            }
            payload, err := encodePayload(cw.status, c.Response().Header().Clone(), cw.buf.Bytes())
            if err != nil {
                return nil
            }
            // the request context may already be cancelled
            if err := rc.rdb.SetEx(context.Background(), key, payload, rc.cfg.TTL).Err(); err != nil {
                zap.L().Debug("cache: store failed", zap.String("path", r.URL.Path), zap.Error(err))
            }
            return nil
        }
    }
}

func (rc *ResponseCache) serveHit(c echo.Context, key string) bool {
    bs, err := rc.rdb.Get(c.Request().Context(), key).Bytes()
    if err != nil {
        return false
    }
    status, hdr, body, ok := decodePayload(bs)
    if !ok {
        return false
    }
    out := c.Response().Header()
    for k, vals := range hdr {
        if strings.EqualFold(k, echo.HeaderContentLength) {
            continue
        }
        for _, v := range vals {
            out.Add(k, v)
        }
    }
    out.Set("X-Cache", "HIT")
    c.Response().WriteHeader(status)
    if len(body) > 0 {
        _, _ = c.Response().Write(body)
    }
    return true
}

// Purge drops every cached variant (method and query) of the given
// request paths.
func (rc *ResponseCache) Purge(ctx context.Context, paths ...string) error {
    if rc == nil {
        return nil
    }
    for _, p := range paths {
        var cursor uint64
        for {
            keys, next, err := rc.rdb.Scan(ctx, cursor, rc.pathPrefix(p)+"*", 100).Result()
            if err != nil {
                return err
            }
            if len(keys) > 0 {
                if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
                    return err
                }
            }
            if next == 0 {
                break
            }
            cursor = next
        }
    }
    return nil
}

// captureWriter copies the response body while forwarding it.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    cw.buf.Write(b)
    return cw.ResponseWriter.Write(b)
}

func (cw *captureWriter) overflow(limit int) bool { return limit > 0 && cw.buf.Len() > limit }

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    out = append(out, hdrJSON...)
    return append(out, body...), nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}
