package middleware

import (
    "net/http"
    "net/http/httptest"
    "strconv"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zaptest/observer"

    "github.com/BintangGalang/TiketLoka/internal/config"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
    t.Helper()
    s, err := jwt.NewWithClaims(method, claims).SignedString(key)
    require.NoError(t, err)
    return s
}

func newProtected() *echo.Echo {
    e := echo.New()
    g := e.Group("", JWTAuth(testSecret))
    g.GET("/me", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"id": c.Get(CtxUserID), "role": c.Get(CtxRole)})
    })
    g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole("ADMIN"))
    return e
}

func call(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, path, nil)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuth(t *testing.T) {
    e := newProtected()
    exp := time.Now().Add(time.Hour).Unix()

    rec := call(e, "/me", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    good := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "7", "role": "USER", "exp": exp})
    rec = call(e, "/me", good)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":7,"role":"USER"}`, rec.Body.String())

    numeric := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": 9, "role": "USER", "exp": exp})
    assert.Equal(t, http.StatusOK, call(e, "/me", numeric).Code)

    wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "7", "exp": exp})
    assert.Equal(t, http.StatusUnauthorized, call(e, "/me", wrongKey).Code)

    expired := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "7", "exp": time.Now().Add(-time.Minute).Unix()})
    assert.Equal(t, http.StatusUnauthorized, call(e, "/me", expired).Code)

    noExp := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "7"})
    assert.Equal(t, http.StatusUnauthorized, call(e, "/me", noExp).Code)

    noSub := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "USER", "exp": exp})
    assert.Equal(t, http.StatusUnauthorized, call(e, "/me", noSub).Code)
}

func TestRequireRole(t *testing.T) {
    e := newProtected()
    exp := time.Now().Add(time.Hour).Unix()
    user := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "1", "role": "USER", "exp": exp})
    admin := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "2", "role": "ADMIN", "exp": exp})

    assert.Equal(t, http.StatusForbidden, call(e, "/admin", user).Code)
    assert.Equal(t, http.StatusNoContent, call(e, "/admin", admin).Code)
}

func TestLocalTokenBucket(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
        TTL: 5 * time.Hour, KeyStrategy: "ip", Prefix: "rl",
    }
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, nil))

    for i := 0; i < 2; i++ {
        assert.Equal(t, http.StatusOK, call(e, "/x", "").Code)
    }
    rec := call(e, "/x", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
    require.NoError(t, err)
    assert.Greater(t, secs, 0)
}

func TestCachePayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
    require.NoError(t, err)
    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.Equal(t, `{"ok":true}`, string(body))

    _, _, _, ok = decodePayload([]byte{0, 1})
    assert.False(t, ok)
}

func TestRequestLoggerLevels(t *testing.T) {
    core, logs := observer.New(zap.InfoLevel)
    e := echo.New()
    e.Use(RequestLogger(zap.New(core)))
    e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
    e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") })

    call(e, "/ok", "")
    call(e, "/boom", "")

    entries := logs.All()
    require.Len(t, entries, 2)
    assert.Equal(t, zap.InfoLevel, entries[0].Level)
    assert.Equal(t, zap.ErrorLevel, entries[1].Level)
    assert.EqualValues(t, http.StatusInternalServerError, entries[1].ContextMap()["status"])
}
