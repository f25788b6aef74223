package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strconv"
    "strings" // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// Context keys set by JWTAuth.
const (
    CtxUserID = "user_id"
    CtxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers read
// the caller via c.Get(CtxUserID) (uint64) and c.Get(CtxRole) (string).
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return unauthorized(c, "missing bearer token")
            }
            uid, role, msg := parseAccess(secret, strings.TrimPrefix(auth, "Bearer "))
            if msg != "" {
                return unauthorized(c, msg)
            }
            c.Set(CtxUserID, uid)
            c.Set(CtxRole, role)
            return next(c)
        }
    }
}

// OptionalJWT sets the caller when a valid bearer token is present and lets
// anonymous requests through untouched.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if strings.HasPrefix(auth, "Bearer ") {
                if uid, role, msg := parseAccess(secret, strings.TrimPrefix(auth, "Bearer ")); msg == "" {
                    c.Set(CtxUserID, uid)
                    c.Set(CtxRole, role)
                }
            }
            return next(c)
        }
    }
}

// parseAccess returns a non-empty msg when the token is rejected.
func parseAccess(secret, raw string) (uid uint64, role string, msg string) {
    // Only HMAC signatures are accepted; anything else is rejected
    // before the key is handed out.
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, echo.ErrUnauthorized
        }
        return []byte(secret), nil
    }, jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return 0, "", "invalid token"
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return 0, "", "invalid claims"
    }
    uid, ok = subjectID(claims["sub"])
    if !ok {
        return 0, "", "invalid subject"
    }
    role, _ = claims["role"].(string)
    return uid, role, ""
}

// subjectID accepts the subject as a decimal string or a JSON number.
func subjectID(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case string:
        n, err := strconv.ParseUint(t, 10, 64)
        return n, err == nil && n > 0
    case float64:
        return uint64(t), t > 0
    }
    return 0, false
}

func unauthorized(c echo.Context, msg string) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}
