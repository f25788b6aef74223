package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/middleware"
    "github.com/BintangGalang/TiketLoka/internal/service"
)

// errorBody is the JSON shape of every failed request.
func errorBody(code, msg string) echo.Map {
    return echo.Map{"error": code, "message": msg}
}

// fail translates a service error into its HTTP status and body.  Anything
// unrecognised is logged and reported as 500 without leaking details.
func fail(c echo.Context, log *zap.Logger, err error) error {
    var ve *service.ValidationError
    switch {
    case errors.As(err, &ve):
        body := errorBody("validation_error", ve.Message)
        if ve.Field != "" {
            body["errors"] = echo.Map{ve.Field: []string{ve.Message}}
        }
        return c.JSON(http.StatusUnprocessableEntity, body)
    case errors.Is(err, service.ErrValidation):
        return c.JSON(http.StatusUnprocessableEntity, errorBody("validation_error", err.Error()))
    case errors.Is(err, service.ErrEmptySelection):
        return c.JSON(http.StatusBadRequest, errorBody("empty_selection", "no valid items selected"))
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, errorBody("not_found", "resource not found"))
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, errorBody("forbidden", "Unauthorized"))
    case errors.Is(err, service.ErrNotEntitled):
        return c.JSON(http.StatusForbidden, errorBody("not_entitled",
            "you must buy a ticket for this destination and complete payment before reviewing it"))
    case errors.Is(err, service.ErrDuplicate):
        return c.JSON(http.StatusConflict, errorBody("duplicate", "you have already reviewed this purchase"))
    case errors.Is(err, service.ErrCodeAllocationExhausted):
        log.Error("code allocation exhausted", zap.String("path", c.Path()))
        return c.JSON(http.StatusServiceUnavailable, errorBody("code_allocation_exhausted", "please retry the request"))
    }
    log.Error("request failed", zap.String("method", c.Request().Method), zap.String("path", c.Path()), zap.Error(err))
    return c.JSON(http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
}

// callerID extracts the authenticated user id placed by JWTAuth.
func callerID(c echo.Context) (uint64, error) {
    switch t := c.Get(middleware.CtxUserID).(type) {
    case uint64:
        return t, nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// identity builds the service caller from the JWT claims.
func identity(c echo.Context) (service.Identity, error) {
    uid, err := callerID(c)
    if err != nil || uid == 0 {
        return service.Identity{}, errors.New("unauthenticated")
    }
    role, _ := c.Get(middleware.CtxRole).(string)
    return service.Identity{UserID: uid, Role: role}, nil
}

func unauthenticated(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "authentication required"))
}

func badBody(c echo.Context) error {
    return c.JSON(http.StatusBadRequest, errorBody("validation_error", "invalid body"))
}

func parseID(s string) (uint64, bool) {
    n, err := strconv.ParseUint(s, 10, 64)
    return n, err == nil && n > 0
}
