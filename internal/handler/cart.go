package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/service"
)

// CartHandler manages the caller's pending selections.
type CartHandler struct {
    Carts *service.CartService
    Log   *zap.Logger
}

func NewCartHandler(s *service.CartService, log *zap.Logger) *CartHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &CartHandler{Carts: s, Log: log}
}

type cartReq struct {
    DestinationID int64  `json:"destination_id"`
    Quantity      int    `json:"quantity"`
    VisitDate     string `json:"visit_date"`
}

func (h *CartHandler) Add(c echo.Context) error {
    id, err := identity(c)
    if err != nil {
        return unauthenticated(c)
    }
    var req cartReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    line, err := h.Carts.Add(ctx, id, service.CartInput{
        DestinationID: req.DestinationID,
        Quantity:      req.Quantity,
        VisitDate:     req.VisitDate,
    })
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"message": "added to cart", "data": line})
}

func (h *CartHandler) List(c echo.Context) error {
    id, err := identity(c)
    if err != nil {
        return unauthenticated(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    lines, err := h.Carts.List(ctx, id)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": lines})
}

// Remove deletes one line; lines of other users look missing.
func (h *CartHandler) Remove(c echo.Context) error {
    id, err := identity(c)
    if err != nil {
        return unauthenticated(c)
    }
    lineID, ok := parseID(c.Param("id"))
    if !ok {
        return fail(c, h.Log, service.ErrNotFound)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    if err := h.Carts.Remove(ctx, id, lineID); err != nil {
        return fail(c, h.Log, err)
    }
    return c.NoContent(http.StatusNoContent)
}
