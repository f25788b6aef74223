package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/repository"
    "github.com/BintangGalang/TiketLoka/internal/service"
)

// DestinationHandler is the public, read-only catalog.
type DestinationHandler struct {
    Catalog repository.CatalogStore
    Log     *zap.Logger
}

func NewDestinationHandler(catalog repository.CatalogStore, log *zap.Logger) *DestinationHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &DestinationHandler{Catalog: catalog, Log: log}
}

// Index lists active destinations.
func (h *DestinationHandler) Index(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    list, err := h.Catalog.ListActiveDestinations(ctx)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": list})
}

// Show returns one active destination; inactive ones look missing.
func (h *DestinationHandler) Show(c echo.Context) error {
    id, ok := parseID(c.Param("id"))
    if !ok {
        return fail(c, h.Log, service.ErrNotFound)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    d, err := h.Catalog.GetDestination(ctx, id)
    if errors.Is(err, repository.ErrNotFound) || (err == nil && !d.IsActive) {
        return fail(c, h.Log, service.ErrNotFound)
    }
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": d})
}
