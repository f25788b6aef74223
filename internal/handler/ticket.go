package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/service"
)

// TicketHandler is the admin gate scanner endpoint.
type TicketHandler struct {
    Tickets *service.TicketService
    Log     *zap.Logger
}

func NewTicketHandler(t *service.TicketService, log *zap.Logger) *TicketHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &TicketHandler{Tickets: t, Log: log}
}

type scanReq struct {
    TicketCode string `json:"ticket_code" form:"ticket_code"`
}

// Scan redeems a ticket.  The status field drives the terminal colour:
// success lets the visitor in, warning means the ticket was used before and
// error means the code is unknown.
func (h *TicketHandler) Scan(c echo.Context) error {
    var req scanReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    res, err := h.Tickets.Scan(ctx, req.TicketCode)
    if err != nil {
        return fail(c, h.Log, err)
    }
    switch res.Outcome {
    case service.ScanInvalid:
        return c.JSON(http.StatusNotFound, echo.Map{
            "status":  "error",
            "message": "invalid ticket or not found",
        })
    case service.ScanAlreadyUsed:
        return c.JSON(http.StatusBadRequest, echo.Map{
            "status":  "warning",
            "message": "ticket has already been used",
            "data": echo.Map{
                "code":        res.TicketCode,
                "redeemed_at": res.RedeemedAt,
                "user":        res.BuyerName,
                "destination": res.DestinationName,
            },
        })
    }
    return c.JSON(http.StatusOK, echo.Map{
        "status":  "success",
        "message": "ticket valid, please enter",
        "data": echo.Map{
            "code":        res.TicketCode,
            "user":        res.BuyerName,
            "destination": res.DestinationName,
            "visit_date":  res.VisitDate,
        },
    })
}
