package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/model"
    "github.com/BintangGalang/TiketLoka/internal/service"
    "github.com/BintangGalang/TiketLoka/internal/ticketdoc"
)

// BookingHandler exposes checkout, buy-now and the booking read side.
type BookingHandler struct {
    Bookings *service.BookingService
    Log      *zap.Logger
}

func NewBookingHandler(b *service.BookingService, log *zap.Logger) *BookingHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &BookingHandler{Bookings: b, Log: log}
}

type checkoutReq struct {
    PaymentMethod string  `json:"payment_method"`
    CartIDs       []int64 `json:"cart_ids"`
}

type buyNowReq struct {
    DestinationID int64  `json:"destination_id"`
    Quantity      int    `json:"quantity"`
    PaymentMethod string `json:"payment_method"`
    VisitDate     string `json:"visit_date"`
}

// Checkout converts selected cart lines into one paid booking.
func (h *BookingHandler) Checkout(c echo.Context) error {
    id, err := identity(c)
    if err != nil {
        return unauthenticated(c)
    }
    var req checkoutReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    res, err := h.Bookings.Checkout(ctx, id, service.CheckoutInput{PaymentMethod: req.PaymentMethod, CartIDs: req.CartIDs})
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message":      "transaction successful",
        "booking_code": res.BookingCode,
        "data":         res.Booking,
    })
}

// BuyNow books a single destination without touching the cart.
func (h *BookingHandler) BuyNow(c echo.Context) error {
    id, err := identity(c)
    if err != nil {
        return unauthenticated(c)
    }
    var req buyNowReq
    if err := c.Bind(&req); err != nil {
        return badBody(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    res, err := h.Bookings.BuyNow(ctx, id, service.BuyNowInput{
        DestinationID: req.DestinationID,
        Quantity:      req.Quantity,
        PaymentMethod: req.PaymentMethod,
        VisitDate:     req.VisitDate,
    })
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "message":      "transaction successful and payment confirmed",
        "booking_code": res.BookingCode,
        "data":         res.Booking,
    })
}

// MyBookings lists the caller's bookings, newest first.
func (h *BookingHandler) MyBookings(c echo.Context) error {
    id, err := identity(c)
    if err != nil {
        return unauthenticated(c)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    list, err := h.Bookings.ListMine(ctx, id)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": list})
}

// Show returns one booking to its owner or an admin.
func (h *BookingHandler) Show(c echo.Context) error {
    b, err := h.load(c)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": b})
}

// PDF streams the printable e-ticket.
func (h *BookingHandler) PDF(c echo.Context) error {
    b, err := h.load(c)
    if err != nil {
        return fail(c, h.Log, err)
    }
    doc, err := ticketdoc.BookingPDF(b)
    if err != nil {
        return fail(c, h.Log, err)
    }
    c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="ticket-`+b.BookingCode+`.pdf"`)
    return c.Blob(http.StatusOK, "application/pdf", doc)
}

// BookingQR renders the booking-level QR (its qr_string).
func (h *BookingHandler) BookingQR(c echo.Context) error {
    b, err := h.load(c)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return h.qr(c, b.QRString)
}

// TicketQR renders the QR of one ticket line of the booking.
func (h *BookingHandler) TicketQR(c echo.Context) error {
    b, err := h.load(c)
    if err != nil {
        return fail(c, h.Log, err)
    }
    code := strings.TrimSpace(c.Param("ticket_code"))
    for _, d := range b.Details {
        if d.TicketCode == code {
            return h.qr(c, d.TicketCode)
        }
    }
    return fail(c, h.Log, service.ErrNotFound)
}

func (h *BookingHandler) qr(c echo.Context, payload string) error {
    png, err := ticketdoc.QRPNG(payload)
    if err != nil {
        return fail(c, h.Log, err)
    }
    c.Response().Header().Set("Cache-Control", "private, max-age=3600")
    return c.Blob(http.StatusOK, "image/png", png)
}

// AdminIndex lists bookings of all users with optional status and
// created-at date filters.
func (h *BookingHandler) AdminIndex(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    list, err := h.Bookings.AdminList(ctx, service.AdminFilter{
        Status:    c.QueryParam("status"),
        StartDate: c.QueryParam("start_date"),
        EndDate:   c.QueryParam("end_date"),
    })
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": list})
}

func (h *BookingHandler) load(c echo.Context) (*model.Booking, error) {
    id, err := identity(c)
    if err != nil {
        return nil, service.ErrForbidden
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    return h.Bookings.Show(ctx, id, c.Param("booking_code"))
}
