package model

import "time"

// Booking statuses.  Checkout settles immediately, so only StatusSuccess is
// ever written; the other values are accepted by the admin status filter.
const (
    StatusPending = "pending"
    StatusSuccess = "success"
    StatusFailed  = "failed"
)

// Booking is one checkout transaction.  It groups one or more
// BookingDetail lines, each carrying its own ticket code.  A booking is
// created together with its details inside a single transaction and is
// read-only afterwards.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owner of the booking.
//  BookingCode   – unique human readable code (TL + 6 chars).
//  GrandTotal    – sum of detail subtotals in the catalog's minor unit.
//  Status        – settlement state (always "success" today).
//  PaymentMethod – free form label chosen by the buyer.
//  PaidAt        – settlement timestamp.
//  QRString      – QR payload for the booking (same as BookingCode).
//  CreatedAt     – creation timestamp.
type Booking struct {
    ID            uint64          `json:"id"`
    UserID        uint64          `json:"user_id"`
    BookingCode   string          `json:"booking_code"`
    GrandTotal    int64           `json:"grand_total"`
    Status        string          `json:"status"`
    PaymentMethod string          `json:"payment_method"`
    PaidAt        time.Time       `json:"paid_at"`
    QRString      string          `json:"qr_string"`
    CreatedAt     time.Time       `json:"created_at"`
    User          *PublicUser     `json:"user,omitempty"`
    Details       []BookingDetail `json:"details"`
}

// BookingDetail is one purchased line of a booking.  PricePerUnit is a
// snapshot of the catalog price at purchase time.  RedeemedAt moves from
// nil to a timestamp exactly once when the ticket is scanned at the gate.
type BookingDetail struct {
    ID            uint64              `json:"id"`
    BookingID     uint64              `json:"booking_id"`
    DestinationID uint64              `json:"destination_id"`
    Quantity      int                 `json:"quantity"`
    PricePerUnit  int64               `json:"price_per_unit"`
    Subtotal      int64               `json:"subtotal"`
    VisitDate     string              `json:"visit_date"`
    TicketCode    string              `json:"ticket_code"`
    RedeemedAt    *time.Time          `json:"redeemed_at"`
    Destination   *DestinationSummary `json:"destination,omitempty"`
}

// Redeemed reports whether the ticket has already been used.
func (d BookingDetail) Redeemed() bool { return d.RedeemedAt != nil }

// BookingFilter narrows the admin booking listing.  Status is ignored
// when empty.  From/To bound created_at as [From, To) and are ignored
// when zero.
type BookingFilter struct {
    Status string
    From   time.Time
    To     time.Time
}

// TicketView is the pre-joined projection the redemption gate works on:
// a booking detail together with the buyer and destination names.
type TicketView struct {
    DetailID        uint64
    BookingID       uint64
    TicketCode      string
    VisitDate       string
    RedeemedAt      *time.Time
    BuyerName       string
    DestinationName string
}
