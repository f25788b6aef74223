// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and the log-writing consumer.
package queue

// Queue names.  Both queues are durable and use the default exchange.
const (
    BookingConfirmedQueue = "booking.confirmed"
    TicketRedeemedQueue   = "ticket.redeemed"
)

// BookingConfirmedEvent is published after a booking transaction commits.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingConfirmedEvent struct {
    BookingID     uint64        `json:"booking_id"`
    BookingCode   string        `json:"booking_code"`
    UserID        uint64        `json:"user_id"`
    PaymentMethod string        `json:"payment_method"`
    GrandTotal    int64         `json:"grand_total"`
    Tickets       []TicketEntry `json:"tickets"`
    ConfirmedAt   string        `json:"confirmed_at"`
}

// TicketEntry is one booking detail inside a BookingConfirmedEvent.
type TicketEntry struct {
    TicketCode      string `json:"ticket_code"`
    DestinationID   uint64 `json:"destination_id"`
    DestinationName string `json:"destination_name"`
    Quantity        int    `json:"quantity"`
    VisitDate       string `json:"visit_date"`
}

// TicketRedeemedEvent is published when a gate scan consumes a ticket.
type TicketRedeemedEvent struct {
    TicketCode      string `json:"ticket_code"`
    BookingID       uint64 `json:"booking_id"`
    BuyerName       string `json:"buyer_name"`
    DestinationName string `json:"destination_name"`
    VisitDate       string `json:"visit_date"`
    RedeemedAt      string `json:"redeemed_at"`
}
