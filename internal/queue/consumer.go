package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Consumer listens to the booking.confirmed and ticket.redeemed queues and
// appends one line per event to <LogDir>/booking.log.
type Consumer struct {
    URL    string
    LogDir string
    Log    *zap.Logger

    mu sync.Mutex // serializes file appends across the two queues
}

// NewConsumer returns a Consumer writing under logDir ("logs" when empty).
func NewConsumer(url, logDir string, log *zap.Logger) *Consumer {
    if logDir == "" {
        logDir = "logs"
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Consumer{URL: url, LogDir: logDir, Log: log}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) whenever the connection fails.
// Messages that cannot be handled are rejected without requeue.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warn("booking-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn("booking-consumer: consume loop ended; reconnecting", zap.Error(err))
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn("booking-consumer: set QoS failed", zap.Error(err))
    }

    bookings, err := c.subscribe(ch, BookingConfirmedQueue)
    if err != nil {
        return err
    }
    redemptions, err := c.subscribe(ch, TicketRedeemedQueue)
    if err != nil {
        return err
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-bookings:
            if !ok {
                return errors.New("booking deliveries channel closed")
            }
            c.ack(d, c.HandleMessage(BookingConfirmedQueue, d.Body))
        case d, ok := <-redemptions:
            if !ok {
                return errors.New("redemption deliveries channel closed")
            }
            c.ack(d, c.HandleMessage(TicketRedeemedQueue, d.Body))
        }
    }
}

func (c *Consumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return nil, fmt.Errorf("queue declare %s: %w", queue, err)
    }
    msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
    if err != nil {
        return nil, fmt.Errorf("queue consume %s: %w", queue, err)
    }
    return msgs, nil
}

func (c *Consumer) ack(d amqp.Delivery, err error) {
    if err != nil {
        c.Log.Error("booking-consumer: handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
        _ = d.Nack(false, false)
        return
    }
    _ = d.Ack(false)
}

// HandleMessage decodes one message of the given queue and appends its log line.
func (c *Consumer) HandleMessage(queue string, body []byte) error {
    var line string
    switch queue {
    case BookingConfirmedQueue:
        var ev BookingConfirmedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        line = FormatBookingConfirmed(ev)
    case TicketRedeemedQueue:
        var ev TicketRedeemedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        line = FormatTicketRedeemed(ev)
    default:
        return fmt.Errorf("unknown queue %q", queue)
    }
    return c.appendLine(line)
}

func (c *Consumer) appendLine(line string) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(c.LogDir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatBookingConfirmed renders the single-line log entry for a booking.
func FormatBookingConfirmed(ev BookingConfirmedEvent) string {
    codes := make([]string, 0, len(ev.Tickets))
    for _, t := range ev.Tickets {
        codes = append(codes, t.TicketCode)
    }
    return fmt.Sprintf("[%s] Booking confirmed | booking_code=%s | booking_id=%d | user_id=%d | payment=%q | total=%d | tickets=[%s]\n",
        ev.ConfirmedAt, ev.BookingCode, ev.BookingID, ev.UserID, ev.PaymentMethod, ev.GrandTotal, strings.Join(codes, ","))
}

// FormatTicketRedeemed renders the single-line log entry for a gate scan.
func FormatTicketRedeemed(ev TicketRedeemedEvent) string {
    return fmt.Sprintf("[%s] Ticket redeemed | ticket_code=%s | booking_id=%d | buyer=%q | destination=%q | visit_date=%s\n",
        ev.RedeemedAt, ev.TicketCode, ev.BookingID, ev.BuyerName, ev.DestinationName, ev.VisitDate)
}
