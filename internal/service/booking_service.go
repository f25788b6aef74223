package service

import (
    "context"
    "errors"
    "fmt"
    "math"
    "strings"
    "time"
    "unicode/utf8"

    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/model"
    "github.com/BintangGalang/TiketLoka/internal/queue"
    "github.com/BintangGalang/TiketLoka/internal/repository"
)

// DateLayout is the calendar date format used for visit dates and filters.
const DateLayout = "2006-01-02"

const (
    // MaxQuantity caps tickets per line.
    MaxQuantity = 1000
    // MaxPaymentMethodLength matches bookings.payment_method.
    MaxPaymentMethodLength = 40
)

// EventPublisher receives domain events after the owning transaction has
// committed.  Failures are logged by the caller and never undo the
// operation.
type EventPublisher interface {
    PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
    PublishTicketRedeemed(ctx context.Context, ev queue.TicketRedeemedEvent) error
}

// BookingService converts cart selections or a single destination into a
// paid booking with one ticket code per line.
type BookingService struct {
    store  repository.BookingStore
    events EventPublisher
    log    *zap.Logger

    random RandomSource
    now    func() time.Time
}

// NewBookingService wires the booking engine.  events and log may be nil.
func NewBookingService(store repository.BookingStore, events EventPublisher, log *zap.Logger) *BookingService {
    if events == nil {
        events = queue.NopPublisher{}
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &BookingService{store: store, events: events, log: log, random: CryptoRandom, now: time.Now}
}

// CheckoutInput selects cart lines to convert.  Ids that do not exist or
// belong to another user are ignored.
type CheckoutInput struct {
    PaymentMethod string
    CartIDs       []int64
}

// BuyNowInput books a single destination without a cart.
type BuyNowInput struct {
    DestinationID int64
    Quantity      int
    PaymentMethod string
    VisitDate     string
}

// BookingResult is returned by Checkout and BuyNow.
type BookingResult struct {
    BookingCode string
    GrandTotal  int64
    Booking     *model.Booking
}

// AdminFilter is the raw admin listing query.  The date range applies
// only when both dates are present.
type AdminFilter struct {
    Status    string
    StartDate string
    EndDate   string
}

// lineItem is one booking detail before insertion.
type lineItem struct {
    destinationID   uint64
    destinationName string
    quantity        int
    price           int64
    visitDate       string
}

// Checkout converts the caller's selected cart lines into one booking.
// The booking, its details and the removal of the converted lines are
// committed together or not at all.
func (s *BookingService) Checkout(ctx context.Context, id Identity, in CheckoutInput) (*BookingResult, error) {
    method, err := paymentMethod(in.PaymentMethod)
    if err != nil {
        return nil, err
    }
    if len(in.CartIDs) == 0 {
        return nil, invalid("cart_ids", "at least one cart item must be selected")
    }
    ids := make([]uint64, 0, len(in.CartIDs))
    seen := make(map[uint64]struct{}, len(in.CartIDs))
    for _, raw := range in.CartIDs {
        if raw <= 0 {
            return nil, invalid("cart_ids", "cart ids must be positive integers")
        }
        cid := uint64(raw)
        if _, dup := seen[cid]; dup {
            continue
        }
        seen[cid] = struct{}{}
        ids = append(ids, cid)
    }

    started := s.now().UTC().Truncate(time.Second)
    var booking *model.Booking
    err = s.store.WithinTx(ctx, func(tx repository.CheckoutTx) error {
        lines, err := tx.LockCartLines(ctx, id.UserID, ids)
        if err != nil {
            return fmt.Errorf("lock cart lines: %w", err)
        }
        if len(lines) == 0 {
            return ErrEmptySelection
        }
        items := make([]lineItem, 0, len(lines))
        converted := make([]uint64, 0, len(lines))
        for _, l := range lines {
            if l.Destination == nil {
                return fmt.Errorf("cart line %d has no destination", l.ID)
            }
            items = append(items, lineItem{
                destinationID:   l.DestinationID,
                destinationName: l.Destination.Name,
                quantity:        l.Quantity,
                price:           l.Destination.Price,
                visitDate:       l.VisitDate,
            })
            converted = append(converted, l.ID)
        }
        b, err := s.persist(ctx, tx, id.UserID, method, started, items)
        if err != nil {
            return err
        }
        if err := tx.DeleteCartLines(ctx, id.UserID, converted); err != nil {
            return fmt.Errorf("delete cart lines: %w", err)
        }
        booking = b
        return nil
    })
    if err != nil {
        return nil, err
    }
    s.log.Info("booking created",
        zap.String("booking_code", booking.BookingCode),
        zap.Uint64("user_id", id.UserID),
        zap.Int("lines", len(booking.Details)),
        zap.Int64("grand_total", booking.GrandTotal))
    s.publishConfirmed(ctx, booking, ticketEntries(booking))
    return &BookingResult{BookingCode: booking.BookingCode, GrandTotal: booking.GrandTotal, Booking: booking}, nil
}

// BuyNow books quantity tickets of one active destination at its current
// price.  Unknown and inactive destinations yield ErrNotFound.
func (s *BookingService) BuyNow(ctx context.Context, id Identity, in BuyNowInput) (*BookingResult, error) {
    if in.DestinationID <= 0 {
        return nil, invalid("destination_id", "destination_id is required")
    }
    if err := checkQuantity(in.Quantity); err != nil {
        return nil, err
    }
    method, err := paymentMethod(in.PaymentMethod)
    if err != nil {
        return nil, err
    }
    visit, err := ParseDate(in.VisitDate)
    if err != nil {
        return nil, invalid("visit_date", "visit_date must be a date in YYYY-MM-DD format")
    }

    started := s.now().UTC().Truncate(time.Second)
    var booking *model.Booking
    err = s.store.WithinTx(ctx, func(tx repository.CheckoutTx) error {
        dest, err := tx.GetDestination(ctx, uint64(in.DestinationID))
        if errors.Is(err, repository.ErrNotFound) || (err == nil && !dest.IsActive) {
            return ErrNotFound
        }
        if err != nil {
            return fmt.Errorf("load destination: %w", err)
        }
        b, err := s.persist(ctx, tx, id.UserID, method, started, []lineItem{{
            destinationID:   dest.ID,
            destinationName: dest.Name,
            quantity:        in.Quantity,
            price:           dest.Price,
            visitDate:       visit.Format(DateLayout),
        }})
        if err != nil {
            return err
        }
        booking = b
        return nil
    })
    if err != nil {
        return nil, err
    }
    s.log.Info("booking created",
        zap.String("booking_code", booking.BookingCode),
        zap.Uint64("user_id", id.UserID),
        zap.Uint64("destination_id", uint64(in.DestinationID)),
        zap.Int64("grand_total", booking.GrandTotal))
    s.publishConfirmed(ctx, booking, ticketEntries(booking))
    return &BookingResult{BookingCode: booking.BookingCode, GrandTotal: booking.GrandTotal, Booking: booking}, nil
}

// persist inserts the booking header and one detail per item, allocating
// unique booking and ticket codes inside tx.
func (s *BookingService) persist(ctx context.Context, tx repository.CheckoutTx, userID uint64, method string,
    at time.Time, lines []lineItem) (*model.Booking, error) {
    var total int64
    subtotals := make([]int64, len(lines))
    for i, l := range lines {
        sub, ok := lineSubtotal(l.price, l.quantity)
        if !ok || total > math.MaxInt64-sub {
            return nil, invalid("quantity", "order total is too large")
        }
        subtotals[i] = sub
        total += sub
    }
    b := &model.Booking{
        UserID:        userID,
        GrandTotal:    total,
        Status:        model.StatusSuccess,
        PaymentMethod: method,
        PaidAt:        at,
        CreatedAt:     at,
    }
    err := allocate(ctx, s.random, BookingCode, tx.BookingCodeExists, func(code string) error {
        b.BookingCode = code
        b.QRString = code
        return tx.InsertBooking(ctx, b)
    })
    if err != nil {
        return nil, err
    }

    b.Details = make([]model.BookingDetail, 0, len(lines))
    for i, l := range lines {
        d := model.BookingDetail{
            BookingID:     b.ID,
            DestinationID: l.destinationID,
            Quantity:      l.quantity,
            PricePerUnit:  l.price,
            Subtotal:      subtotals[i],
            VisitDate:     l.visitDate,
            Destination:   &model.DestinationSummary{ID: l.destinationID, Name: l.destinationName},
        }
        destID := l.destinationID
        err := allocate(ctx, s.random, func(suffix string) string { return TicketCode(destID, suffix) },
            tx.TicketCodeExists, func(code string) error {
                d.TicketCode = code
                return tx.InsertDetail(ctx, &d)
            })
        if err != nil {
            return nil, err
        }
        b.Details = append(b.Details, d)
    }
    return b, nil
}

// lineSubtotal reports false when price * quantity does not fit in int64.
func lineSubtotal(price int64, quantity int) (int64, bool) {
    if price < 0 || quantity < 0 {
        return 0, false
    }
    q := int64(quantity)
    if price != 0 && q > math.MaxInt64/price {
        return 0, false
    }
    return price * q, true
}

func checkQuantity(q int) error {
    if q < 1 {
        return invalid("quantity", "quantity must be at least 1")
    }
    if q > MaxQuantity {
        return invalid("quantity", fmt.Sprintf("quantity may not be greater than %d", MaxQuantity))
    }
    return nil
}

func paymentMethod(raw string) (string, error) {
    method := strings.TrimSpace(raw)
    if method == "" {
        return "", invalid("payment_method", "payment_method is required")
    }
    if utf8.RuneCountInString(method) > MaxPaymentMethodLength {
        return "", invalid("payment_method",
            fmt.Sprintf("payment_method may not be greater than %d characters", MaxPaymentMethodLength))
    }
    return method, nil
}

func ticketEntries(b *model.Booking) []queue.TicketEntry {
    out := make([]queue.TicketEntry, 0, len(b.Details))
    for _, d := range b.Details {
        e := queue.TicketEntry{
            TicketCode:    d.TicketCode,
            DestinationID: d.DestinationID,
            Quantity:      d.Quantity,
            VisitDate:     d.VisitDate,
        }
        if d.Destination != nil {
            e.DestinationName = d.Destination.Name
        }
        out = append(out, e)
    }
    return out
}

func (s *BookingService) publishConfirmed(ctx context.Context, b *model.Booking, tickets []queue.TicketEntry) {
    ev := queue.BookingConfirmedEvent{
        BookingID:     b.ID,
        BookingCode:   b.BookingCode,
        UserID:        b.UserID,
        PaymentMethod: b.PaymentMethod,
        GrandTotal:    b.GrandTotal,
        Tickets:       tickets,
        ConfirmedAt:   b.PaidAt.UTC().Format(time.RFC3339),
    }
    if err := s.events.PublishBookingConfirmed(ctx, ev); err != nil {
        s.log.Warn("publish booking.confirmed failed", zap.String("booking_code", b.BookingCode), zap.Error(err))
    }
}

// ListMine returns the caller's bookings, newest first.
func (s *BookingService) ListMine(ctx context.Context, id Identity) ([]model.Booking, error) {
    return s.store.ListByUser(ctx, id.UserID)
}

// Show returns one booking visible to its owner and to admins.
func (s *BookingService) Show(ctx context.Context, id Identity, code string) (*model.Booking, error) {
    code = strings.TrimSpace(code)
    if code == "" {
        return nil, ErrNotFound
    }
    b, err := s.store.GetByCode(ctx, code)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if b.UserID != id.UserID && !id.IsAdmin() {
        return nil, ErrForbidden
    }
    return b, nil
}

// AdminList lists bookings across all users.  Each date bound covers the
// whole calendar day.
func (s *BookingService) AdminList(ctx context.Context, f AdminFilter) ([]model.Booking, error) {
    filter := model.BookingFilter{Status: strings.TrimSpace(f.Status)}
    start, end := strings.TrimSpace(f.StartDate), strings.TrimSpace(f.EndDate)
    if start != "" && end != "" {
        from, err := ParseDate(start)
        if err != nil {
            return nil, invalid("start_date", "start_date must be a date in YYYY-MM-DD format")
        }
        to, err := ParseDate(end)
        if err != nil {
            return nil, invalid("end_date", "end_date must be a date in YYYY-MM-DD format")
        }
        filter.From = from
        filter.To = to.AddDate(0, 0, 1)
    }
    return s.store.List(ctx, filter)
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
    return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}
