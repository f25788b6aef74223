package service

import (
    "context"
    "errors"
    "strings"
    "time"

    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/queue"
    "github.com/BintangGalang/TiketLoka/internal/repository"
)

// ScanOutcome is the verdict shown on the gate terminal.
type ScanOutcome string

const (
    ScanValid       ScanOutcome = "valid"
    ScanAlreadyUsed ScanOutcome = "already_used"
    ScanInvalid     ScanOutcome = "invalid"
)

// ScanResult describes a scanned ticket.  Only TicketCode is set for
// ScanInvalid; RedeemedAt is set for ScanAlreadyUsed.
type ScanResult struct {
    Outcome         ScanOutcome
    TicketCode      string
    BuyerName       string
    DestinationName string
    VisitDate       string
    RedeemedAt      *time.Time
}

// TicketService is the redemption gate.  A ticket moves from unredeemed
// to redeemed exactly once, no matter how many gates scan it concurrently.
type TicketService struct {
    store  repository.TicketStore
    events EventPublisher
    log    *zap.Logger
    now    func() time.Time
}

func NewTicketService(store repository.TicketStore, events EventPublisher, log *zap.Logger) *TicketService {
    if events == nil {
        events = queue.NopPublisher{}
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &TicketService{store: store, events: events, log: log, now: time.Now}
}

// Scan looks up the exact ticket code and redeems it if unused.  Unknown
// codes are reported as ScanInvalid rather than an error.
func (s *TicketService) Scan(ctx context.Context, code string) (*ScanResult, error) {
    code = strings.TrimSpace(code)
    if code == "" {
        return nil, invalid("ticket_code", "ticket_code is required")
    }
    v, err := s.store.FindTicket(ctx, code)
    if errors.Is(err, repository.ErrNotFound) {
        return &ScanResult{Outcome: ScanInvalid, TicketCode: code}, nil
    }
    if err != nil {
        return nil, err
    }
    res := &ScanResult{
        TicketCode:      v.TicketCode,
        BuyerName:       v.BuyerName,
        DestinationName: v.DestinationName,
        VisitDate:       v.VisitDate,
    }
    if v.RedeemedAt != nil {
        res.Outcome = ScanAlreadyUsed
        res.RedeemedAt = v.RedeemedAt
        return res, nil
    }

    // DATETIME has second precision; truncate so the stored and reported
    // instants agree.
    at := s.now().UTC().Truncate(time.Second)
    won, err := s.store.MarkRedeemed(ctx, v.TicketCode, at)
    if err != nil {
        return nil, err
    }
    if !won {
        again, err := s.store.FindTicket(ctx, v.TicketCode)
        if err != nil {
            return nil, err
        }
        res.Outcome = ScanAlreadyUsed
        res.RedeemedAt = again.RedeemedAt
        return res, nil
    }

    res.Outcome = ScanValid
    s.log.Info("ticket redeemed", zap.String("ticket_code", v.TicketCode), zap.Uint64("booking_id", v.BookingID))
    ev := queue.TicketRedeemedEvent{
        TicketCode:      v.TicketCode,
        BookingID:       v.BookingID,
        BuyerName:       v.BuyerName,
        DestinationName: v.DestinationName,
        VisitDate:       v.VisitDate,
        RedeemedAt:      at.Format(time.RFC3339),
    }
    if err := s.events.PublishTicketRedeemed(ctx, ev); err != nil {
        s.log.Warn("publish ticket.redeemed failed", zap.String("ticket_code", v.TicketCode), zap.Error(err))
    }
    return res, nil
}
