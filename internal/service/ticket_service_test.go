package service

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/mock"
    "github.com/stretchr/testify/require"

    "github.com/BintangGalang/TiketLoka/internal/queue"
)

func (f *fixture) ticket(t *testing.T) string {
    t.Helper()
    res, err := f.bookingService().BuyNow(context.Background(), f.buyer, BuyNowInput{
        DestinationID: int64(f.destA.ID), Quantity: 2, PaymentMethod: "qris", VisitDate: "2025-06-01",
    })
    require.NoError(t, err)
    return res.Booking.Details[0].TicketCode
}

func TestScanValidThenAlreadyUsed(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()
    code := f.ticket(t)

    pub := new(mockPublisher)
    pub.On("PublishTicketRedeemed", mock.Anything, mock.MatchedBy(func(ev queue.TicketRedeemedEvent) bool {
        return ev.TicketCode == code && ev.BuyerName == "Ayu"
    })).Return(nil).Once()
    svc := NewTicketService(f.store, pub, nil)
    first := time.Date(2025, 6, 1, 8, 15, 30, 500, time.UTC)
    svc.now = fixedClock(first)

    res, err := svc.Scan(ctx, code)
    require.NoError(t, err)
    assert.Equal(t, ScanValid, res.Outcome)
    assert.Equal(t, code, res.TicketCode)
    assert.Equal(t, "Ayu", res.BuyerName)
    assert.Equal(t, "Borobudur", res.DestinationName)
    assert.Equal(t, "2025-06-01", res.VisitDate)

    for i := 0; i < 3; i++ {
        svc.now = fixedClock(first.Add(time.Duration(i+1) * time.Hour))
        again, err := svc.Scan(ctx, code)
        require.NoError(t, err)
        assert.Equal(t, ScanAlreadyUsed, again.Outcome)
        require.NotNil(t, again.RedeemedAt)
        assert.True(t, first.Truncate(time.Second).Equal(*again.RedeemedAt))
    }
    pub.AssertExpectations(t)
}

func TestScanUnknownIsInvalid(t *testing.T) {
    f := newFixture(t)
    svc := NewTicketService(f.store, nil, nil)
    res, err := svc.Scan(context.Background(), "TKT-1-NOPE00")
    require.NoError(t, err)
    assert.Equal(t, ScanInvalid, res.Outcome)
}

func TestScanIsExactMatch(t *testing.T) {
    f := newFixture(t)
    code := f.ticket(t)
    svc := NewTicketService(f.store, nil, nil)
    res, err := svc.Scan(context.Background(), code[:len(code)-1])
    require.NoError(t, err)
    assert.Equal(t, ScanInvalid, res.Outcome)
}

func TestScanBlankCode(t *testing.T) {
    f := newFixture(t)
    _, err := NewTicketService(f.store, nil, nil).Scan(context.Background(), "  ")
    assert.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentScansRedeemOnce(t *testing.T) {
    f := newFixture(t)
    code := f.ticket(t)
    svc := NewTicketService(f.store, nil, nil)
    const k = 16

    var wg sync.WaitGroup
    outcomes := make(chan *ScanResult, k)
    for i := 0; i < k; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            res, err := svc.Scan(context.Background(), code)
            if assert.NoError(t, err) {
                outcomes <- res
            }
        }()
    }
    wg.Wait()
    close(outcomes)

    valid, used := 0, 0
    var stamp *time.Time
    for res := range outcomes {
        switch res.Outcome {
        case ScanValid:
            valid++
        case ScanAlreadyUsed:
            used++
            require.NotNil(t, res.RedeemedAt)
            if stamp == nil {
                stamp = res.RedeemedAt
            }
            assert.True(t, stamp.Equal(*res.RedeemedAt))
        }
    }
    assert.Equal(t, 1, valid)
    assert.Equal(t, k-1, used)
}
