package service

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/mock"
    "github.com/stretchr/testify/require"

    "github.com/BintangGalang/TiketLoka/internal/model"
    "github.com/BintangGalang/TiketLoka/internal/queue"
    "github.com/BintangGalang/TiketLoka/internal/repository"
)

// mockPublisher implements EventPublisher for testing.
type mockPublisher struct {
    mock.Mock
}

func (m *mockPublisher) PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error {
    args := m.Called(ctx, ev)
    return args.Error(0)
}

func (m *mockPublisher) PublishTicketRedeemed(ctx context.Context, ev queue.TicketRedeemedEvent) error {
    args := m.Called(ctx, ev)
    return args.Error(0)
}

type fixture struct {
    store *repository.MemoryStore
    buyer Identity
    other Identity
    admin Identity
    destA model.Destination
    destB model.Destination
}

func newFixture(t *testing.T) *fixture {
    t.Helper()
    ctx := context.Background()
    s := repository.NewMemoryStore()
    buyer, err := s.Create(ctx, "Ayu", "ayu@example.com", "secret123", model.RoleUser, 4)
    require.NoError(t, err)
    other, err := s.Create(ctx, "Budi", "budi@example.com", "secret123", model.RoleUser, 4)
    require.NoError(t, err)
    admin, err := s.Create(ctx, "Gate", "gate@example.com", "secret123", model.RoleAdmin, 4)
    require.NoError(t, err)

    a := model.Destination{CategoryID: 1, Name: "Borobudur", Slug: "borobudur", Price: 50000, IsActive: true}
    a.ID = s.PutDestination(a)
    b := model.Destination{CategoryID: 1, Name: "Prambanan", Slug: "prambanan", Price: 120000, IsActive: true}
    b.ID = s.PutDestination(b)

    return &fixture{
        store: s,
        buyer: Identity{UserID: buyer, Role: model.RoleUser},
        other: Identity{UserID: other, Role: model.RoleUser},
        admin: Identity{UserID: admin, Role: model.RoleAdmin},
        destA: a,
        destB: b,
    }
}

func (f *fixture) addCart(t *testing.T, who Identity, dest model.Destination, qty int) int64 {
    t.Helper()
    line := &model.CartLine{UserID: who.UserID, DestinationID: dest.ID, Quantity: qty, VisitDate: "2025-03-01"}
    require.NoError(t, f.store.AddCartLine(context.Background(), line))
    return int64(line.ID)
}

func (f *fixture) bookingService() *BookingService {
    return NewBookingService(f.store, nil, nil)
}

// sequence returns a RandomSource that yields the given suffixes in order
// and then repeats the last one.
func sequence(suffixes ...string) RandomSource {
    i := 0
    return func(n int) (string, error) {
        s := suffixes[i]
        if i < len(suffixes)-1 {
            i++
        }
        return s, nil
    }
}

func fixedClock(t time.Time) func() time.Time {
    return func() time.Time { return t }
}
