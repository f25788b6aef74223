package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BintangGalang/TiketLoka/internal/model"
)

func seedMemory(t *testing.T) (*MemoryStore, uint64, uint64) {
	t.Helper()
	s := NewMemoryStore()
	uid, err := s.Create(context.Background(), "Ayu", "ayu@example.com", "secret123", model.RoleUser, 4)
	require.NoError(t, err)
	did := s.PutDestination(model.Destination{CategoryID: 1, Name: "Borobudur", Slug: "borobudur", Price: 50000, IsActive: true})
	return s, uid, did
}

func TestMemoryWithinTxDiscardsOnError(t *testing.T) {
	s, uid, did := seedMemory(t)
	ctx := context.Background()
	line := &model.CartLine{UserID: uid, DestinationID: did, Quantity: 1, VisitDate: "2025-01-01"}
	require.NoError(t, s.AddCartLine(ctx, line))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx CheckoutTx) error {
		b := &model.Booking{UserID: uid, BookingCode: "TLAAAAAA", Status: model.StatusSuccess, CreatedAt: time.Now()}
		require.NoError(t, tx.InsertBooking(ctx, b))
		require.NoError(t, tx.DeleteCartLines(ctx, uid, []uint64{line.ID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetByCode(ctx, "TLAAAAAA")
	assert.ErrorIs(t, err, ErrNotFound)
	lines, err := s.ListCartLines(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestMemoryInsertBookingDuplicateCode(t *testing.T) {
	s, uid, _ := seedMemory(t)
	ctx := context.Background()
	err := s.WithinTx(ctx, func(tx CheckoutTx) error {
		if err := tx.InsertBooking(ctx, &model.Booking{UserID: uid, BookingCode: "TLDUPE01"}); err != nil {
			return err
		}
		return tx.InsertBooking(ctx, &model.Booking{UserID: uid, BookingCode: "TLDUPE01"})
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryMarkRedeemedOnce(t *testing.T) {
	s, uid, did := seedMemory(t)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(tx CheckoutTx) error {
		b := &model.Booking{UserID: uid, BookingCode: "TLRDM001", Status: model.StatusSuccess}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		return tx.InsertDetail(ctx, &model.BookingDetail{BookingID: b.ID, DestinationID: did, Quantity: 1, TicketCode: "TKT-1-ABCDEF", VisitDate: "2025-01-01"})
	}))

	first := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	ok, err := s.MarkRedeemed(ctx, "TKT-1-ABCDEF", first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkRedeemed(ctx, "TKT-1-ABCDEF", first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.FindTicket(ctx, "TKT-1-ABCDEF")
	require.NoError(t, err)
	require.NotNil(t, v.RedeemedAt)
	assert.True(t, first.Equal(*v.RedeemedAt))
	assert.Equal(t, "Ayu", v.BuyerName)
	assert.Equal(t, "Borobudur", v.DestinationName)
}

func TestMemoryCartOwnership(t *testing.T) {
	s, uid, did := seedMemory(t)
	ctx := context.Background()
	line := &model.CartLine{UserID: uid, DestinationID: did, Quantity: 2, VisitDate: "2025-02-02"}
	require.NoError(t, s.AddCartLine(ctx, line))

	assert.ErrorIs(t, s.DeleteCartLine(ctx, uid+100, line.ID), ErrNotFound)
	assert.NoError(t, s.DeleteCartLine(ctx, uid, line.ID))
	assert.ErrorIs(t, s.DeleteCartLine(ctx, uid, line.ID), ErrNotFound)
}

func TestMemoryRefreshTokens(t *testing.T) {
	s, uid, _ := seedMemory(t)
	ctx := context.Background()
	require.NoError(t, s.StoreRefresh(ctx, uid, "h1", time.Now().Add(time.Hour)))
	got, err := s.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	require.NoError(t, s.RevokeByHash(ctx, "h1"))
	_, err = s.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.StoreRefresh(ctx, uid, "h2", time.Now().Add(-time.Minute)))
	_, err = s.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
