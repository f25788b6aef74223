package repository

import (
    "context"
    "time"

    "github.com/BintangGalang/TiketLoka/internal/model"
)

// CheckoutTx is the set of operations the booking engine performs inside
// one atomic unit.  Implementations must make every write invisible to
// other callers until the surrounding WithinTx call returns nil.
type CheckoutTx interface {
    // LockCartLines returns the cart lines among ids that belong to
    // userID, joined with their destination, and locks them until the
    // transaction ends.  Unknown or foreign ids are silently skipped.
    LockCartLines(ctx context.Context, userID uint64, ids []uint64) ([]model.CartLine, error)
    GetDestination(ctx context.Context, id uint64) (model.Destination, error)
    BookingCodeExists(ctx context.Context, code string) (bool, error)
    // InsertBooking returns ErrDuplicateKey when the booking code is taken.
    InsertBooking(ctx context.Context, b *model.Booking) error
    TicketCodeExists(ctx context.Context, code string) (bool, error)
    // InsertDetail returns ErrDuplicateKey when the ticket code is taken.
    InsertDetail(ctx context.Context, d *model.BookingDetail) error
    DeleteCartLines(ctx context.Context, userID uint64, ids []uint64) error
}

// BookingStore persists bookings and exposes read-side projections.
type BookingStore interface {
    WithinTx(ctx context.Context, fn func(tx CheckoutTx) error) error
    ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
    GetByCode(ctx context.Context, code string) (*model.Booking, error)
    List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
}

// TicketStore backs the redemption gate.
type TicketStore interface {
    FindTicket(ctx context.Context, code string) (*model.TicketView, error)
    // MarkRedeemed sets redeemed_at only when it is still NULL and
    // reports whether this call performed the transition.
    MarkRedeemed(ctx context.Context, code string, at time.Time) (bool, error)
}

// ReviewStore backs the review gate.
type ReviewStore interface {
    // LatestSettledBookingWith returns the id of the caller's most recent
    // successful booking containing destinationID, or ErrNotFound.
    LatestSettledBookingWith(ctx context.Context, userID, destinationID uint64) (uint64, error)
    ReviewExists(ctx context.Context, userID, destinationID, bookingID uint64) (bool, error)
    // CreateReview returns ErrDuplicateKey when the purchase is already reviewed.
    CreateReview(ctx context.Context, r *model.Review) error
    ListByDestination(ctx context.Context, destinationID uint64, limit, offset int) ([]model.Review, int, error)
}

// CatalogStore is the read-only view of destinations.
type CatalogStore interface {
    GetDestination(ctx context.Context, id uint64) (model.Destination, error)
    ListActiveDestinations(ctx context.Context) ([]model.Destination, error)
}

// CartStore manages pending cart lines outside of checkout.
type CartStore interface {
    AddCartLine(ctx context.Context, line *model.CartLine) error
    ListCartLines(ctx context.Context, userID uint64) ([]model.CartLine, error)
    // DeleteCartLine returns ErrNotFound when the line is missing or owned
    // by someone else.
    DeleteCartLine(ctx context.Context, userID, id uint64) error
}

// UserStore persists accounts for the auth endpoints.
type UserStore interface {
    Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error)
    GetByEmail(ctx context.Context, email string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
    StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
    ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
    RevokeByHash(ctx context.Context, tokenHash string) error
    RevokeAllForUser(ctx context.Context, userID uint64) error
}

var (
	_ BookingStore = (*BookingRepo)(nil)
	_ TicketStore  = (*BookingRepo)(nil)
	_ CatalogStore = (*DestinationRepo)(nil)
	_ CartStore    = (*CartRepo)(nil)
	_ ReviewStore  = (*ReviewRepo)(nil)
	_ UserStore    = (*UserRepo)(nil)
	_ TokenStore   = (*TokenRepo)(nil)

	_ BookingStore = (*MemoryStore)(nil)
	_ TicketStore  = (*MemoryStore)(nil)
	_ CatalogStore = (*MemoryStore)(nil)
	_ CartStore    = (*MemoryStore)(nil)
	_ ReviewStore  = (*MemoryStore)(nil)
	_ UserStore    = (*MemoryStore)(nil)
	_ TokenStore   = (*MemoryStore)(nil)
)
