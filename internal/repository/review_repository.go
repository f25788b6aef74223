package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/BintangGalang/TiketLoka/internal/model"
)

// ReviewRepo persists reviews.  The (user_id, destination_id, booking_id)
// unique index guarantees at most one review per purchase even when two
// submissions race past the existence check.
type ReviewRepo struct {
    db *sql.DB
}

// NewReviewRepo returns a ReviewRepo bound to db.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// LatestSettledBookingWith finds the newest successful booking of the user
// that contains the destination.
func (r *ReviewRepo) LatestSettledBookingWith(ctx context.Context, userID, destinationID uint64) (uint64, error) {
    const q = `SELECT b.id
               FROM bookings b
               WHERE b.user_id = ? AND b.status = ?
                 AND EXISTS (SELECT 1 FROM booking_details bd WHERE bd.booking_id = b.id AND bd.destination_id = ?)
               ORDER BY b.created_at DESC, b.id DESC
               LIMIT 1`
    var id uint64
    if err := r.db.QueryRowContext(ctx, q, userID, model.StatusSuccess, destinationID).Scan(&id); err != nil {
        return 0, mapErr(err)
    }
    return id, nil
}

func (r *ReviewRepo) ReviewExists(ctx context.Context, userID, destinationID, bookingID uint64) (bool, error) {
    var one int
    err := r.db.QueryRowContext(ctx,
        `SELECT 1 FROM reviews WHERE user_id = ? AND destination_id = ? AND booking_id = ? LIMIT 1`,
        userID, destinationID, bookingID).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    return err == nil, err
}

// CreateReview inserts the review and populates ID and CreatedAt.
func (r *ReviewRepo) CreateReview(ctx context.Context, rv *model.Review) error {
    if rv.CreatedAt.IsZero() {
        rv.CreatedAt = time.Now().UTC()
    }
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO reviews (user_id, destination_id, booking_id, rating, comment, image, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
        rv.UserID, rv.DestinationID, rv.BookingID, rv.Rating, rv.Comment, rv.Image, rv.CreatedAt.UTC())
    if err != nil {
        return mapErr(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    rv.ID = uint64(id)
    return nil
}

// ListByDestination returns one page of reviews, newest first, together
// with the total count.  Only the reviewer's id and name are joined.
func (r *ReviewRepo) ListByDestination(ctx context.Context, destinationID uint64, limit, offset int) ([]model.Review, int, error) {
    var total int
    if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE destination_id = ?`, destinationID).Scan(&total); err != nil {
        return nil, 0, err
    }
    const q = `SELECT rv.id, rv.user_id, rv.destination_id, rv.booking_id, rv.rating, rv.comment, rv.image, rv.created_at,
                      u.id, u.name
               FROM reviews rv
               JOIN users u ON u.id = rv.user_id
               WHERE rv.destination_id = ?
               ORDER BY rv.created_at DESC, rv.id DESC
               LIMIT ? OFFSET ?`
    rows, err := r.db.QueryContext(ctx, q, destinationID, limit, offset)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()
    out := make([]model.Review, 0, limit)
    for rows.Next() {
        var rv model.Review
        var u model.PublicUser
        var comment, image sql.NullString
        if err := rows.Scan(&rv.ID, &rv.UserID, &rv.DestinationID, &rv.BookingID, &rv.Rating, &comment, &image,
            &rv.CreatedAt, &u.ID, &u.Name); err != nil {
            return nil, 0, err
        }
        if comment.Valid {
            c := comment.String
            rv.Comment = &c
        }
        if image.Valid {
            i := image.String
            rv.Image = &i
        }
        rv.CreatedAt = rv.CreatedAt.UTC()
        rv.User = &u
        out = append(out, rv)
    }
    return out, total, rows.Err()
}
