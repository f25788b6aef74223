package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/BintangGalang/TiketLoka/internal/model"
)

// CartRepo manages cart lines outside of checkout.  Checkout itself locks
// and deletes lines through BookingRepo.WithinTx so that the conversion is
// part of the booking transaction.
type CartRepo struct {
    db *sql.DB
}

// NewCartRepo returns a CartRepo bound to db.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// AddCartLine inserts a new line and populates its ID and CreatedAt.
func (r *CartRepo) AddCartLine(ctx context.Context, line *model.CartLine) error {
    now := time.Now().UTC()
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO carts (user_id, destination_id, quantity, visit_date, created_at) VALUES (?, ?, ?, ?, ?)`,
        line.UserID, line.DestinationID, line.Quantity, line.VisitDate, now)
    if err != nil {
        return mapErr(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    line.ID = uint64(id)
    line.CreatedAt = now
    return nil
}

// ListCartLines returns the user's cart joined with destinations, oldest first.
func (r *CartRepo) ListCartLines(ctx context.Context, userID uint64) ([]model.CartLine, error) {
    const q = `SELECT c.id, c.user_id, c.destination_id, c.quantity, DATE_FORMAT(c.visit_date, '%Y-%m-%d'), c.created_at,
                      d.id, d.category_id, d.name, d.slug, d.price, d.is_active, COALESCE(d.image_url, '')
               FROM carts c
               JOIN destinations d ON d.id = c.destination_id
               WHERE c.user_id = ?
               ORDER BY c.id`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    lines := make([]model.CartLine, 0)
    for rows.Next() {
        var l model.CartLine
        var d model.Destination
        if err := rows.Scan(&l.ID, &l.UserID, &l.DestinationID, &l.Quantity, &l.VisitDate, &l.CreatedAt,
            &d.ID, &d.CategoryID, &d.Name, &d.Slug, &d.Price, &d.IsActive, &d.ImageURL); err != nil {
            return nil, err
        }
        l.Destination = &d
        lines = append(lines, l)
    }
    return lines, rows.Err()
}

// DeleteCartLine removes one line of the user.
func (r *CartRepo) DeleteCartLine(ctx context.Context, userID, id uint64) error {
    res, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = ? AND user_id = ?`, id, userID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}
