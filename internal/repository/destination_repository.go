package repository

import (
    "context"
    "database/sql"

    "github.com/BintangGalang/TiketLoka/internal/model"
)

// DestinationRepo is the read-only catalog accessor.  Destination admin
// CRUD lives outside this service; the booking core only reads prices
// and the active flag.
type DestinationRepo struct {
    db *sql.DB
}

// NewDestinationRepo returns a DestinationRepo bound to db.
func NewDestinationRepo(db *sql.DB) *DestinationRepo { return &DestinationRepo{db: db} }

const selectDestination = `SELECT id, category_id, name, slug, price, is_active, COALESCE(image_url, '') FROM destinations`

func scanDestination(row interface{ Scan(...interface{}) error }) (model.Destination, error) {
    var d model.Destination
    if err := row.Scan(&d.ID, &d.CategoryID, &d.Name, &d.Slug, &d.Price, &d.IsActive, &d.ImageURL); err != nil {
        return model.Destination{}, mapErr(err)
    }
    return d, nil
}

// GetDestination returns a destination by id or ErrNotFound.
func (r *DestinationRepo) GetDestination(ctx context.Context, id uint64) (model.Destination, error) {
    return scanDestination(r.db.QueryRowContext(ctx, selectDestination+` WHERE id = ?`, id))
}

// ListActiveDestinations returns all sellable destinations ordered by name.
func (r *DestinationRepo) ListActiveDestinations(ctx context.Context) ([]model.Destination, error) {
    rows, err := r.db.QueryContext(ctx, selectDestination+` WHERE is_active = 1 ORDER BY name, id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Destination, 0)
    for rows.Next() {
        d, err := scanDestination(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}
