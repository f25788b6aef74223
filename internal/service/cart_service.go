package service

import (
    "context"
    "errors"

    "github.com/BintangGalang/TiketLoka/internal/model"
    "github.com/BintangGalang/TiketLoka/internal/repository"
)

// CartService manages pending selections before checkout.
type CartService struct {
    carts   repository.CartStore
    catalog repository.CatalogStore
}

func NewCartService(carts repository.CartStore, catalog repository.CatalogStore) *CartService {
    return &CartService{carts: carts, catalog: catalog}
}

// CartInput adds one destination to the cart.
type CartInput struct {
    DestinationID int64
    Quantity      int
    VisitDate     string
}

// Add validates the line against the catalog and stores it.  Inactive
// destinations cannot be added.
func (s *CartService) Add(ctx context.Context, id Identity, in CartInput) (*model.CartLine, error) {
    if in.DestinationID <= 0 {
        return nil, invalid("destination_id", "destination_id is required")
    }
    if err := checkQuantity(in.Quantity); err != nil {
        return nil, err
    }
    visit, err := ParseDate(in.VisitDate)
    if err != nil {
        return nil, invalid("visit_date", "visit_date must be a date in YYYY-MM-DD format")
    }
    dest, err := s.catalog.GetDestination(ctx, uint64(in.DestinationID))
    if errors.Is(err, repository.ErrNotFound) || (err == nil && !dest.IsActive) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    line := &model.CartLine{
        UserID:        id.UserID,
        DestinationID: dest.ID,
        Quantity:      in.Quantity,
        VisitDate:     visit.Format(DateLayout),
    }
    if err := s.carts.AddCartLine(ctx, line); err != nil {
        return nil, err
    }
    line.Destination = &dest
    return line, nil
}

func (s *CartService) List(ctx context.Context, id Identity) ([]model.CartLine, error) {
    return s.carts.ListCartLines(ctx, id.UserID)
}

// Remove deletes one of the caller's lines.
func (s *CartService) Remove(ctx context.Context, id Identity, lineID uint64) error {
    err := s.carts.DeleteCartLine(ctx, id.UserID, lineID)
    if errors.Is(err, repository.ErrNotFound) {
        return ErrNotFound
    }
    return err
}
