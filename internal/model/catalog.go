package model

import "time"

// Destination is a sellable catalog item.  The booking core only reads
// it: Price is looked up at checkout time and copied into the booking
// detail as a snapshot.
type Destination struct {
    ID         uint64 `json:"id"`
    CategoryID uint64 `json:"category_id"`
    Name       string `json:"name"`
    Slug       string `json:"slug"`
    Price      int64  `json:"price"`
    IsActive   bool   `json:"is_active"`
    ImageURL   string `json:"image_url,omitempty"`
}

// DestinationSummary is the slice of a destination nested in booking
// responses.
type DestinationSummary struct {
    ID       uint64 `json:"id"`
    Name     string `json:"name"`
    Slug     string `json:"slug"`
    ImageURL string `json:"image_url,omitempty"`
}

// CartLine is a pending, unpurchased selection owned by a single user.
// Destination is populated by stores that join the catalog (for example
// when locking lines for checkout).
type CartLine struct {
    ID            uint64       `json:"id"`
    UserID        uint64       `json:"user_id"`
    DestinationID uint64       `json:"destination_id"`
    Quantity      int          `json:"quantity"`
    VisitDate     string       `json:"visit_date"`
    CreatedAt     time.Time    `json:"created_at"`
    Destination   *Destination `json:"destination,omitempty"`
}
