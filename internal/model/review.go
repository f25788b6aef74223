package model

import "time"

// Review is a rating left by a buyer for a destination they purchased.
// At most one review exists per (UserID, DestinationID, BookingID).
type Review struct {
    ID            uint64      `json:"id"`
    UserID        uint64      `json:"user_id"`
    DestinationID uint64      `json:"destination_id"`
    BookingID     uint64      `json:"booking_id"`
    Rating        int         `json:"rating"`
    Comment       *string     `json:"comment"`
    Image         *string     `json:"image"`
    CreatedAt     time.Time   `json:"created_at"`
    User          *PublicUser `json:"user,omitempty"`
}

// ReviewPage is one page of a destination's reviews, newest first.
type ReviewPage struct {
    Data        []Review `json:"data"`
    CurrentPage int      `json:"current_page"`
    PerPage     int      `json:"per_page"`
    Total       int      `json:"total"`
    LastPage    int      `json:"last_page"`
}
