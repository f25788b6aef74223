package model

import "time"

// Roles carried in the JWT "role" claim.
const (
    RoleUser  = "USER"
    RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  Handlers never serialize it directly; they expose
// PublicUser or a dedicated response type instead.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name shown on tickets and reviews.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – USER or ADMIN.
//  IsActive     – whether the account is active.
type User struct {
    ID           uint64
    Name         string
    Email        string
    PasswordHash string
    Role         string
    IsActive     bool
    CreatedAt    time.Time
    UpdatedAt    time.Time
}

// PublicUser is the only part of a user exposed next to bookings and
// reviews.
type PublicUser struct {
    ID   uint64 `json:"id"`
    Name string `json:"name"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
    ID        uint64
    UserID    uint64
    TokenHash string
    ExpiresAt time.Time
    RevokedAt *time.Time
    CreatedAt time.Time
}
