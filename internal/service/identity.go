package service

import "github.com/BintangGalang/TiketLoka/internal/model"

// Identity is the authenticated caller.
type Identity struct {
    UserID uint64
    Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == model.RoleAdmin }
