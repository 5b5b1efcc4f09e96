package models

import (
	"time"

	"github.com/google/uuid"
)

// Single use refresh token stored server side
type RefreshToken struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
