package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelDatabase Channel = "database"
	ChannelMail     Channel = "mail"
)

// Notification is an entry of a user's in-app inbox (database channel).
type Notification struct {
	ID        uuid.UUID
	UserID    string
	Title     string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}
