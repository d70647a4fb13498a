package models

import (
	"time"
)

// Message is one chat message between two users. Messages are immutable:
// they are inserted once with a server-assigned timestamp and never updated
// or deleted, so the model carries no UpdatedAt/DeletedAt columns.
// Display order is created_at ascending with id as the tie-breaker.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index" json:"sender_id"` // foreign key to users table
	Sender     User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID uint      `gorm:"not null;index" json:"receiver_id"` // foreign key to users table
	Receiver   User      `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}
