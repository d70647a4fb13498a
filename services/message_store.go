package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/medilink/medilink-api/models"
)

// MessageStore reads and writes chat messages. A conversation is the
// unordered pair of participant ids, so every read matches the pair in
// either direction and both read paths (full history, last message) share
// the same ordering: created_at ascending, id as the tie-breaker.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore creates a message store on top of the given database
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// LoadHistory returns all messages between the two users, oldest first.
// It is read-only and idempotent. On a gateway failure it returns an empty
// slice wrapped with ErrFetchFailed; a failed load degrades the conversation
// view but is not fatal to the session.
func (s *MessageStore) LoadHistory(userA, userB uint) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_a": userA,
			"user_b": userB,
		}).Warn("Failed to load message history")
		return []models.Message{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return messages, nil
}

// Send persists a new message with a server-assigned timestamp and returns
// it. A body that is empty after trimming is a no-op: no row is written and
// no error is returned, mirroring "nothing to send". On a gateway failure it
// returns ErrSendFailed and leaves no partial state.
func (s *MessageStore) Send(senderID, receiverID uint, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	message := models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       strings.TrimSpace(body),
	}
	if err := s.db.Create(&message).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"sender_id":   senderID,
			"receiver_id": receiverID,
		}).Warn("Failed to persist message")
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return &message, nil
}

// LastMessage returns the most recent message between the two users, or nil
// when the pair has no messages yet ("no messages yet" is a displayable
// state, not an error). The row returned is always the tail of what
// LoadHistory would return for the same pair.
func (s *MessageStore) LastMessage(userA, userB uint) (*models.Message, error) {
	var message models.Message
	err := s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at DESC, id DESC").
		Limit(1).
		Take(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return &message, nil
}
