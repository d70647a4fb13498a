package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/medilink/medilink-api/models"
)

// SessionState is the lifecycle state of an open conversation view
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateLoading SessionState = "loading"
	StateReady   SessionState = "ready"
	StateSending SessionState = "sending"
	StateError   SessionState = "error"
)

// conversationStore is the slice of the message store a session needs.
// Tests substitute slow or failing gateways through it.
type conversationStore interface {
	LoadHistory(userA, userB uint) ([]models.Message, error)
	Send(senderID, receiverID uint, body string) (*models.Message, error)
}

// ConversationSession is the per-connection view model of one user's open
// conversation. It owns the ordered message list the client renders and the
// single live subscription that keeps it current.
//
// Selections are epoch-tagged: Select bumps the epoch before loading, and
// both the load result and every subscription delivery carry the epoch they
// were issued under. A result whose epoch no longer matches is discarded, so
// a late-arriving history load for a since-deselected contact, or a message
// from a not-yet-stopped old subscription, never mutates the current view.
// Deliveries are also deduplicated by message id because the feed does not
// promise at-most-once relative to a concurrent reload.
type ConversationSession struct {
	userID uint
	store  conversationStore
	broker Broker

	// onMessage, when set, is invoked (outside the lock) for every message
	// newly appended to the current view — both live deliveries and the
	// user's own confirmed sends.
	onMessage func(models.Message)

	mu        sync.Mutex
	state     SessionState
	epoch     uint64
	contactID uint
	messages  []models.Message
	seen      map[uint]bool
	draft     string
	sub       *Subscription
}

// NewConversationSession creates an idle session for the given user
func NewConversationSession(userID uint, store conversationStore, broker Broker, onMessage func(models.Message)) *ConversationSession {
	return &ConversationSession{
		userID:    userID,
		store:     store,
		broker:    broker,
		onMessage: onMessage,
		state:     StateIdle,
		seen:      make(map[uint]bool),
	}
}

// Select opens the conversation with contactID: it releases any previous
// subscription, loads the pair's history and resubscribes for live inserts.
// It returns the loaded history. If a newer Select supersedes this one while
// the load is in flight, the stale result is discarded and (nil, nil) is
// returned. A load failure moves the session to StateError; Retry or a new
// Select recovers it.
func (s *ConversationSession) Select(contactID uint) ([]models.Message, error) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.contactID = contactID
	s.state = StateLoading
	s.messages = nil
	s.seen = make(map[uint]bool)
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	s.mu.Unlock()

	history, err := s.store.LoadHistory(s.userID, contactID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		// Superseded by a newer selection while the load was in flight
		return nil, nil
	}
	if err != nil {
		s.state = StateError
		return nil, err
	}

	s.messages = history
	for _, msg := range history {
		s.seen[msg.ID] = true
	}
	s.state = StateReady

	sub, subErr := s.broker.Subscribe(s.userID, contactID, func(msg *models.Message) {
		s.deliver(epoch, *msg)
	})
	if subErr != nil {
		// Degraded but usable: history stays valid, live updates stop
		// until the next reselect.
		logrus.WithError(subErr).WithField("contact_id", contactID).Warn("Live delivery unavailable for conversation")
	} else {
		s.sub = sub
	}

	return s.snapshotLocked(), nil
}

// Retry re-runs the failed history load for the current contact
func (s *ConversationSession) Retry() ([]models.Message, error) {
	s.mu.Lock()
	if s.state != StateError {
		s.mu.Unlock()
		return s.Messages(), nil
	}
	contactID := s.contactID
	s.mu.Unlock()
	return s.Select(contactID)
}

// Send validates and persists a message to the selected contact, then
// publishes it on the change feed. An empty body (after trimming) is a
// no-op. On failure the draft is preserved so the caller can retry, and the
// session returns to StateReady — there is no silent loss and no auto-retry.
func (s *ConversationSession) Send(body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot send in state %q", state)
	}
	epoch := s.epoch
	contactID := s.contactID
	s.draft = body
	s.state = StateSending
	s.mu.Unlock()

	message, err := s.store.Send(s.userID, contactID, body)

	s.mu.Lock()
	if epoch == s.epoch && s.state == StateSending {
		s.state = StateReady
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.draft = ""
	var appended bool
	if message != nil && epoch == s.epoch && !s.seen[message.ID] {
		s.seen[message.ID] = true
		s.messages = append(s.messages, *message)
		appended = true
	}
	callback := s.onMessage
	s.mu.Unlock()

	if appended && callback != nil {
		callback(*message)
	}
	if message != nil {
		// Fan out to the counterpart's open sessions. Our own subscription
		// will echo it back; the seen set absorbs the duplicate.
		if pubErr := s.broker.Publish(message); pubErr != nil {
			logrus.WithError(pubErr).Warn("Failed to publish message to change feed")
		}
	}
	return message, nil
}

// deliver applies one change-feed message to the view, discarding stale
// epochs and duplicate ids
func (s *ConversationSession) deliver(epoch uint64, msg models.Message) {
	s.mu.Lock()
	if epoch != s.epoch || s.seen[msg.ID] {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = true
	s.messages = append(s.messages, msg)
	callback := s.onMessage
	s.mu.Unlock()

	if callback != nil {
		callback(msg)
	}
}

// Close releases the live subscription and resets the session. It must run
// on every exit path (contact switch is handled by Select, screen close and
// logout call Close) and is safe to call more than once.
func (s *ConversationSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	s.state = StateIdle
	s.messages = nil
	s.seen = make(map[uint]bool)
}

// State returns the current lifecycle state
func (s *ConversationSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ContactID returns the currently selected counterpart (0 when idle)
func (s *ConversationSession) ContactID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contactID
}

// Draft returns the preserved body of a failed send, empty otherwise
func (s *ConversationSession) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Messages returns a copy of the ordered message list
func (s *ConversationSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ConversationSession) snapshotLocked() []models.Message {
	snapshot := make([]models.Message, len(s.messages))
	copy(snapshot, s.messages)
	return snapshot
}
