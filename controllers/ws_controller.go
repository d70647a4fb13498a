package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/medilink/medilink-api/config"
	"github.com/medilink/medilink-api/middleware"
	"github.com/medilink/medilink-api/models"
	"github.com/medilink/medilink-api/services"
)

// chatEvent is the single frame shape used in both directions on the live
// chat socket. Client events: "select" (contact_id), "send" (body), "retry"
// (reloads the current conversation after a failed load). Server events:
// "history" (contact_id, messages), "message" (message), "error" (error).
type chatEvent struct {
	Type      string           `json:"type"`
	ContactID uint             `json:"contact_id,omitempty"`
	Body      string           `json:"body,omitempty"`
	Message   *models.Message  `json:"message,omitempty"`
	Messages  []models.Message `json:"messages,omitempty"`
	Error     *chatError       `json:"error,omitempty"`
}

type chatError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LiveChat handles GET /api/v1/ws/chat - upgrades to a WebSocket carrying one
// conversation session. The client selects a contact, receives the history,
// then both its own confirmed sends and the counterpart's messages as they
// arrive. Switching contacts reuses the same socket; closing it releases the
// live subscription.
func LiveChat(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User profile not found. Please create a profile first.",
			},
		})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// All frames go out through one writer goroutine; the session's message
	// callback and the read loop both feed it. A full buffer drops the frame
	// rather than stalling the broker; the client recovers on reselect.
	outbound := make(chan chatEvent, 64)
	send := func(ev chatEvent) {
		select {
		case outbound <- ev:
		case <-ctx.Done():
		default:
		}
	}
	go func() {
		for {
			select {
			case ev := <-outbound:
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	broker := services.GetChatBroker()
	if broker == nil {
		broker = services.NewMemoryBroker()
	}
	session := services.NewConversationSession(user.ID, services.NewMessageStore(db), broker, func(msg models.Message) {
		send(chatEvent{Type: "message", Message: &msg})
	})
	defer session.Close()

	cfg := config.GetConfig()
	for {
		var ev chatEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			// Normal closure or dropped connection; Close releases the
			// subscription either way
			return
		}

		switch ev.Type {
		case "select":
			var counterpart models.User
			if err := db.First(&counterpart, ev.ContactID).Error; err != nil {
				send(chatEvent{Type: "error", Error: &chatError{
					Code:    "RECIPIENT_NOT_FOUND",
					Message: "The requested contact does not exist",
				}})
				continue
			}
			if cfg != nil && cfg.ChatRequireAppointment {
				exists, err := services.AppointmentExists(db, user.ID, counterpart.ID)
				if err != nil || !exists {
					send(chatEvent{Type: "error", Error: &chatError{
						Code:    "NOT_A_CONTACT",
						Message: "You can only message contacts you share an appointment with",
					}})
					continue
				}
			}

			history, err := session.Select(ev.ContactID)
			if err != nil {
				send(chatEvent{Type: "error", Error: &chatError{
					Code:    "FETCH_FAILED",
					Message: "Failed to load the conversation. Please retry.",
				}})
				continue
			}
			if history == nil {
				// Superseded by a newer select on this socket
				continue
			}
			send(chatEvent{Type: "history", ContactID: ev.ContactID, Messages: history})

		case "send":
			if _, err := session.Send(ev.Body); err != nil {
				// The draft stays on the client; nothing was persisted
				send(chatEvent{Type: "error", Error: &chatError{
					Code:    "SEND_FAILED",
					Message: "Failed to send the message. Please retry.",
				}})
			}
			// The confirmed message reaches the client through the session
			// callback, same path as a live delivery

		case "retry":
			history, err := session.Retry()
			if err != nil {
				send(chatEvent{Type: "error", Error: &chatError{
					Code:    "FETCH_FAILED",
					Message: "Failed to load the conversation. Please retry.",
				}})
				continue
			}
			send(chatEvent{Type: "history", ContactID: session.ContactID(), Messages: history})

		default:
			send(chatEvent{Type: "error", Error: &chatError{
				Code:    "UNKNOWN_EVENT",
				Message: "Unsupported event type",
			}})
		}
	}
}
