package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/medilink/medilink-api/config"
	"github.com/medilink/medilink-api/middleware"
	"github.com/medilink/medilink-api/models"
	"github.com/medilink/medilink-api/services"
)

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Body string `json:"body"`
}

// requireCounterpart resolves the :id path parameter to an existing user and
// enforces the relationship policy: when CHAT_REQUIRE_APPOINTMENT is on, the
// caller and the counterpart must share at least one appointment. Writes the
// error response and returns nil when the check fails.
func requireCounterpart(c *gin.Context, db *gorm.DB, caller *models.User) *models.User {
	var counterpart models.User
	if err := db.First(&counterpart, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RECIPIENT_NOT_FOUND",
				"message": "The requested contact does not exist",
			},
		})
		return nil
	}

	cfg := config.GetConfig()
	if cfg != nil && cfg.ChatRequireAppointment {
		exists, err := services.AppointmentExists(db, caller.ID, counterpart.ID)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FETCH_FAILED",
					"message": "Could not verify the conversation relationship",
				},
			})
			return nil
		}
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_A_CONTACT",
					"message": "You can only message contacts you share an appointment with",
				},
			})
			return nil
		}
	}

	return &counterpart
}

// GetMessageHistory handles GET /api/v1/messages/:id - the full conversation
// with the given contact, oldest first
func GetMessageHistory(c *gin.Context) {
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

	counterpart := requireCounterpart(c, db, &user)
	if counterpart == nil {
		return
	}

	store := services.NewMessageStore(db)
	messages, err := store.LoadHistory(user.ID, counterpart.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FETCH_FAILED",
				"message": "Failed to load the conversation. Please retry.",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}

// GetLastMessage handles GET /api/v1/messages/:id/last - the preview line the
// contact list shows for this conversation
func GetLastMessage(c *gin.Context) {
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

	counterpart := requireCounterpart(c, db, &user)
	if counterpart == nil {
		return
	}

	store := services.NewMessageStore(db)
	last, err := store.LastMessage(user.ID, counterpart.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FETCH_FAILED",
				"message": "Failed to load the conversation preview. Please retry.",
			},
		})
		return
	}

	// A pair with no messages yet is a valid state, not an error
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    last,
	})
}

// SendMessage handles POST /api/v1/messages/:id - sends a message to the
// given contact. The server assigns the timestamp; the persisted row is
// returned and also published on the change feed so open conversations update
// live. An empty body is a no-op.
func SendMessage(c *gin.Context) {
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

	counterpart := requireCounterpart(c, db, &user)
	if counterpart == nil {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	store := services.NewMessageStore(db)
	message, err := store.Send(user.ID, counterpart.ID, req.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SEND_FAILED",
				"message": "Failed to send the message. Your draft was not lost; please retry.",
			},
		})
		return
	}

	// Empty body after trimming: nothing was written, nothing to publish
	if message == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    nil,
		})
		return
	}

	if broker := services.GetChatBroker(); broker != nil {
		if err := broker.Publish(message); err != nil {
			// Delivery to open sessions is best-effort; the write succeeded
			logrus.WithError(err).Warn("Failed to publish message to change feed")
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}
