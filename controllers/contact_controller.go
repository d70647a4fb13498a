package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medilink/medilink-api/config"
	"github.com/medilink/medilink-api/middleware"
	"github.com/medilink/medilink-api/models"
	"github.com/medilink/medilink-api/services"
)

// ListContacts handles GET /api/v1/contacts - the people the caller may
// message, derived from their appointments. A resolver failure degrades to an
// empty list rather than an error: the client renders the empty state and the
// user can refresh.
func ListContacts(c *gin.Context) {
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

	resolver := services.NewContactResolver(db, services.NewMessageStore(db))
	contacts, err := resolver.Contacts(user.ID, user.Role)
	if err != nil && !errors.Is(err, services.ErrFetchFailed) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to resolve contacts",
			},
		})
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Contact resolution degraded to empty list")
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    contacts,
	})
}
