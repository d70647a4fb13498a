package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medilink/medilink-api/config"
	"github.com/medilink/medilink-api/middleware"
	"github.com/medilink/medilink-api/models"
	"github.com/medilink/medilink-api/services"
	"github.com/medilink/medilink-api/utils"
)

// CreateAppointmentRequest represents the request body for booking an appointment
type CreateAppointmentRequest struct {
	DoctorID uint   `json:"doctor_id" binding:"required"`
	Reason   string `json:"reason" binding:"omitempty"`
}

// UpdateAppointmentStatusRequest represents the request body for a status change
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed cancelled completed"`
}

// CreateAppointment handles POST /api/v1/appointments - books an appointment
// with a doctor. Only patients can book.
func CreateAppointment(c *gin.Context) {
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

	if user.Role != "patient" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only patients can book appointments",
			},
		})
		return
	}

	var req CreateAppointmentRequest
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

	// The counterpart must exist and actually be a doctor
	var doctor models.User
	if err := db.Where("role = ?", "doctor").First(&doctor, req.DoctorID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOCTOR_NOT_FOUND",
				"message": "Doctor not found",
			},
		})
		return
	}

	appointment := models.Appointment{
		PatientID: user.ID,
		DoctorID:  doctor.ID,
		Status:    "pending",
		Reason:    req.Reason,
	}
	if err := db.Create(&appointment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create appointment",
			},
		})
		return
	}

	// Reload with associations for the response
	if err := db.Preload("Patient").Preload("Doctor").First(&appointment, appointment.ID).Error; err != nil {
		logrus.WithError(err).Warn("Failed to reload appointment with associations")
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    appointment,
	})
}

// ListAppointments handles GET /api/v1/appointments - lists the caller's
// appointments. Patients see the ones they booked, doctors the ones booked
// with them, admins see everything.
func ListAppointments(c *gin.Context) {
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

	query := db.Preload("Patient").Preload("Doctor")
	switch user.Role {
	case "patient":
		query = query.Where("patient_id = ?", user.ID)
	case "doctor":
		query = query.Where("doctor_id = ?", user.ID)
	}

	var appointments []models.Appointment
	if err := query.Order("id DESC").Find(&appointments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch appointments",
			},
		})
		return
	}

	// Resolve attachment keys to URLs; a broken attachment should not break
	// the whole listing
	attachmentService := services.GetAttachmentService()
	for i := range appointments {
		key := appointments[i].AttachmentS3Key
		if key == nil || *key == "" {
			continue
		}
		if attachmentService != nil {
			if url, err := attachmentService.GetAttachmentURL(*key); err == nil {
				appointments[i].AttachmentURL = &url
			}
		} else {
			url := utils.GetAttachmentURL(*key)
			appointments[i].AttachmentURL = &url
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    appointments,
	})
}

// UpdateAppointmentStatus handles PUT /api/v1/appointments/:id/status - a
// doctor confirming, cancelling or completing an appointment booked with them
func UpdateAppointmentStatus(c *gin.Context) {
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

	var appointment models.Appointment
	if err := db.First(&appointment, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "APPOINTMENT_NOT_FOUND",
				"message": "Appointment not found",
			},
		})
		return
	}

	// Patients may cancel their own bookings; doctors manage the rest
	canUpdate := false
	switch user.Role {
	case "doctor":
		canUpdate = appointment.DoctorID == user.ID
	case "patient":
		canUpdate = appointment.PatientID == user.ID
	case "admin":
		canUpdate = true
	}
	if !canUpdate {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to update this appointment",
			},
		})
		return
	}

	var req UpdateAppointmentStatusRequest
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

	// Patients can only cancel
	if user.Role == "patient" && req.Status != "cancelled" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Patients can only cancel appointments",
			},
		})
		return
	}

	appointment.Status = req.Status
	if err := db.Save(&appointment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update appointment",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    appointment,
	})
}

// UploadAttachment handles POST /api/v1/appointments/:id/attachment - attaches
// a referral letter or report to an appointment. Uses S3 when configured,
// local disk otherwise.
func UploadAttachment(c *gin.Context) {
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

	var appointment models.Appointment
	if err := db.First(&appointment, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "APPOINTMENT_NOT_FOUND",
				"message": "Appointment not found",
			},
		})
		return
	}

	// Only the two participants may attach files
	if appointment.PatientID != user.ID && appointment.DoctorID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to modify this appointment",
			},
		})
		return
	}

	fileHeader, err := c.FormFile("attachment")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "No attachment file provided",
			},
		})
		return
	}

	var key string
	if attachmentService := services.GetAttachmentService(); attachmentService != nil {
		key, err = attachmentService.UploadAttachment(fileHeader)
	} else {
		if err = utils.ValidateAttachmentFile(fileHeader); err == nil {
			key, err = utils.SaveUploadedFile(fileHeader, utils.UploadDir)
		}
	}
	if err != nil {
		if uploadErr, ok := err.(*utils.FileUploadError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    uploadErr.Code,
					"message": uploadErr.Message,
				},
			})
			return
		}
		logrus.WithError(err).Warn("Attachment upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": "Failed to store attachment",
			},
		})
		return
	}

	appointment.AttachmentS3Key = &key
	if err := db.Save(&appointment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to save attachment reference",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    appointment,
	})
}
