package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medilink/medilink-api/config"
	"github.com/medilink/medilink-api/middleware"
	"github.com/medilink/medilink-api/models"
)

// UpdateDoctorDetailRequest represents the request body for a doctor updating
// their professional profile
type UpdateDoctorDetailRequest struct {
	Specialization  string `json:"specialization" binding:"omitempty"`
	Qualification   string `json:"qualification" binding:"omitempty"`
	ExperienceYears *int   `json:"experience_years" binding:"omitempty,min=0"`
	Availability    string `json:"availability" binding:"omitempty"`
}

// doctorListing is the shape the directory returns: the user identity merged
// with the professional profile
type doctorListing struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Specialization  string `json:"specialization"`
	Qualification   string `json:"qualification,omitempty"`
	ExperienceYears int    `json:"experience_years,omitempty"`
	Availability    string `json:"availability,omitempty"`
}

// ListDoctors handles GET /api/v1/doctors - lists all doctors with their details
// This is a public endpoint so patients can browse before booking
func ListDoctors(c *gin.Context) {
	db := config.GetDB()

	var doctors []models.User
	if err := db.Where("role = ?", "doctor").Order("id ASC").Find(&doctors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch doctors",
			},
		})
		return
	}

	listings := make([]doctorListing, 0, len(doctors))
	for _, doctor := range doctors {
		listing := doctorListing{
			ID:             doctor.ID,
			Name:           doctor.Name,
			Email:          doctor.Email,
			Specialization: "General Medicine",
		}

		var detail models.DoctorDetail
		if err := db.Where("user_id = ?", doctor.ID).Take(&detail).Error; err == nil {
			if detail.Specialization != "" {
				listing.Specialization = detail.Specialization
			}
			listing.Qualification = detail.Qualification
			listing.ExperienceYears = detail.ExperienceYears
			listing.Availability = detail.Availability
		}

		listings = append(listings, listing)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    listings,
	})
}

// GetDoctor handles GET /api/v1/doctors/:id - fetches one doctor with details
func GetDoctor(c *gin.Context) {
	db := config.GetDB()

	var doctor models.User
	if err := db.Where("role = ?", "doctor").First(&doctor, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOCTOR_NOT_FOUND",
				"message": "Doctor not found",
			},
		})
		return
	}

	listing := doctorListing{
		ID:             doctor.ID,
		Name:           doctor.Name,
		Email:          doctor.Email,
		Specialization: "General Medicine",
	}
	var detail models.DoctorDetail
	if err := db.Where("user_id = ?", doctor.ID).Take(&detail).Error; err == nil {
		if detail.Specialization != "" {
			listing.Specialization = detail.Specialization
		}
		listing.Qualification = detail.Qualification
		listing.ExperienceYears = detail.ExperienceYears
		listing.Availability = detail.Availability
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    listing,
	})
}

// UpdateMyDoctorDetail handles PUT /api/v1/doctors/me - updates the calling
// doctor's professional profile
func UpdateMyDoctorDetail(c *gin.Context) {
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

	if user.Role != "doctor" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only doctors can update doctor details",
			},
		})
		return
	}

	var req UpdateDoctorDetailRequest
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

	// The detail row is created at signup, but tolerate its absence
	var detail models.DoctorDetail
	if err := db.Where("user_id = ?", user.ID).Take(&detail).Error; err != nil {
		detail = models.DoctorDetail{UserID: user.ID}
	}

	if req.Specialization != "" {
		detail.Specialization = req.Specialization
	}
	if req.Qualification != "" {
		detail.Qualification = req.Qualification
	}
	if req.ExperienceYears != nil {
		detail.ExperienceYears = *req.ExperienceYears
	}
	if req.Availability != "" {
		detail.Availability = req.Availability
	}

	if err := db.Save(&detail).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update doctor details",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    detail,
	})
}
