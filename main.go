package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medilink/medilink-api/config"
	"github.com/medilink/medilink-api/controllers"
	"github.com/medilink/medilink-api/middleware"
	"github.com/medilink/medilink-api/models"
	"github.com/medilink/medilink-api/services"
)

func main() {
	// Load configuration first so logging honors LOG_LEVEL/LOG_FORMAT
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogger(cfg)

	logrus.Info("Starting MediLink API server...")

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(&models.User{}, &models.DoctorDetail{}, &models.Appointment{}, &models.Message{}); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}
	logrus.Info("Database migration completed successfully")

	// Live delivery: NATS JetStream when configured, in-process otherwise
	if cfg.NatsURL != "" {
		broker, err := services.NewNatsBroker(cfg.NatsURL)
		if err != nil {
			logrus.Fatalf("Failed to connect to NATS: %v", err)
		}
		services.InitChatBroker(broker)
		logrus.WithField("url", cfg.NatsURL).Info("Chat change feed backed by NATS JetStream")
	} else {
		services.InitChatBroker(services.NewMemoryBroker())
		logrus.Info("Chat change feed running in-process")
	}

	// Attachment storage: S3 when a bucket is configured, local disk otherwise
	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.InitS3Service()
		if err != nil {
			logrus.Fatalf("Failed to initialize S3: %v", err)
		}
		services.InitAttachmentService(s3Service)
		logrus.WithField("bucket", cfg.AWSS3Bucket).Info("Attachments stored in S3")
	} else {
		logrus.Info("Attachments stored on local disk")
	}

	router := setupRouter(cfg)

	// Start server
	addr := ":" + cfg.Port
	logrus.Infof("Server is running on http://localhost%s", addr)
	if err := router.Run(addr); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}

// setupLogger configures logrus from LOG_LEVEL and LOG_FORMAT
func setupLogger(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" || cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// setupRouter builds the full route table. Kept separate from main so the
// integration tests can exercise the real routing.
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	v1 := router.Group("/api/v1")
	{
		// Public endpoints
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)
		v1.GET("/doctors", controllers.ListDoctors)
		v1.GET("/doctors/:id", controllers.GetDoctor)
		v1.GET("/uploads/:filename", controllers.GetUploadedAttachment)

		// Authenticated endpoints
		authed := v1.Group("")
		authed.Use(middleware.EnsureValidToken(cfg))
		{
			authed.POST("/users", controllers.CreateUser)
			authed.GET("/users/me", controllers.GetMyProfile)
			authed.PUT("/users/me", controllers.UpdateMyProfile)

			authed.PUT("/doctors/me", controllers.UpdateMyDoctorDetail)

			authed.POST("/appointments", controllers.CreateAppointment)
			authed.GET("/appointments", controllers.ListAppointments)
			authed.PUT("/appointments/:id/status", controllers.UpdateAppointmentStatus)
			authed.POST("/appointments/:id/attachment", controllers.UploadAttachment)

			authed.GET("/contacts", controllers.ListContacts)

			authed.GET("/messages/:id", controllers.GetMessageHistory)
			authed.GET("/messages/:id/last", controllers.GetLastMessage)
			authed.POST("/messages/:id", controllers.SendMessage)

			authed.GET("/ws/chat", controllers.LiveChat)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "MediLink API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
