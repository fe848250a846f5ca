package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/handlers"
	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/realtime"
	"clinic-app-server/internal/records"
	"clinic-app-server/internal/scheduling"
	"clinic-app-server/internal/store"
)

// Deps bundles everything the route tree needs.
type Deps struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Store    store.Store
	Engine   *scheduling.Engine
	Calendar *scheduling.Calendar
	Records  *records.Service
	Hub      *realtime.Hub
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Deps) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Cfg)
	userHandler := handlers.NewUserHandler(deps.Store.Users())
	appointmentHandler := handlers.NewAppointmentHandler(deps.Engine, deps.Calendar)
	calendarHandler := handlers.NewCalendarHandler(deps.Calendar)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(deps.Records)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(deps.Cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// User management routes (typically admin-only)
		userRoutes := private.Group("/users")
		{
			// Doctors list is accessible to any authenticated user for booking
			userRoutes.GET("/doctors", userHandler.GetDoctors)

			// Patient list for doctors and admins
			userRoutes.GET("/patients", userHandler.GetPatients)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		// Appointment lifecycle routes; role legality lives in the engine
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.PATCH("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.DELETE("/:id", appointmentHandler.DeleteAppointment)

			appointmentRoutes.PATCH("/:id/accept", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.AcceptAppointment)
			appointmentRoutes.POST("/accept", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.AcceptAppointments)
			appointmentRoutes.POST("/unaccept", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.UnacceptAppointments)
			appointmentRoutes.POST("/delete", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.DeleteAppointments)

			appointmentRoutes.PUT("/:id/message", appointmentHandler.SaveAppointmentMessage)
			appointmentRoutes.DELETE("/:id/message", appointmentHandler.DeleteAppointmentMessage)
			appointmentRoutes.POST("/messages", appointmentHandler.AddMessageToAppointments)
			appointmentRoutes.POST("/messages/delete", appointmentHandler.DeleteMessagesFromAppointments)
		}

		// Calendar and dashboard views
		calendarRoutes := private.Group("/calendar")
		{
			calendarRoutes.GET("/counts", calendarHandler.GetCounts)
			calendarRoutes.GET("/missed", calendarHandler.GetMissedCalendar)
			calendarRoutes.GET("/today", calendarHandler.GetTodayAppointments)
			calendarRoutes.GET("/today/hours", calendarHandler.GetTotalHoursToday)
			calendarRoutes.GET("/now", middleware.RoleAuthMiddleware(models.RoleDoctor), calendarHandler.GetNowAppointment)
			calendarRoutes.GET("/next", middleware.RoleAuthMiddleware(models.RoleDoctor), calendarHandler.GetNextAppointment)
			calendarRoutes.GET("/just-created", calendarHandler.GetJustCreatedAppointment)
		}

		// Medical record routes
		medicalRecordRoutes := private.Group("/medical-records")
		{
			medicalRecordRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor), medicalRecordHandler.SaveRecord)
			medicalRecordRoutes.GET("", medicalRecordHandler.GetRecords)
			medicalRecordRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleDoctor), medicalRecordHandler.DeleteRecord)
			medicalRecordRoutes.POST("/delete", middleware.RoleAuthMiddleware(models.RoleDoctor), medicalRecordHandler.DeleteRecords)
			medicalRecordRoutes.POST("/finalize", middleware.RoleAuthMiddleware(models.RoleDoctor), medicalRecordHandler.FinalizeRecords)
		}

		// Realtime push channel
		private.GET("/ws", deps.Hub.HandleConnect)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
