package routes

import (
	"context"
	"net/http"
	"time"

	"tablebook-backend/clock"
	"tablebook-backend/events"
	"tablebook-backend/firebase"
	"tablebook-backend/handlers"
	"tablebook-backend/middleware"
	"tablebook-backend/reservation"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the handlers share. Nil limiters disable rate
// limiting; a nil Clock, Validator or Events falls back to the defaults.
type Deps struct {
	DB             *gorm.DB
	Storage        firebase.StorageClient
	Validator      *reservation.Validator
	Clock          clock.Clock
	Events         events.Publisher
	AuthLimiter    *middleware.RateLimiter
	BookingLimiter *middleware.RateLimiter
}

func limit(l *middleware.RateLimiter) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return l.Middleware()
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Validator == nil {
		deps.Validator = reservation.NewValidator(reservation.DefaultPolicy())
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}

	authHandler := &handlers.AuthHandler{DB: deps.DB}
	categoryHandler := &handlers.CategoryHandler{DB: deps.DB}
	restaurantHandler := &handlers.RestaurantHandler{
		DB:        deps.DB,
		Storage:   deps.Storage,
		Validator: deps.Validator,
		Clock:     deps.Clock,
	}
	articleHandler := &handlers.ArticleHandler{DB: deps.DB, Storage: deps.Storage, Clock: deps.Clock}
	bookingHandler := &handlers.BookingHandler{
		DB:        deps.DB,
		Validator: deps.Validator,
		Clock:     deps.Clock,
		Events:    deps.Events,
	}

	// Public routes
	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(limit(deps.AuthLimiter))
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)

		api.GET("/restaurants", restaurantHandler.GetRestaurants)
		api.GET("/restaurants/:id", restaurantHandler.GetRestaurant)
		api.GET("/restaurants/:id/open-status", restaurantHandler.GetOpenStatus)
		api.POST("/restaurants/:id/availability", restaurantHandler.CheckAvailability)

		api.GET("/categories", categoryHandler.GetCategories)
		api.GET("/categories/:id", categoryHandler.GetCategory)

		api.GET("/articles", articleHandler.GetArticles)
		api.GET("/articles/:slug", articleHandler.GetArticle)
	}

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)
		protected.PUT("/auth/password", authHandler.ChangePassword)
		protected.POST("/auth/logout", authHandler.Logout)

		protected.POST("/bookings", limit(deps.BookingLimiter), bookingHandler.CreateBooking)
		protected.GET("/bookings", bookingHandler.GetMyBookings)
		protected.GET("/bookings/:id", bookingHandler.GetBooking)
		protected.POST("/bookings/:id/cancel", bookingHandler.CancelBooking)
	}

	// Admin routes (require admin role)
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		admin.GET("/users", authHandler.ListUsers)
		admin.PUT("/users/:id", authHandler.UpdateUser)

		admin.GET("/restaurants", restaurantHandler.GetAllRestaurants)
		admin.POST("/restaurants", restaurantHandler.CreateRestaurant)
		admin.PUT("/restaurants/:id", restaurantHandler.UpdateRestaurant)
		admin.DELETE("/restaurants/:id", restaurantHandler.DeleteRestaurant)
		admin.POST("/restaurants/:id/image", restaurantHandler.UploadImage)
		admin.POST("/restaurants/:id/image-import", restaurantHandler.ImportImage)

		admin.POST("/categories", categoryHandler.CreateCategory)
		admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
		admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

		admin.GET("/articles", articleHandler.GetAllArticles)
		admin.POST("/articles", articleHandler.CreateArticle)
		admin.PUT("/articles/:id", articleHandler.UpdateArticle)
		admin.DELETE("/articles/:id", articleHandler.DeleteArticle)
		admin.POST("/articles/:id/cover", articleHandler.UploadCover)

		admin.GET("/bookings", bookingHandler.GetAllBookings)
		admin.PUT("/bookings/:id/status", bookingHandler.UpdateBookingStatus)
	}

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	})
}
