package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"tablebook-backend/clock"
	"tablebook-backend/events"
	"tablebook-backend/middleware"
	"tablebook-backend/models"
	"tablebook-backend/reservation"
	"tablebook-backend/testutil"
	"tablebook-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var testDB *gorm.DB

// testNow is a Saturday noon in UTC. Every handler under test reads time from
// a clock pinned here.
var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", "test-secret-key-for-unit-tests")
	os.Unsetenv("SMTP_HOST")

	if err := utils.RegisterBindingValidators(); err != nil {
		panic("failed to register validators: " + err.Error())
	}

	var err error
	testDB, err = testutil.OpenSQLite("file::memory:?cache=shared")
	if err != nil {
		panic("failed to open test database: " + err.Error())
	}

	os.Exit(m.Run())
}

// freshDB returns the shared database with every table emptied.
func freshDB() *gorm.DB {
	testutil.Truncate(testDB)
	return testDB
}

func testClock() clock.Clock {
	return clock.NewFixed(testNow)
}

// ==================== Seed Helpers ====================

func seedTestUser(db *gorm.DB, email, role string) (models.User, string) {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := models.User{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hashed),
		Name:     "Test User",
		Phone:    "+44 20 7946 0000",
		Role:     role,
	}
	db.Create(&user)

	token, _ := utils.GenerateToken(user.ID, user.Email, user.Role)
	return user, token
}

func seedCategory(db *gorm.DB, name string) models.Category {
	cat := models.Category{
		ID:   uuid.New(),
		Name: name,
	}
	db.Create(&cat)
	return cat
}

// seedRestaurant creates an active UTC restaurant with the given hours.
func seedRestaurant(db *gorm.DB, name, openTime, closeTime string) models.Restaurant {
	r := models.Restaurant{
		ID:        uuid.New(),
		Name:      name,
		Slug:      utils.Slugify(name) + "-" + uuid.NewString()[:6],
		City:      "London",
		OpenTime:  openTime,
		CloseTime: closeTime,
		Timezone:  "UTC",
		IsActive:  true,
	}
	db.Create(&r)
	return r
}

func seedBooking(db *gorm.DB, userID, restaurantID uuid.UUID, at time.Time, status models.BookingStatus) models.Booking {
	b := models.Booking{
		ID:           uuid.New(),
		UserID:       userID,
		RestaurantID: restaurantID,
		ReservedAt:   at.UTC(),
		PartySize:    2,
		Status:       status,
	}
	db.Create(&b)
	return b
}

func seedArticle(db *gorm.DB, title string, published bool) models.Article {
	a := models.Article{
		ID:          uuid.New(),
		Title:       title,
		Slug:        utils.Slugify(title),
		Summary:     "About " + title,
		Body:        "Long form text about " + title,
		IsPublished: published,
	}
	if published {
		at := testNow.Add(-24 * time.Hour)
		a.PublishedAt = &at
	}
	db.Create(&a)
	return a
}

// ==================== Router Setup Helpers ====================

func setupAuthRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	authHandler := &AuthHandler{DB: db}

	api := r.Group("/api")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.RefreshToken)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	protected.GET("/auth/profile", authHandler.GetProfile)
	protected.PUT("/auth/profile", authHandler.UpdateProfile)
	protected.PUT("/auth/password", authHandler.ChangePassword)
	protected.POST("/auth/logout", authHandler.Logout)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	admin.GET("/users", authHandler.ListUsers)
	admin.PUT("/users/:id", authHandler.UpdateUser)

	return r
}

func setupCategoryRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	categoryHandler := &CategoryHandler{DB: db}

	api := r.Group("/api")
	api.GET("/categories", categoryHandler.GetCategories)
	api.GET("/categories/:id", categoryHandler.GetCategory)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	admin.POST("/categories", categoryHandler.CreateCategory)
	admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
	admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

	return r
}

func setupRestaurantRouter(db *gorm.DB, storage *mockStorage) *gin.Engine {
	r := gin.New()
	h := &RestaurantHandler{
		DB:        db,
		Storage:   storage,
		Validator: reservation.NewValidator(reservation.DefaultPolicy()),
		Clock:     testClock(),
	}

	api := r.Group("/api")
	api.GET("/restaurants", h.GetRestaurants)
	api.GET("/restaurants/:id", h.GetRestaurant)
	api.GET("/restaurants/:id/open-status", h.GetOpenStatus)
	api.POST("/restaurants/:id/availability", h.CheckAvailability)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	admin.GET("/restaurants", h.GetAllRestaurants)
	admin.POST("/restaurants", h.CreateRestaurant)
	admin.PUT("/restaurants/:id", h.UpdateRestaurant)
	admin.DELETE("/restaurants/:id", h.DeleteRestaurant)
	admin.POST("/restaurants/:id/image", h.UploadImage)
	admin.POST("/restaurants/:id/image-import", h.ImportImage)

	return r
}

func setupArticleRouter(db *gorm.DB, storage *mockStorage) *gin.Engine {
	r := gin.New()
	h := &ArticleHandler{DB: db, Storage: storage, Clock: testClock()}

	api := r.Group("/api")
	api.GET("/articles", h.GetArticles)
	api.GET("/articles/:slug", h.GetArticle)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	admin.GET("/articles", h.GetAllArticles)
	admin.POST("/articles", h.CreateArticle)
	admin.PUT("/articles/:id", h.UpdateArticle)
	admin.DELETE("/articles/:id", h.DeleteArticle)
	admin.POST("/articles/:id/cover", h.UploadCover)

	return r
}

func setupBookingRouter(db *gorm.DB, recorder *events.Recorder) *gin.Engine {
	r := gin.New()
	h := &BookingHandler{
		DB:        db,
		Validator: reservation.NewValidator(reservation.DefaultPolicy()),
		Clock:     testClock(),
		Events:    recorder,
	}

	api := r.Group("/api")
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	protected.POST("/bookings", h.CreateBooking)
	protected.GET("/bookings", h.GetMyBookings)
	protected.GET("/bookings/:id", h.GetBooking)
	protected.POST("/bookings/:id/cancel", h.CancelBooking)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	admin.GET("/bookings", h.GetAllBookings)
	admin.PUT("/bookings/:id/status", h.UpdateBookingStatus)

	return r
}

// ==================== Request Helpers ====================

func jsonRequest(method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func authRequest(method, url string, body interface{}, token string) *http.Request {
	req := jsonRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// multipartRequest builds a form upload. files maps field names to filenames;
// each file part carries contentType and dummy bytes.
func multipartRequest(method, url string, files map[string]string, contentType, token string) *http.Request {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for fieldName, filename := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, filename))
		h.Set("Content-Type", contentType)

		part, err := writer.CreatePart(h)
		if err != nil {
			panic("failed to create multipart file part: " + err.Error())
		}
		part.Write([]byte("fake image data"))
	}

	writer.Close()

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// ==================== Response Helpers ====================

func parseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

func parseResponseArray(w *httptest.ResponseRecorder) []interface{} {
	var result []interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}
