package handlers

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"tablebook-backend/clock"
	"tablebook-backend/firebase"
	"tablebook-backend/models"
	"tablebook-backend/reservation"
	"tablebook-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RestaurantHandler struct {
	DB        *gorm.DB
	Storage   firebase.StorageClient
	Validator *reservation.Validator
	Clock     clock.Clock
}

type createRestaurantRequest struct {
	Name        string     `json:"name" binding:"required,max=150"`
	Slug        string     `json:"slug" binding:"omitempty,max=150"`
	Description string     `json:"description" binding:"max=2000"`
	Address     string     `json:"address" binding:"max=255"`
	City        string     `json:"city" binding:"max=100"`
	Phone       string     `json:"phone" binding:"max=30"`
	CategoryID  *uuid.UUID `json:"category_id"`
	ImageURL    string     `json:"image_url" binding:"omitempty,url"`
	OpenTime    string     `json:"open_time" binding:"required,hhmm"`
	CloseTime   string     `json:"close_time" binding:"required,hhmm"`
	Timezone    string     `json:"timezone" binding:"omitempty,timezone"`
	PriceRange  string     `json:"price_range" binding:"omitempty,oneof=$ $$ $$$ $$$$"`
	Rating      float64    `json:"rating" binding:"gte=0,lte=5"`
	IsFeatured  bool       `json:"is_featured"`
	IsActive    *bool      `json:"is_active"`
}

type updateRestaurantRequest struct {
	Name        *string    `json:"name" binding:"omitempty,max=150"`
	Slug        *string    `json:"slug" binding:"omitempty,max=150"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Address     *string    `json:"address" binding:"omitempty,max=255"`
	City        *string    `json:"city" binding:"omitempty,max=100"`
	Phone       *string    `json:"phone" binding:"omitempty,max=30"`
	CategoryID  *uuid.UUID `json:"category_id"`
	OpenTime    *string    `json:"open_time" binding:"omitempty,hhmm"`
	CloseTime   *string    `json:"close_time" binding:"omitempty,hhmm"`
	Timezone    *string    `json:"timezone" binding:"omitempty,timezone"`
	PriceRange  *string    `json:"price_range" binding:"omitempty,oneof=$ $$ $$$ $$$$"`
	Rating      *float64   `json:"rating" binding:"omitempty,gte=0,lte=5"`
	IsFeatured  *bool      `json:"is_featured"`
	IsActive    *bool      `json:"is_active"`
}

// findRestaurant resolves :id as a UUID or, failing that, as a slug.
func (h *RestaurantHandler) findRestaurant(c *gin.Context, activeOnly bool) (*models.Restaurant, bool) {
	ref := c.Param("id")
	query := h.DB.Preload("Category")
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", ref)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var restaurant models.Restaurant
	if err := query.First(&restaurant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch restaurant"})
		}
		return nil, false
	}
	return &restaurant, true
}

func (h *RestaurantHandler) listRestaurants(c *gin.Context, includeInactive bool) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Restaurant{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		if _, err := uuid.Parse(categoryID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}
		query = query.Where("category_id = ?", categoryID)
	}
	if city := c.Query("city"); city != "" {
		query = query.Where("LOWER(city) = LOWER(?)", city)
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(name) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)", like, like)
	}
	if c.Query("featured") == "true" {
		query = query.Where("is_featured = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch restaurants"})
		return
	}

	var restaurants []models.Restaurant
	err := query.Preload("Category").
		Order("is_featured DESC, rating DESC, name ASC").
		Offset(offset).Limit(limit).
		Find(&restaurants).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch restaurants"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"restaurants": restaurants,
		"total":       total,
		"page":        page,
		"limit":       limit,
		"pages":       int(math.Ceil(float64(total) / float64(limit))),
	})
}

func (h *RestaurantHandler) GetRestaurants(c *gin.Context) {
	h.listRestaurants(c, false)
}

func (h *RestaurantHandler) GetAllRestaurants(c *gin.Context) {
	h.listRestaurants(c, true)
}

func (h *RestaurantHandler) GetRestaurant(c *gin.Context) {
	restaurant, ok := h.findRestaurant(c, true)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

// GetOpenStatus reports whether the restaurant is serving right now, in its
// own time zone.
func (h *RestaurantHandler) GetOpenStatus(c *gin.Context) {
	restaurant, ok := h.findRestaurant(c, true)
	if !ok {
		return
	}

	local := h.Clock.Now().In(restaurant.Location())
	hours := restaurant.Hours()
	open, err := hours.IsOpenAt(local)
	if err != nil {
		log.Printf("Restaurant %s has unreadable hours %q-%q: %v", restaurant.ID, hours.OpenTime, hours.CloseTime, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Restaurant hours are misconfigured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"restaurant_id": restaurant.ID,
		"is_open":       open,
		"open_time":     hours.OpenTime,
		"close_time":    hours.CloseTime,
		"overnight":     hours.Overnight(),
		"timezone":      restaurant.Location().String(),
		"local_time":    local.Format("15:04"),
	})
}

// CheckAvailability runs the booking time rules without creating a booking.
func (h *RestaurantHandler) CheckAvailability(c *gin.Context) {
	restaurant, ok := h.findRestaurant(c, true)
	if !ok {
		return
	}

	var req struct {
		ReservedAt time.Time `json:"reserved_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	local, outcome := checkSlot(h.Validator, h.Clock, restaurant, req.ReservedAt)
	c.JSON(http.StatusOK, gin.H{
		"restaurant_id": restaurant.ID,
		"reserved_at":   local,
		"available":     outcome.Valid(),
		"reason":        outcome.Reason,
		"message":       outcome.Message,
	})
}

// uniqueSlug returns base, or base with a short suffix when it is taken.
func uniqueSlug(db *gorm.DB, base string, exclude uuid.UUID) string {
	if base == "" {
		base = "restaurant"
	}
	slug := base
	for i := 0; i < 5; i++ {
		var count int64
		db.Unscoped().Model(&models.Restaurant{}).Where("slug = ? AND id <> ?", slug, exclude).Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%s", base, uuid.NewString()[:6])
	}
	return slug
}

func checkHoursDiffer(openTime, closeTime string) error {
	if openTime == closeTime {
		return errors.New("open_time and close_time must differ")
	}
	return nil
}

func (h *RestaurantHandler) categoryExists(id *uuid.UUID) bool {
	if id == nil {
		return true
	}
	var count int64
	h.DB.Model(&models.Category{}).Where("id = ?", *id).Count(&count)
	return count > 0
}

func (h *RestaurantHandler) CreateRestaurant(c *gin.Context) {
	var req createRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	if err := checkHoursDiffer(req.OpenTime, req.CloseTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.categoryExists(req.CategoryID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category not found"})
		return
	}

	slug := utils.Slugify(req.Slug)
	if slug == "" {
		slug = utils.Slugify(req.Name)
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	restaurant := models.Restaurant{
		ID:          uuid.New(),
		Name:        req.Name,
		Slug:        uniqueSlug(h.DB, slug, uuid.Nil),
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Phone:       req.Phone,
		CategoryID:  req.CategoryID,
		ImageURL:    req.ImageURL,
		OpenTime:    req.OpenTime,
		CloseTime:   req.CloseTime,
		Timezone:    req.Timezone,
		PriceRange:  req.PriceRange,
		Rating:      req.Rating,
		IsFeatured:  req.IsFeatured,
		IsActive:    true,
	}

	if err := h.DB.Create(&restaurant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create restaurant"})
		return
	}
	// gorm skips zero-value bools on insert, so the column default would win.
	if req.IsActive != nil && !*req.IsActive {
		h.DB.Model(&restaurant).Update("is_active", false)
		restaurant.IsActive = false
	}

	c.JSON(http.StatusCreated, restaurant)
}

func (h *RestaurantHandler) UpdateRestaurant(c *gin.Context) {
	restaurant, ok := h.findRestaurant(c, false)
	if !ok {
		return
	}

	var req updateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	if !h.categoryExists(req.CategoryID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category not found"})
		return
	}

	updates := map[string]interface{}{}
	set := func(column string, value interface{}) { updates[column] = value }

	if req.Name != nil {
		set("name", *req.Name)
	}
	if req.Slug != nil {
		set("slug", uniqueSlug(h.DB, utils.Slugify(*req.Slug), restaurant.ID))
	}
	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.Address != nil {
		set("address", *req.Address)
	}
	if req.City != nil {
		set("city", *req.City)
	}
	if req.Phone != nil {
		set("phone", *req.Phone)
	}
	if req.CategoryID != nil {
		set("category_id", *req.CategoryID)
	}
	if req.Timezone != nil {
		set("timezone", *req.Timezone)
	}
	if req.PriceRange != nil {
		set("price_range", *req.PriceRange)
	}
	if req.Rating != nil {
		set("rating", *req.Rating)
	}
	if req.IsFeatured != nil {
		set("is_featured", *req.IsFeatured)
	}
	if req.IsActive != nil {
		set("is_active", *req.IsActive)
	}

	openAt, closeAt := restaurant.OpenTime, restaurant.CloseTime
	if req.OpenTime != nil {
		openAt = *req.OpenTime
		set("open_time", openAt)
	}
	if req.CloseTime != nil {
		closeAt = *req.CloseTime
		set("close_time", closeAt)
	}
	if err := checkHoursDiffer(openAt, closeAt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(updates) > 0 {
		if err := h.DB.Model(restaurant).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update restaurant"})
			return
		}
	}

	var updated models.Restaurant
	h.DB.Preload("Category").Where("id = ?", restaurant.ID).First(&updated)
	c.JSON(http.StatusOK, updated)
}

// DeleteRestaurant soft-deletes a restaurant. Restaurants with upcoming
// pending or accepted bookings are kept.
func (h *RestaurantHandler) DeleteRestaurant(c *gin.Context) {
	restaurant, ok := h.findRestaurant(c, false)
	if !ok {
		return
	}

	var upcoming int64
	err := h.DB.Model(&models.Booking{}).
		Where("restaurant_id = ? AND status IN ? AND reserved_at >= ?",
			restaurant.ID,
			[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusAccepted},
			h.Clock.Now()).
		Count(&upcoming).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check restaurant bookings"})
		return
	}
	if upcoming > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":          "Cannot delete restaurant with upcoming bookings",
			"message":        "Reject or cancel the upcoming bookings first, or deactivate the restaurant",
			"upcoming_count": upcoming,
		})
		return
	}

	if err := h.DB.Delete(restaurant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete restaurant"})
		return
	}

	h.deleteStoredImage(restaurant.ImageURL)
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant deleted successfully"})
}

func (h *RestaurantHandler) deleteStoredImage(url string) {
	if h.Storage == nil || url == "" {
		return
	}
	path := firebase.ObjectPathFromURL(h.Storage.BucketName(), url)
	if path == "" {
		return
	}
	if err := h.Storage.DeleteFile(path); err != nil {
		log.Printf("Warning: failed to delete image %s: %v", path, err)
	}
}

func (h *RestaurantHandler) setImage(c *gin.Context, restaurant *models.Restaurant, url string) {
	previous := restaurant.ImageURL
	if err := h.DB.Model(restaurant).Update("image_url", url).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save image URL"})
		return
	}
	if previous != url {
		h.deleteStoredImage(previous)
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

func (h *RestaurantHandler) UploadImage(c *gin.Context) {
	restaurant, ok := h.findRestaurant(c, false)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	if err := utils.ValidateFileUpload(fileHeader); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	url, err := h.Storage.UploadImage(file, "restaurants", restaurant.Slug+"_"+fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("Image upload for restaurant %s failed: %v", restaurant.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image"})
		return
	}

	h.setImage(c, restaurant, url)
}

// ImportImage copies a remote image into storage and points the restaurant at it.
func (h *RestaurantHandler) ImportImage(c *gin.Context) {
	restaurant, ok := h.findRestaurant(c, false)
	if !ok {
		return
	}

	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	url, err := h.Storage.ImportImage(req.URL, "restaurants", restaurant.Slug)
	if err != nil {
		log.Printf("Image import for restaurant %s failed: %v", restaurant.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to import image"})
		return
	}

	h.setImage(c, restaurant, url)
}
