package handlers

import (
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"tablebook-backend/clock"
	"tablebook-backend/events"
	"tablebook-backend/middleware"
	"tablebook-backend/models"
	"tablebook-backend/reservation"
	"tablebook-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingHandler struct {
	DB        *gorm.DB
	Validator *reservation.Validator
	Clock     clock.Clock
	Events    events.Publisher
}

// checkSlot converts at into the restaurant's zone and validates it against
// the restaurant's hours.
func checkSlot(v *reservation.Validator, clk clock.Clock, r *models.Restaurant, at time.Time) (time.Time, reservation.Outcome) {
	local := at.In(r.Location())
	outcome := v.Validate(reservation.Request{
		Requested: local,
		Now:       clk.Now(),
		Hours:     r.Hours(),
	})
	if outcome.Reason == reservation.ReasonMalformedHours {
		log.Printf("Restaurant %s has unreadable hours %q-%q; bookings are blocked", r.ID, r.OpenTime, r.CloseTime)
	}
	return local, outcome
}

func (h *BookingHandler) summary(b *models.Booking, r *models.Restaurant) utils.BookingSummary {
	return utils.BookingSummary{
		RestaurantName: r.Name,
		ReservedAt:     b.ReservedAt.In(r.Location()),
		PartySize:      b.PartySize,
		Status:         string(b.Status),
		Note:           b.DecisionNote,
	}
}

func (h *BookingHandler) emit(eventType string, b *models.Booking) {
	events.Emit(h.Events, events.Event{
		Type:         eventType,
		BookingID:    b.ID,
		RestaurantID: b.RestaurantID,
		UserID:       b.UserID,
		Status:       string(b.Status),
		ReservedAt:   b.ReservedAt,
		OccurredAt:   h.Clock.Now(),
	})
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		RestaurantID uuid.UUID `json:"restaurant_id" binding:"required"`
		ReservedAt   time.Time `json:"reserved_at" binding:"required"`
		PartySize    int       `json:"party_size" binding:"required,gte=1,lte=20"`
		ContactName  string    `json:"contact_name" binding:"max=100"`
		ContactPhone string    `json:"contact_phone" binding:"max=30"`
		Notes        string    `json:"notes" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var restaurant models.Restaurant
	if err := h.DB.Where("id = ? AND is_active = ?", req.RestaurantID, true).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}

	_, outcome := checkSlot(h.Validator, h.Clock, &restaurant, req.ReservedAt)
	if !outcome.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": outcome.Message, "code": outcome.Reason})
		return
	}

	var user models.User
	if err := h.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	reservedAt := req.ReservedAt.UTC()

	var duplicates int64
	h.DB.Model(&models.Booking{}).
		Where("user_id = ? AND restaurant_id = ? AND reserved_at = ? AND status IN ?",
			userID, restaurant.ID, reservedAt,
			[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusAccepted}).
		Count(&duplicates)
	if duplicates > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "You already have a booking at this restaurant for that time"})
		return
	}

	contactName := req.ContactName
	if contactName == "" {
		contactName = user.Name
	}
	contactPhone := req.ContactPhone
	if contactPhone == "" {
		contactPhone = user.Phone
	}

	booking := models.Booking{
		ID:           uuid.New(),
		UserID:       userID,
		RestaurantID: restaurant.ID,
		ReservedAt:   reservedAt,
		PartySize:    req.PartySize,
		ContactName:  contactName,
		ContactPhone: contactPhone,
		Notes:        req.Notes,
		Status:       models.BookingStatusPending,
	}
	if err := h.DB.Create(&booking).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}
	booking.Restaurant = &restaurant

	utils.SendBookingReceived(user.Email, user.Name, h.summary(&booking, &restaurant))
	h.emit(events.BookingCreated, &booking)

	c.JSON(http.StatusCreated, booking)
}

// GetMyBookings lists the caller's bookings, newest first. upcoming=true
// limits the list to bookings that have not started yet.
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	query := h.DB.Preload("Restaurant").Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if c.Query("upcoming") == "true" {
		query = query.Where("reserved_at >= ?", h.Clock.Now())
	}

	var bookings []models.Booking
	if err := query.Order("created_at DESC").Find(&bookings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// loadBooking fetches :id for the caller. Other users' bookings look missing
// unless the caller is an admin.
func (h *BookingHandler) loadBooking(c *gin.Context) (*models.Booking, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return nil, false
	}

	var booking models.Booking
	if err := h.DB.Preload("Restaurant").Preload("User").Where("id = ?", id).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch booking"})
		}
		return nil, false
	}

	userID, _ := middleware.CurrentUserID(c)
	if booking.UserID != userID && !middleware.IsAdmin(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
		return nil, false
	}
	return &booking, true
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, booking)
}

// transition moves booking to status, records the decision, then notifies the
// diner and publishes an event.
func (h *BookingHandler) transition(c *gin.Context, booking *models.Booking, to models.BookingStatus, note, eventType string) {
	if !models.IsValidBookingTransition(booking.Status, to) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Cannot change booking from " + string(booking.Status) + " to " + string(to),
		})
		return
	}

	now := h.Clock.Now()
	updates := map[string]interface{}{
		"status":     to,
		"decided_at": now,
	}
	if note != "" {
		updates["decision_note"] = note
	}

	// Guard on the current status so concurrent decisions cannot both win.
	result := h.DB.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, booking.Status).
		Updates(updates)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update booking"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Booking was changed by someone else; reload and try again"})
		return
	}

	booking.Status = to
	booking.DecidedAt = &now
	if note != "" {
		booking.DecisionNote = note
	}

	if booking.User != nil && booking.Restaurant != nil {
		utils.SendBookingStatusUpdate(booking.User.Email, booking.User.Name, h.summary(booking, booking.Restaurant))
	}
	h.emit(eventType, booking)

	c.JSON(http.StatusOK, booking)
}

// CancelBooking lets the diner withdraw a booking that has not started yet.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	if booking.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the diner who made a booking can cancel it"})
		return
	}
	if !booking.ReservedAt.After(h.Clock.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Past bookings cannot be cancelled"})
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"max=500"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
			return
		}
	}

	h.transition(c, booking, models.BookingStatusCancelled, req.Reason, events.BookingCancelled)
}

func (h *BookingHandler) GetAllBookings(c *gin.Context) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Booking{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if restaurantID := c.Query("restaurant_id"); restaurantID != "" {
		if _, err := uuid.Parse(restaurantID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restaurant ID"})
			return
		}
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 date-time"})
			return
		}
		query = query.Where("reserved_at >= ?", t.UTC())
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 date-time"})
			return
		}
		query = query.Where("reserved_at < ?", t.UTC())
	}

	var total int64
	query.Count(&total)

	var bookings []models.Booking
	err := query.Preload("Restaurant").Preload("User").
		Order("reserved_at ASC").
		Offset(offset).Limit(limit).
		Find(&bookings).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"total":    total,
		"page":     page,
		"limit":    limit,
		"pages":    int(math.Ceil(float64(total) / float64(limit))),
	})
}

// UpdateBookingStatus records an admin's accept or reject decision.
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=accepted rejected"`
		Note   string `json:"note" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	h.transition(c, booking, models.BookingStatus(req.Status), req.Note, events.BookingStatusChanged)
}
