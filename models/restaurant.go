package models

import (
	"time"
	_ "time/tzdata"

	"tablebook-backend/reservation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Restaurant struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name        string         `gorm:"not null;index" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Description string         `json:"description"`
	Address     string         `json:"address"`
	City        string         `gorm:"index" json:"city"`
	Phone       string         `json:"phone"`
	CategoryID  *uuid.UUID     `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category    *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	ImageURL    string         `json:"image_url"`
	OpenTime    string         `gorm:"not null;default:'09:00'" json:"open_time"`  // HH:MM, 24h
	CloseTime   string         `gorm:"not null;default:'22:00'" json:"close_time"` // earlier than open_time means past midnight
	Timezone    string         `gorm:"not null;default:'UTC'" json:"timezone"`
	PriceRange  string         `json:"price_range"` // e.g. "$$"
	Rating      float64        `gorm:"default:0" json:"rating"`
	IsFeatured  bool           `gorm:"default:false;index" json:"is_featured"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Restaurant) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Restaurant) Hours() reservation.Hours {
	return reservation.Hours{OpenTime: r.OpenTime, CloseTime: r.CloseTime}
}

// Location returns the restaurant's time zone, falling back to UTC when unset or unknown.
func (r *Restaurant) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
