package database

import (
	"log"

	"tablebook-backend/models"

	"gorm.io/gorm"
)

type seedRestaurant struct {
	name, slug, city, category, open, close, price string
	featured                                       bool
}

var starterCategories = []models.Category{
	{Name: "Italian", Icon: "pizza", Description: "Pasta, pizza and trattorias"},
	{Name: "Japanese", Icon: "sushi", Description: "Sushi, ramen and izakayas"},
	{Name: "Bars & Late Night", Icon: "moon", Description: "Kitchens open past midnight"},
}

var starterRestaurants = []seedRestaurant{
	{"Trattoria Roma", "trattoria-roma", "London", "Italian", "12:00", "23:00", "$$", true},
	{"Sakura Garden", "sakura-garden", "London", "Japanese", "11:30", "22:00", "$$$", false},
	{"Midnight Diner", "midnight-diner", "London", "Bars & Late Night", "18:00", "03:00", "$$", true},
}

// SeedCatalog inserts a starter set of categories and restaurants when the
// restaurants table is empty. It is a no-op otherwise.
func SeedCatalog(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Restaurant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]models.Category)
		for _, c := range starterCategories {
			cat := c
			if err := tx.Where("name = ?", cat.Name).FirstOrCreate(&cat).Error; err != nil {
				return err
			}
			byName[cat.Name] = cat
		}

		for _, s := range starterRestaurants {
			cat := byName[s.category]
			r := models.Restaurant{
				Name:       s.name,
				Slug:       s.slug,
				City:       s.city,
				CategoryID: &cat.ID,
				OpenTime:   s.open,
				CloseTime:  s.close,
				Timezone:   "Europe/London",
				PriceRange: s.price,
				IsFeatured: s.featured,
				IsActive:   true,
			}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
		}

		log.Printf("Seeded %d categories and %d restaurants", len(starterCategories), len(starterRestaurants))
		return nil
	})
}
