package database

import (
	"os"
	"testing"

	"tablebook-backend/models"
	"tablebook-backend/testutil"

	"golang.org/x/crypto/bcrypt"
)

func TestCreateDefaultAdminNew(t *testing.T) {
	db := testutil.NewDB(t)
	os.Setenv("ADMIN_EMAIL", "admin@test.com")
	os.Setenv("ADMIN_PASSWORD", "password123")
	defer os.Unsetenv("ADMIN_EMAIL")
	defer os.Unsetenv("ADMIN_PASSWORD")

	if err := CreateDefaultAdmin(db); err != nil {
		t.Fatal(err)
	}

	var user models.User
	if err := db.Where("email = ?", "admin@test.com").First(&user).Error; err != nil {
		t.Fatal("admin user not created")
	}
	if user.Role != "admin" {
		t.Errorf("expected role 'admin', got '%s'", user.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")); err != nil {
		t.Error("stored password should be a bcrypt hash of ADMIN_PASSWORD")
	}
}

func TestCreateDefaultAdminAlreadyExists(t *testing.T) {
	db := testutil.NewDB(t)
	os.Setenv("ADMIN_EMAIL", "existing@test.com")
	os.Setenv("ADMIN_PASSWORD", "password123")
	defer os.Unsetenv("ADMIN_EMAIL")
	defer os.Unsetenv("ADMIN_PASSWORD")

	if err := CreateDefaultAdmin(db); err != nil {
		t.Fatal(err)
	}
	// Second call should skip (no error)
	if err := CreateDefaultAdmin(db); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.User{}).Where("email = ?", "existing@test.com").Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 admin, got %d", count)
	}
}

func TestCreateDefaultAdminRandomPassword(t *testing.T) {
	db := testutil.NewDB(t)
	os.Setenv("ADMIN_EMAIL", "random@test.com")
	os.Unsetenv("ADMIN_PASSWORD")
	defer os.Unsetenv("ADMIN_EMAIL")

	if err := CreateDefaultAdmin(db); err != nil {
		t.Fatal(err)
	}

	var user models.User
	if err := db.Where("email = ?", "random@test.com").First(&user).Error; err != nil {
		t.Fatal("admin not created with random password")
	}
	if user.Password == "" {
		t.Error("expected a hashed password")
	}
}

func TestSeedCatalog(t *testing.T) {
	db := testutil.NewDB(t)

	if err := SeedCatalog(db); err != nil {
		t.Fatal(err)
	}

	var restaurants []models.Restaurant
	db.Find(&restaurants)
	if len(restaurants) != len(starterRestaurants) {
		t.Fatalf("expected %d restaurants, got %d", len(starterRestaurants), len(restaurants))
	}
	for _, r := range restaurants {
		if err := r.Hours().Validate(); err != nil {
			t.Errorf("seeded restaurant %s has bad hours: %v", r.Name, err)
		}
		if r.CategoryID == nil {
			t.Errorf("seeded restaurant %s has no category", r.Name)
		}
	}

	var categories int64
	db.Model(&models.Category{}).Count(&categories)
	if categories != int64(len(starterCategories)) {
		t.Errorf("expected %d categories, got %d", len(starterCategories), categories)
	}
}

func TestSeedCatalogSkipsWhenPopulated(t *testing.T) {
	db := testutil.NewDB(t)
	db.Create(&models.Restaurant{Name: "Existing", Slug: "existing", OpenTime: "10:00", CloseTime: "20:00"})

	if err := SeedCatalog(db); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.Restaurant{}).Count(&count)
	if count != 1 {
		t.Errorf("expected seeding to be skipped, got %d restaurants", count)
	}
}
