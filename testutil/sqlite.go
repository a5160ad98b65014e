// Package testutil provides an in-memory SQLite database shaped like the
// production schema, for handler and repository tests.
package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Schema creates all tables with SQLite-compatible DDL. AutoMigrate is not
// used because the model tags carry PostgreSQL defaults like gen_random_uuid().
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS "users" (
		"id" TEXT PRIMARY KEY,
		"email" TEXT NOT NULL UNIQUE,
		"password" TEXT NOT NULL,
		"name" TEXT,
		"phone" TEXT,
		"role" TEXT DEFAULT 'customer',
		"is_blocked" INTEGER DEFAULT 0,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_deleted_at ON "users"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "refresh_tokens" (
		"id" TEXT PRIMARY KEY,
		"user_id" TEXT NOT NULL,
		"token" TEXT NOT NULL UNIQUE,
		"expires_at" DATETIME NOT NULL,
		"revoked_at" DATETIME,
		"created_at" DATETIME
	)`,

	`CREATE TABLE IF NOT EXISTS "categories" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL UNIQUE,
		"icon" TEXT,
		"description" TEXT,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_deleted_at ON "categories"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "restaurants" (
		"id" TEXT PRIMARY KEY,
		"name" TEXT NOT NULL,
		"slug" TEXT NOT NULL UNIQUE,
		"description" TEXT,
		"address" TEXT,
		"city" TEXT,
		"phone" TEXT,
		"category_id" TEXT,
		"image_url" TEXT,
		"open_time" TEXT NOT NULL DEFAULT '09:00',
		"close_time" TEXT NOT NULL DEFAULT '22:00',
		"timezone" TEXT NOT NULL DEFAULT 'UTC',
		"price_range" TEXT,
		"rating" REAL DEFAULT 0,
		"is_featured" INTEGER DEFAULT 0,
		"is_active" INTEGER DEFAULT 1,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME,
		CONSTRAINT fk_restaurants_category FOREIGN KEY ("category_id") REFERENCES "categories"("id")
	)`,
	`CREATE INDEX IF NOT EXISTS idx_restaurants_deleted_at ON "restaurants"("deleted_at")`,
	`CREATE INDEX IF NOT EXISTS idx_restaurants_category_id ON "restaurants"("category_id")`,

	`CREATE TABLE IF NOT EXISTS "articles" (
		"id" TEXT PRIMARY KEY,
		"title" TEXT NOT NULL,
		"slug" TEXT NOT NULL UNIQUE,
		"summary" TEXT,
		"body" TEXT,
		"cover_url" TEXT,
		"author_id" TEXT,
		"is_published" INTEGER DEFAULT 0,
		"published_at" DATETIME,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_deleted_at ON "articles"("deleted_at")`,

	`CREATE TABLE IF NOT EXISTS "bookings" (
		"id" TEXT PRIMARY KEY,
		"user_id" TEXT NOT NULL,
		"restaurant_id" TEXT NOT NULL,
		"reserved_at" DATETIME NOT NULL,
		"party_size" INTEGER NOT NULL,
		"contact_name" TEXT,
		"contact_phone" TEXT,
		"notes" TEXT,
		"status" TEXT DEFAULT 'pending',
		"decision_note" TEXT,
		"decided_at" DATETIME,
		"created_at" DATETIME,
		"updated_at" DATETIME,
		"deleted_at" DATETIME,
		CONSTRAINT fk_bookings_user FOREIGN KEY ("user_id") REFERENCES "users"("id"),
		CONSTRAINT fk_bookings_restaurant FOREIGN KEY ("restaurant_id") REFERENCES "restaurants"("id")
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_deleted_at ON "bookings"("deleted_at")`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON "bookings"("user_id")`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_restaurant_id ON "bookings"("restaurant_id")`,
}

// Tables lists the tables in an order that is safe to truncate.
var Tables = []string{"bookings", "refresh_tokens", "articles", "restaurants", "categories", "users"}

// OpenSQLite opens dsn and applies Schema. The pool is limited to one
// connection so shared in-memory databases stay consistent across goroutines.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range Schema {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, err
		}
	}
	return db, nil
}

// NewDB returns a private in-memory database for a single test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Truncate deletes every row, children first.
func Truncate(db *gorm.DB) {
	for _, table := range Tables {
		db.Exec(`DELETE FROM "` + table + `"`)
	}
}
