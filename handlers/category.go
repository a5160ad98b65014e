package handlers

import (
	"errors"
	"net/http"

	"tablebook-backend/models"
	"tablebook-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryHandler struct {
	DB *gorm.DB
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Icon        string `json:"icon" binding:"max=50"`
	Description string `json:"description" binding:"max=500"`
}

// GetCategories lists categories with the number of active restaurants in each.
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	var categories []models.Category
	if err := h.DB.Order("name ASC").Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}

	type countRow struct {
		CategoryID uuid.UUID
		Total      int64
	}
	var counts []countRow
	h.DB.Model(&models.Restaurant{}).
		Select("category_id, COUNT(*) AS total").
		Where("category_id IS NOT NULL AND is_active = ?", true).
		Group("category_id").
		Scan(&counts)

	byCategory := make(map[uuid.UUID]int64, len(counts))
	for _, row := range counts {
		byCategory[row.CategoryID] = row.Total
	}

	result := make([]gin.H, 0, len(categories))
	for _, cat := range categories {
		result = append(result, gin.H{
			"id":               cat.ID,
			"name":             cat.Name,
			"icon":             cat.Icon,
			"description":      cat.Description,
			"restaurant_count": byCategory[cat.ID],
		})
	}

	c.JSON(http.StatusOK, result)
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id := c.Param("id")
	var category models.Category

	err := h.DB.
		Preload("Restaurants", "is_active = ?", true).
		Where("id = ?", id).
		First(&category).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var existing int64
	h.DB.Model(&models.Category{}).Where("LOWER(name) = LOWER(?)", req.Name).Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A category with this name already exists"})
		return
	}

	category := models.Category{
		ID:          uuid.New(),
		Name:        req.Name,
		Icon:        req.Icon,
		Description: req.Description,
	}
	if err := h.DB.Create(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id := c.Param("id")
	var category models.Category

	if err := h.DB.Where("id = ?", id).First(&category).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var clash int64
	h.DB.Model(&models.Category{}).Where("LOWER(name) = LOWER(?) AND id <> ?", req.Name, category.ID).Count(&clash)
	if clash > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A category with this name already exists"})
		return
	}

	category.Name = req.Name
	category.Icon = req.Icon
	category.Description = req.Description

	if err := h.DB.Save(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category"})
		return
	}

	c.JSON(http.StatusOK, category)
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id := c.Param("id")

	var category models.Category
	if err := h.DB.Where("id = ?", id).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch category"})
		return
	}

	var restaurantCount int64
	if err := h.DB.Model(&models.Restaurant{}).Where("category_id = ?", id).Count(&restaurantCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check category dependencies"})
		return
	}

	if restaurantCount > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "Cannot delete category with associated restaurants",
			"message":          "Please reassign or delete the associated restaurants first",
			"restaurant_count": restaurantCount,
		})
		return
	}

	if err := h.DB.Delete(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
