package handlers

import (
	"log"
	"math"
	"net/http"

	"tablebook-backend/clock"
	"tablebook-backend/firebase"
	"tablebook-backend/middleware"
	"tablebook-backend/models"
	"tablebook-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArticleHandler struct {
	DB      *gorm.DB
	Storage firebase.StorageClient
	Clock   clock.Clock
}

func (h *ArticleHandler) listArticles(c *gin.Context, publishedOnly bool) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.Article{})
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("LOWER(title) LIKE LOWER(?) OR LOWER(summary) LIKE LOWER(?)", like, like)
	}

	var total int64
	query.Count(&total)

	var articles []models.Article
	// Body is left out of listings.
	err := query.Omit("body").
		Order("published_at DESC, created_at DESC").
		Offset(offset).Limit(limit).
		Find(&articles).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch articles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"total":    total,
		"page":     page,
		"limit":    limit,
		"pages":    int(math.Ceil(float64(total) / float64(limit))),
	})
}

func (h *ArticleHandler) GetArticles(c *gin.Context) {
	h.listArticles(c, true)
}

func (h *ArticleHandler) GetAllArticles(c *gin.Context) {
	h.listArticles(c, false)
}

func (h *ArticleHandler) GetArticle(c *gin.Context) {
	var article models.Article
	if err := h.DB.Where("slug = ? AND is_published = ?", c.Param("slug"), true).First(&article).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

func uniqueArticleSlug(db *gorm.DB, base string, exclude uuid.UUID) string {
	if base == "" {
		base = "article"
	}
	slug := base
	for i := 0; i < 5; i++ {
		var count int64
		db.Unscoped().Model(&models.Article{}).Where("slug = ? AND id <> ?", slug, exclude).Count(&count)
		if count == 0 {
			break
		}
		slug = base + "-" + uuid.NewString()[:6]
	}
	return slug
}

func (h *ArticleHandler) CreateArticle(c *gin.Context) {
	var req struct {
		Title       string `json:"title" binding:"required,max=200"`
		Slug        string `json:"slug" binding:"omitempty,max=200"`
		Summary     string `json:"summary" binding:"max=500"`
		Body        string `json:"body"`
		IsPublished bool   `json:"is_published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	slug := utils.Slugify(req.Slug)
	if slug == "" {
		slug = utils.Slugify(req.Title)
	}

	authorID, _ := middleware.CurrentUserID(c)
	article := models.Article{
		ID:          uuid.New(),
		Title:       req.Title,
		Slug:        uniqueArticleSlug(h.DB, slug, uuid.Nil),
		Summary:     req.Summary,
		Body:        req.Body,
		AuthorID:    &authorID,
		IsPublished: req.IsPublished,
	}
	if req.IsPublished {
		now := h.Clock.Now()
		article.PublishedAt = &now
	}

	if err := h.DB.Create(&article).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create article"})
		return
	}

	c.JSON(http.StatusCreated, article)
}

func (h *ArticleHandler) UpdateArticle(c *gin.Context) {
	var article models.Article
	if err := h.DB.Where("id = ?", c.Param("id")).First(&article).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	var req struct {
		Title       *string `json:"title" binding:"omitempty,max=200"`
		Slug        *string `json:"slug" binding:"omitempty,max=200"`
		Summary     *string `json:"summary" binding:"omitempty,max=500"`
		Body        *string `json:"body"`
		IsPublished *bool   `json:"is_published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	if req.Title != nil {
		article.Title = *req.Title
	}
	if req.Slug != nil {
		article.Slug = uniqueArticleSlug(h.DB, utils.Slugify(*req.Slug), article.ID)
	}
	if req.Summary != nil {
		article.Summary = *req.Summary
	}
	if req.Body != nil {
		article.Body = *req.Body
	}
	if req.IsPublished != nil {
		// The first publish date is kept across unpublish/republish.
		if *req.IsPublished && article.PublishedAt == nil {
			now := h.Clock.Now()
			article.PublishedAt = &now
		}
		article.IsPublished = *req.IsPublished
	}

	if err := h.DB.Save(&article).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update article"})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (h *ArticleHandler) DeleteArticle(c *gin.Context) {
	var article models.Article
	if err := h.DB.Where("id = ?", c.Param("id")).First(&article).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	if err := h.DB.Delete(&article).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete article"})
		return
	}

	h.removeCover(article.CoverURL)
	c.JSON(http.StatusOK, gin.H{"message": "Article deleted successfully"})
}

func (h *ArticleHandler) removeCover(url string) {
	if h.Storage == nil || url == "" {
		return
	}
	if path := firebase.ObjectPathFromURL(h.Storage.BucketName(), url); path != "" {
		if err := h.Storage.DeleteFile(path); err != nil {
			log.Printf("Warning: failed to delete cover %s: %v", path, err)
		}
	}
}

func (h *ArticleHandler) UploadCover(c *gin.Context) {
	var article models.Article
	if err := h.DB.Where("id = ?", c.Param("id")).First(&article).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	fileHeader, err := c.FormFile("cover")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cover image is required"})
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

	url, err := h.Storage.UploadImage(file, "articles", article.Slug+"_"+fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("Cover upload for article %s failed: %v", article.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload cover"})
		return
	}

	previous := article.CoverURL
	if err := h.DB.Model(&article).Update("cover_url", url).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save cover URL"})
		return
	}
	if previous != url {
		h.removeCover(previous)
	}

	c.JSON(http.StatusOK, gin.H{"cover_url": url})
}
