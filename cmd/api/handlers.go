package main

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/budajoliwia/PetMagic/internal/database"
	"github.com/budajoliwia/PetMagic/internal/metrics"
	"github.com/budajoliwia/PetMagic/internal/middleware"
	"github.com/budajoliwia/PetMagic/internal/storage"
	"github.com/budajoliwia/PetMagic/pkg/models"
)

const (
	maxPhotoSize = 10 << 20 // 10 MB

	jobCacheTTL        = 30 * time.Second
	generationCacheTTL = 5 * time.Minute
	presignedURLExpiry = 1 * time.Hour
)

// Auth

func (api *API) register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &models.User{
		Email:      req.Email,
		DailyLimit: api.defaultDailyLimit,
	}

	if err := api.repo.CreateUser(c.Request.Context(), user, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create account"})
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Email, api.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (api *API) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := api.repo.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Email, api.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// Jobs

// createJob accepts a photo upload plus type and style, stores the input
// and enqueues the job. Quota is checked by the worker, not here: the
// consume must be atomic with processing, and a queued job that loses
// the quota race still gets a proper LIMIT_REACHED record.
func (api *API) createJob(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	jobType := models.JobType(c.PostForm("type"))
	if !jobType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job type"})
		return
	}

	style := c.PostForm("style")
	if !models.ValidStyle(style) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown style"})
		return
	}

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No photo provided"})
		return
	}
	if file.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Photo too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read photo"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read photo"})
		return
	}

	jobID := uuid.New().String()
	inputPath := storage.InputImagePath(userID, jobID)

	if err := api.storage.UploadBytes(c.Request.Context(), inputPath, data, "image/jpeg"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to store photo: %v", err)})
		return
	}

	job := &models.Job{
		ID:        jobID,
		UserID:    userID,
		Type:      jobType,
		InputPath: inputPath,
		Style:     style,
	}

	if err := api.repo.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create job: %v", err)})
		return
	}

	event := &models.JobCreatedEvent{
		JobID:     job.ID,
		UserID:    job.UserID,
		Type:      job.Type,
		InputPath: job.InputPath,
		Style:     job.Style,
	}
	if err := api.queue.PublishJobCreated(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to queue job: %v", err)})
		return
	}

	metrics.JobsSubmittedTotal.WithLabelValues(string(jobType), style).Inc()

	c.JSON(http.StatusCreated, job)
}

func (api *API) getJob(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	jobID := c.Param("id")

	if api.cache != nil {
		if job, err := api.cache.GetJob(c.Request.Context(), jobID); err == nil && job != nil {
			if job.UserID != userID {
				c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
				return
			}
			c.JSON(http.StatusOK, job)
			return
		}
	}

	job, err := api.repo.GetJob(c.Request.Context(), jobID)
	if err != nil || job.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	if api.cache != nil {
		_ = api.cache.SetJob(c.Request.Context(), job, jobCacheTTL)
	}

	c.JSON(http.StatusOK, job)
}

func (api *API) listJobs(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	limit, offset := pagination(c)

	jobs, err := api.repo.ListJobsByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// Generations

func (api *API) listGenerations(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	limit, offset := pagination(c)

	// The first page is the hot path (gallery screen); serve it from
	// cache when possible.
	cacheable := api.cache != nil && offset == 0
	if cacheable {
		if gens, err := api.cache.GetGenerations(c.Request.Context(), userID); err == nil && gens != nil {
			c.JSON(http.StatusOK, gin.H{"generations": gens, "limit": limit, "offset": offset})
			return
		}
	}

	gens, err := api.repo.ListGenerationsByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if cacheable {
		_ = api.cache.SetGenerations(c.Request.Context(), userID, gens, generationCacheTTL)
	}

	c.JSON(http.StatusOK, gin.H{
		"generations": gens,
		"limit":       limit,
		"offset":      offset,
	})
}

func (api *API) getGeneration(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	genID := c.Param("id")

	gen, err := api.repo.GetGeneration(c.Request.Context(), genID)
	if err != nil || gen.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
		return
	}

	url, err := api.storage.PresignedURL(c.Request.Context(), gen.OutputPath, presignedURLExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate download URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generation": gen,
		"output_url": url,
	})
}

func (api *API) setFavorite(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	genID := c.Param("id")

	var req struct {
		Favorite *bool `json:"favorite" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "favorite field required"})
		return
	}

	err := api.repo.SetGenerationFavorite(c.Request.Context(), genID, userID, *req.Favorite)
	if err == database.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if api.cache != nil {
		_ = api.cache.InvalidateGenerations(c.Request.Context(), userID)
	}

	c.JSON(http.StatusOK, gin.H{"id": genID, "favorite": *req.Favorite})
}

// Quota

func (api *API) quotaStatus(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	status, err := api.ledger.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read quota"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0

	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}

	return limit, offset
}
