package handlers

import (
	"context"
	"net/http"
	"time"

	"clinic-records/models"
	"clinic-records/utils"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	repo  models.Repository
	redis utils.RedisClient
}

// NewHealthHandler reports on the database and, when configured, redis.
func NewHealthHandler(repo models.Repository, redis utils.RedisClient) *HealthHandler {
	return &HealthHandler{repo: repo, redis: redis}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	details := gin.H{"database": "available"}

	if err := h.repo.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		details["database"] = "unavailable"
	}

	if h.redis != nil {
		if err := h.redis.SetToCache(ctx, "healthcheck", "ping", 10*time.Second); err != nil {
			status = http.StatusServiceUnavailable
			details["redis"] = "unavailable"
		} else {
			details["redis"] = "available"
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "details": details})
}
