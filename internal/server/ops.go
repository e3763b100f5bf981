package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"toolshed/internal/feed"
	"toolshed/internal/reviews"
)

type opsHandler struct {
	db     *sql.DB
	repo   *reviews.Repo
	hub    *feed.Hub
	dbPath string
}

func (h *opsHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": h.dbPath})
}

func (h *opsHandler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "not_ready",
			"db_error":    err.Error(),
			"subscribers": h.hub.Count(),
		})
		return
	}

	count, err := h.repo.Count(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "not_ready",
			"db_error":    err.Error(),
			"subscribers": h.hub.Count(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"db":          "ok",
		"reviews":     count,
		"subscribers": h.hub.Count(),
	})
}
