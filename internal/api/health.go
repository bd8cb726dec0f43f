package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ensemble-chat/backend/pkg/health"
)

type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	if !h.checker.IsSystemHealthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":     statusWord(status),
		"timestamp":  time.Now(),
		"components": h.checker.GetStatus(),
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "unavailable"
}
