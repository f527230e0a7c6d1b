// Package handler exposes the activity use case over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/sirupsen/logrus"
)

const healthMessage = "GitHub Activity Connector is running"

// ActivityService is the use case behind the activity endpoint.
type ActivityService interface {
	FetchUserActivity(ctx context.Context, username string) (*domain.ActivityReport, error)
}

// ActivityHandler serves the GitHub activity endpoints.
type ActivityHandler struct {
	service ActivityService
	logger  logrus.FieldLogger
}

// NewActivityHandler creates a new ActivityHandler instance.
func NewActivityHandler(service ActivityService, logger logrus.FieldLogger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts the GitHub endpoints under /api/v1/github.
func (h *ActivityHandler) RegisterRoutes(router gin.IRouter) {
	github := router.Group("/api/v1/github")
	{
		github.GET("/activity/:username", h.FetchUserActivity)
		github.GET("/health", h.Health)
	}
}

// FetchUserActivity handles GET /api/v1/github/activity/:username
func (h *ActivityHandler) FetchUserActivity(c *gin.Context) {
	username := c.Param("username")
	if violation := validateUsername(username); violation != "" {
		h.logger.WithField("username", username).Warn("Rejected invalid username")
		writeValidationError(c, map[string]string{"username": violation})
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"username":   username,
		"request_id": RequestID(c),
	})
	log.Info("REST API: Fetching activity")

	report, err := h.service.FetchUserActivity(c.Request.Context(), username)
	if err != nil {
		log.WithError(err).Error("Failed to fetch activity")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Health handles GET /api/v1/github/health
func (h *ActivityHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, healthMessage)
}
