package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
)

type geofenceService interface {
	Status(ctx context.Context, userID string) (*domain.GeofenceStatus, error)
	SaveConfig(ctx context.Context, userID string, cfg *domain.GeofenceConfig) error
}

type positionService interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.UserPosition, error)
}

type alertService interface {
	HandleSOS(ctx context.Context, evt *domain.AlertEvent) error
}

type statusResponse struct {
	Inside             bool    `json:"inside"`
	LastDistanceMeters float64 `json:"last_distance_meters"`
	LastTransitionAt   int64   `json:"last_transition_at"`
	LastNotifiedAt     int64   `json:"last_notified_at"`
}

type configRequest struct {
	CenterLatitude   float64 `json:"center_latitude"`
	CenterLongitude  float64 `json:"center_longitude"`
	RadiusMeters     float64 `json:"radius_meters"`
	HysteresisMeters float64 `json:"hysteresis_meters"`
	CooldownMs       int64   `json:"cooldown_ms"`
}

type positionResponse struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ObservedAt int64   `json:"observed_at"`
}

type sosRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type UserHandler struct {
	geofenceSvc geofenceService
	positionSvc positionService
	alertSvc    alertService
}

func NewUserHandler(geofenceSvc geofenceService, positionSvc positionService, alertSvc alertService) *UserHandler {
	return &UserHandler{
		geofenceSvc: geofenceSvc,
		positionSvc: positionSvc,
		alertSvc:    alertSvc,
	}
}

func (h *UserHandler) Register(r *gin.RouterGroup) {
	r.GET("/users/:user_id/geofence", h.GetGeofenceStatus)
	r.PUT("/users/:user_id/geofence", h.PutGeofenceConfig)
	r.GET("/users/:user_id/positions", h.GetPositions)
	r.POST("/users/:user_id/sos", h.RaiseSOS)
}

func (h *UserHandler) GetGeofenceStatus(c *gin.Context) {
	userID := c.Param("user_id")

	st, err := h.geofenceSvc.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no geofence status for user"})
		return
	}

	c.JSON(http.StatusOK, statusResponse{
		Inside:             st.Inside,
		LastDistanceMeters: st.LastDistanceMeters,
		LastTransitionAt:   unixOrZero(st.LastTransitionAt),
		LastNotifiedAt:     unixOrZero(st.LastNotifiedAt),
	})
}

func (h *UserHandler) PutGeofenceConfig(c *gin.Context) {
	userID := c.Param("user_id")

	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config body"})
		return
	}
	if err := validateConfigRequest(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := &domain.GeofenceConfig{
		CenterLatitude:   req.CenterLatitude,
		CenterLongitude:  req.CenterLongitude,
		RadiusMeters:     req.RadiusMeters,
		HysteresisMeters: req.HysteresisMeters,
		Cooldown:         time.Duration(req.CooldownMs) * time.Millisecond,
	}
	if err := h.geofenceSvc.SaveConfig(c.Request.Context(), userID, cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *UserHandler) GetPositions(c *gin.Context) {
	userID := c.Param("user_id")

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = n
	}

	positions, err := h.positionSvc.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch positions"})
		return
	}

	results := make([]positionResponse, len(positions))
	for i, up := range positions {
		results[i] = positionResponse{
			Latitude:   up.Position.Latitude,
			Longitude:  up.Position.Longitude,
			ObservedAt: up.Position.ObservedAt.Unix(),
		}
	}
	c.JSON(http.StatusOK, results)
}

func (h *UserHandler) RaiseSOS(c *gin.Context) {
	userID := c.Param("user_id")

	var req sosRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sos body"})
			return
		}
	}

	evt := &domain.AlertEvent{
		UserID:    userID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if err := h.alertSvc.HandleSOS(c.Request.Context(), evt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process sos"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"alert_id": evt.ID})
}

func validateConfigRequest(req *configRequest) error {
	switch {
	case req.CenterLatitude < -90 || req.CenterLatitude > 90:
		return errors.New("center_latitude must be between -90 and 90")
	case req.CenterLongitude < -180 || req.CenterLongitude > 180:
		return errors.New("center_longitude must be between -180 and 180")
	case req.RadiusMeters < 0:
		return errors.New("radius_meters must not be negative")
	case req.HysteresisMeters < 0:
		return errors.New("hysteresis_meters must not be negative")
	case req.HysteresisMeters > 0 && req.RadiusMeters > 0 && req.HysteresisMeters >= req.RadiusMeters:
		return errors.New("hysteresis_meters must be smaller than radius_meters")
	case req.CooldownMs < 0:
		return errors.New("cooldown_ms must not be negative")
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
