package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agrosentry/backend/internal/logger"
	"github.com/agrosentry/backend/internal/requestdata"
	"github.com/agrosentry/backend/internal/services"
)

type DetectionHandler struct {
	log              *logger.Logger
	detectionService services.DetectionService
}

func NewDetectionHandler(log *logger.Logger, detectionService services.DetectionService) *DetectionHandler {
	return &DetectionHandler{
		log:              log.With("handler", "DetectionHandler"),
		detectionService: detectionService,
	}
}

func (dh *DetectionHandler) Detect(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		respondError(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, services.ErrNoFile.Error())
		return
	}

	result, err := dh.detectionService.Analyze(c.Request.Context(), rd.UserID, file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoFile),
			errors.Is(err, services.ErrFileTooLarge),
			errors.Is(err, services.ErrUnsupportedType):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			dh.log.Error("Detection failed", "error", err, "user_id", rd.UserID)
			dh.respondInternal(c, "Disease detection failed", err)
		}
		return
	}

	message := "Detection successful"
	if result.Note != "" {
		message = "Detection completed with warnings"
	}
	body := gin.H{"success": true, "message": message, "data": result}
	if result.Note != "" {
		body["note"] = result.Note
	}
	c.JSON(http.StatusOK, body)
}

func (dh *DetectionHandler) History(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		respondError(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := dh.detectionService.History(c.Request.Context(), rd.UserID, page, limit)
	if err != nil {
		dh.log.Error("History retrieval failed", "error", err, "user_id", rd.UserID)
		dh.respondInternal(c, "Failed to retrieve detection history", err)
		return
	}
	respondOK(c, http.StatusOK, "Detection history retrieved successfully", result)
}

func (dh *DetectionHandler) GetByID(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		respondError(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	detectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid detection id")
		return
	}

	detection, err := dh.detectionService.GetByID(c.Request.Context(), rd.UserID, detectionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDetectionNotFound):
			respondError(c, http.StatusNotFound, "Detection not found")
		case errors.Is(err, services.ErrDetectionForbidden):
			respondError(c, http.StatusForbidden, "Access denied")
		default:
			dh.log.Error("Detection retrieval failed", "error", err, "detection_id", detectionID)
			dh.respondInternal(c, "Failed to retrieve detection details", err)
		}
		return
	}
	respondOK(c, http.StatusOK, "Detection details retrieved successfully", detection)
}

func (dh *DetectionHandler) Stats(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		respondError(c, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	stats, err := dh.detectionService.Stats(c.Request.Context(), rd.UserID)
	if err != nil {
		dh.log.Error("Stats retrieval failed", "error", err, "user_id", rd.UserID)
		dh.respondInternal(c, "Failed to retrieve detection statistics", err)
		return
	}
	respondOK(c, http.StatusOK, "Detection statistics retrieved successfully", stats)
}

func (dh *DetectionHandler) MLHealth(c *gin.Context) {
	status, err := dh.detectionService.MLHealth(c.Request.Context())
	if err != nil {
		dh.respondInternal(c, "ML service health check failed", err)
		return
	}
	respondOK(c, http.StatusOK, "ML service health check completed", status)
}

// respondInternal keeps raw error detail out of production responses;
// clients get the generic message, the log gets the rest.
func (dh *DetectionHandler) respondInternal(c *gin.Context, message string, err error) {
	body := gin.H{"success": false, "message": message}
	if gin.Mode() != gin.ReleaseMode {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}
