package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/Aashish23092/invoice-annotation/service"
	"github.com/Aashish23092/invoice-annotation/utils"
	"github.com/Aashish23092/invoice-annotation/utils/viewport"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AnnotationHandler struct {
	detectionService *service.DetectionService
	sessions         *service.SessionRegistry
	maxFileSize      int64
}

func NewAnnotationHandler(detectionService *service.DetectionService, sessions *service.SessionRegistry, maxFileSize int64) *AnnotationHandler {
	return &AnnotationHandler{
		detectionService: detectionService,
		sessions:         sessions,
		maxFileSize:      maxFileSize,
	}
}

// RegisterRoutes mounts the document routes on group.
func (h *AnnotationHandler) RegisterRoutes(group *gin.RouterGroup) {
	docs := group.Group("/documents/:documentID")
	{
		docs.POST("/detect", h.Detect)
		docs.POST("/detections", h.DetectRaw)
		docs.GET("/annotations", h.ListAnnotations)
		docs.POST("/annotations", h.PinAnnotation)
		docs.PATCH("/annotations/:annotationID", h.UpdateAnnotation)
		docs.DELETE("/annotations", h.ClearAnnotations)
		docs.PUT("/viewport", h.SetViewport)
		docs.GET("/overlays", h.Overlays)
		docs.GET("/form", h.Form)
		docs.DELETE("", h.Discard)
	}
}

// Detect handles POST /documents/:documentID/detect
func (h *AnnotationHandler) Detect(c *gin.Context) {
	documentID := c.Param("documentID")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "file is required", nil)
		return
	}

	pageNumber, err := strconv.Atoi(c.DefaultPostForm("page", "1"))
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "page must be a number", nil)
		return
	}

	request := &dto.DetectUploadRequest{
		File:       fileHeader,
		PageNumber: pageNumber,
		Detector:   c.PostForm("detector"),
	}
	if err := request.Validate(); err != nil {
		h.sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		h.sendError(c, http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "Failed to open file", err)
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "Failed to read file", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"document": documentID,
		"file":     fileHeader.Filename,
		"page":     pageNumber,
	}).Info("Received detection request")

	response, err := h.detectionService.DetectDocument(c.Request.Context(), documentID, service.DocumentUpload{
		Filename:   fileHeader.Filename,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		Data:       data,
		PageNumber: pageNumber,
		Detector:   request.Detector,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownDetector):
			h.sendError(c, http.StatusBadRequest, err.Error(), err)
		case errors.Is(err, service.ErrDetectionFailed):
			h.sendError(c, http.StatusBadGateway, "Field detection failed", err)
		default:
			h.sendError(c, http.StatusUnprocessableEntity, "Failed to process document", err)
		}
		return
	}

	c.JSON(http.StatusOK, response)
}

// DetectRaw handles POST /documents/:documentID/detections
func (h *AnnotationHandler) DetectRaw(c *gin.Context) {
	var request dto.RawDetectionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := request.Validate(); err != nil {
		h.sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	response, err := h.detectionService.DetectRaw(c.Request.Context(), c.Param("documentID"), request.Raw)
	if err != nil {
		h.sendError(c, http.StatusInternalServerError, "Failed to apply detection", err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// ListAnnotations handles GET /documents/:documentID/annotations
func (h *AnnotationHandler) ListAnnotations(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.AnnotationsResponse{
		DocumentID:  session.ID,
		Annotations: session.Store().Get(),
	})
}

// PinAnnotation handles POST /documents/:documentID/annotations
func (h *AnnotationHandler) PinAnnotation(c *gin.Context) {
	var request dto.PinRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := request.Validate(); err != nil {
		h.sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	session := h.sessions.Open(c.Param("documentID"))
	annotation, err := session.Pin(&request)
	if err != nil {
		if errors.Is(err, service.ErrViewportNotReady) {
			h.sendError(c, http.StatusConflict, err.Error(), err)
			return
		}
		h.sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	c.JSON(http.StatusCreated, annotation)
}

// UpdateAnnotation handles PATCH /documents/:documentID/annotations/:annotationID
func (h *AnnotationHandler) UpdateAnnotation(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var request dto.UpdateValueRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	annotation, err := session.Store().UpdateValue(c.Param("annotationID"), request.Value)
	if err != nil {
		h.sendError(c, http.StatusNotFound, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, annotation)
}

// ClearAnnotations handles DELETE /documents/:documentID/annotations
func (h *AnnotationHandler) ClearAnnotations(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Store().Clear()
	c.Status(http.StatusNoContent)
}

// SetViewport handles PUT /documents/:documentID/viewport
func (h *AnnotationHandler) SetViewport(c *gin.Context) {
	var request dto.ViewportRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := request.Validate(); err != nil {
		h.sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	session := h.sessions.Open(c.Param("documentID"))
	session.SetViewport(request.Viewport)
	c.JSON(http.StatusOK, overlayResponse(session))
}

// Overlays handles GET /documents/:documentID/overlays
func (h *AnnotationHandler) Overlays(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, overlayResponse(session))
}

// Form handles GET /documents/:documentID/form
func (h *AnnotationHandler) Form(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, utils.BuildInvoiceForm(session.Store().Get()))
}

// Discard handles DELETE /documents/:documentID
func (h *AnnotationHandler) Discard(c *gin.Context) {
	if err := h.sessions.Discard(c.Param("documentID")); err != nil {
		h.sendError(c, http.StatusNotFound, err.Error(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func overlayResponse(session *service.DocumentSession) dto.OverlayResponse {
	response := dto.OverlayResponse{
		DocumentID: session.ID,
		Overlays:   []dto.Overlay{},
	}

	vp, ok := session.Viewport()
	if !ok {
		return response
	}
	response.Viewport = &vp
	response.ViewportReady = viewport.Ready(vp)
	if overlays := viewport.Overlays(session.Store().Get(), vp); overlays != nil {
		response.Overlays = overlays
	}
	return response
}

func (h *AnnotationHandler) session(c *gin.Context) (*service.DocumentSession, bool) {
	session, err := h.sessions.Get(c.Param("documentID"))
	if err != nil {
		h.sendError(c, http.StatusNotFound, err.Error(), err)
		return nil, false
	}
	return session, true
}

// sendError sends a structured error response
func (h *AnnotationHandler) sendError(c *gin.Context, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = err.Error()
		logrus.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"status": statusCode,
		}).WithError(err).Warn(message)
	}

	c.JSON(statusCode, dto.ErrorResponse{
		Error:   errorCode(statusCode),
		Message: errorMsg,
		Code:    statusCode,
	})
}

func errorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "VIEWPORT_NOT_READY"
	case http.StatusRequestEntityTooLarge:
		return "FILE_TOO_LARGE"
	case http.StatusBadGateway:
		return "DETECTION_FAILED"
	default:
		return "PROCESSING_FAILED"
	}
}
