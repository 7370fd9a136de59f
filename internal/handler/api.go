package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"labelbench/internal/models"
	"labelbench/internal/service"
	"labelbench/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the workbench boundary over HTTP for the presentation
// layer.
type Handler struct {
	workbench *service.Workbench
	logger    *zap.Logger

	// The session is a single-annotator cursor; serialize access to it.
	mu      sync.Mutex
	session *session.Session
}

// NewHandler creates the API handler.
func NewHandler(workbench *service.Workbench, sess *session.Session, logger *zap.Logger) *Handler {
	return &Handler{
		workbench: workbench,
		session:   sess,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Import and samples
		api.POST("/samples/import", h.ImportSamples)
		api.GET("/samples", h.GetSamples)
		api.GET("/samples/:id", h.GetSample)

		// Annotations
		api.POST("/annotations", h.CreateAnnotation)
		api.GET("/annotations/stats", h.GetStats)
		api.GET("/annotations/breakdown/:key", h.GetBreakdown)
		api.GET("/annotations/issues/:issue", h.GetSamplesByIssue)

		// Annotation session
		api.GET("/session", h.GetSession)
		api.POST("/session/submit", h.SubmitDecision)
		api.POST("/session/seek", h.SeekSession)

		// Export and maintenance
		api.GET("/export", h.Export)
		api.DELETE("/data", h.ClearData)
	}

	r.GET("/health", h.HealthCheck)
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validation *models.ValidationError
		dupID      *models.DuplicateIDError
		dupAnn     *models.DuplicateAnnotationError
		notFound   *models.NotFoundError
		stale      *models.StaleStateError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validation.Field})
	case errors.As(err, &dupID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "duplicate_ids": dupID.IDs})
	case errors.As(err, &dupAnn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "sample_id": dupAnn.SampleID})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &stale):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "stale": true})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ImportSamples accepts a multipart CSV/JSON upload.
func (h *Handler) ImportSamples(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	result, err := h.workbench.ImportReader(f, fileHeader.Filename)
	if err != nil {
		var dupID *models.DuplicateIDError
		var validation *models.ValidationError
		if errors.As(err, &dupID) || errors.As(err, &validation) {
			h.writeError(c, err)
		} else {
			// Unparseable input (bad header, malformed document) is a
			// client error.
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetSamples returns all samples, or only the unannotated set when
// ?unannotated=true.
func (h *Handler) GetSamples(c *gin.Context) {
	var samples []models.Sample
	var err error
	if c.Query("unannotated") == "true" {
		samples, err = h.workbench.GetUnannotatedSamples()
	} else {
		samples, err = h.workbench.GetAllSamples()
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"samples": samples, "total": len(samples)})
}

// GetSample returns one sample by id.
func (h *Handler) GetSample(c *gin.Context) {
	sample, err := h.workbench.GetSample(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

type annotationRequest struct {
	SampleID     string `json:"sample_id" binding:"required"`
	IsAcceptable *bool  `json:"is_acceptable" binding:"required"`
	PrimaryIssue string `json:"primary_issue"`
	Notes        string `json:"notes"`
}

// CreateAnnotation records a decision for a sample directly, outside the
// session cursor.
func (h *Handler) CreateAnnotation(c *gin.Context) {
	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ann, err := h.workbench.Annotate(req.SampleID, *req.IsAcceptable, models.IssueType(req.PrimaryIssue), req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ann)
}

// GetStats returns aggregate annotation statistics.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.workbench.GetAnnotationStats()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetBreakdown groups accept/reject counts by a metadata key.
func (h *Handler) GetBreakdown(c *gin.Context) {
	breakdown, err := h.workbench.GetBreakdownByMetadata(c.Param("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// GetSamplesByIssue returns rejected samples carrying one issue type.
func (h *Handler) GetSamplesByIssue(c *gin.Context) {
	issue := models.IssueType(c.Param("issue"))
	pairs, err := h.workbench.GetSamplesByIssue(issue)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issue": issue, "samples": pairs, "total": len(pairs)})
}

type sessionResponse struct {
	Progress session.Progress `json:"progress"`
	Current  *models.Sample   `json:"current,omitempty"`
}

func (h *Handler) sessionSnapshot() sessionResponse {
	resp := sessionResponse{Progress: h.session.Progress()}
	if current, ok := h.session.Current(); ok {
		resp.Current = &current
	}
	return resp
}

// GetSession refreshes the session from the store and returns the current
// cursor position and sample.
func (h *Handler) GetSession(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.session.Refresh(); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionSnapshot())
}

// SubmitDecision records a decision for the sample under the cursor.
func (h *Handler) SubmitDecision(c *gin.Context) {
	var decision session.Decision
	if err := c.ShouldBindJSON(&decision); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.session.Submit(decision); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.sessionSnapshot())
}

type seekRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SeekSession moves the cursor; out-of-range indexes clamp.
func (h *Handler) SeekSession(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.session.Seek(*req.Index)
	c.JSON(http.StatusOK, h.sessionSnapshot())
}

// Export streams matching sample/annotation pairs as a CSV or JSON
// download. Query params: format (csv|json), decision (accepted|rejected),
// issue.
func (h *Handler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	filter := service.ExportFilter{
		Decision: c.Query("decision"),
		Issue:    models.IssueType(c.Query("issue")),
	}
	if err := filter.Validate(); err != nil {
		h.writeError(c, err)
		return
	}

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=annotations.csv")
	case "json":
		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", "attachment; filename=annotations.json")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or json"})
		return
	}

	if _, err := h.workbench.ExportFiltered(c.Writer, format, filter); err != nil {
		h.logger.Error("Export failed", zap.Error(err))
		// Headers may already be out; nothing better to do than abort.
		c.Abort()
	}
}

// ClearData deletes every sample and annotation.
func (h *Handler) ClearData(c *gin.Context) {
	samples, annotations, err := h.workbench.ClearAll()
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.mu.Lock()
	refreshErr := h.session.Refresh()
	h.mu.Unlock()
	if refreshErr != nil {
		h.writeError(c, refreshErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"samples_deleted":     samples,
		"annotations_deleted": annotations,
	})
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "labelbench",
		"version": "1.0.0",
	})
}
