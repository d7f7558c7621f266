package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chalkbyte/chalkbyte-api/internal/dto"
	"github.com/chalkbyte/chalkbyte-api/internal/models"
	"github.com/chalkbyte/chalkbyte-api/internal/service"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
	"github.com/chalkbyte/chalkbyte-api/pkg/response"
)

// SessionHandler exposes academic session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	exports  *service.CalendarExportService
	metrics  *service.MetricsService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService, exports *service.CalendarExportService, metrics *service.MetricsService) *SessionHandler {
	return &SessionHandler{sessions: sessions, exports: exports, metrics: metrics}
}

// List godoc
// @Summary List academic sessions
// @Tags Academic Sessions
// @Produce json
// @Param school_id query string false "Filter by school (system admins)"
// @Param is_active query bool false "Filter by active state"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /academic-sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.SessionFilter{
		SchoolID: c.Query("school_id"),
		IsActive: parseBoolQuery(c, "is_active"),
		Pager:    parsePageParams(c),
	}

	sessions, meta, err := h.sessions.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, meta)
}

// GetActive godoc
// @Summary Get the school's active session
// @Tags Academic Sessions
// @Produce json
// @Param school_id query string false "School (system admins)"
// @Success 200 {object} response.Envelope
// @Router /academic-sessions/active [get]
func (h *SessionHandler) GetActive(c *gin.Context) {
	schoolID, err := resolveSchoolID(c, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.sessions.GetActiveForSchool(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Get godoc
// @Summary Get academic session by id
// @Tags Academic Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Create academic session
// @Tags Academic Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /academic-sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	schoolID, err := resolveSchoolID(c, req.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update academic session
// @Tags Academic Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.UpdateSessionRequest true "Partial session payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-sessions/{id} [patch]
func (h *SessionHandler) Update(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	session, err := h.sessions.Update(c.Request.Context(), c.Param("id"), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete academic session
// @Tags Academic Sessions
// @Param id path string true "Session id"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /academic-sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), c.Param("id"), scope); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Activate godoc
// @Summary Activate academic session
// @Description Makes the session the school's single active one.
// @Tags Academic Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-sessions/{id}/activate [post]
func (h *SessionHandler) Activate(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.sessions.Activate(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTransition("session_activate")
	response.JSON(c, http.StatusOK, session, nil)
}

// Deactivate godoc
// @Summary Deactivate academic session
// @Description Clears the active flag and demotes the current term.
// @Tags Academic Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-sessions/{id}/deactivate [post]
func (h *SessionHandler) Deactivate(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.sessions.Deactivate(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTransition("session_deactivate")
	response.JSON(c, http.StatusOK, session, nil)
}

// Export godoc
// @Summary Export the session's term calendar
// @Tags Academic Sessions
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Session id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /academic-sessions/{id}/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.Export(c.Request.Context(), c.Param("id"), scope, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
