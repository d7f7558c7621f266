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

// TermHandler exposes term endpoints.
type TermHandler struct {
	terms   *service.TermService
	metrics *service.MetricsService
}

// NewTermHandler constructs handler.
func NewTermHandler(terms *service.TermService, metrics *service.MetricsService) *TermHandler {
	return &TermHandler{terms: terms, metrics: metrics}
}

// ListBySession godoc
// @Summary List terms of a session
// @Tags Terms
// @Produce json
// @Param id path string true "Session id"
// @Param is_current query bool false "Filter by current state"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-sessions/{id}/terms [get]
func (h *TermHandler) ListBySession(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.TermFilter{
		IsCurrent: parseBoolQuery(c, "is_current"),
		Pager:     parsePageParams(c),
	}

	terms, meta, err := h.terms.List(c.Request.Context(), c.Param("id"), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, meta)
}

// Create godoc
// @Summary Create term inside a session
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /academic-sessions/{id}/terms [post]
func (h *TermHandler) Create(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	term, err := h.terms.Create(c.Request.Context(), c.Param("id"), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// GetCurrent godoc
// @Summary Get the school's current term
// @Description Returns the current term of the active session, or null.
// @Tags Terms
// @Produce json
// @Param school_id query string false "School (system admins)"
// @Success 200 {object} response.Envelope
// @Router /terms/current [get]
func (h *TermHandler) GetCurrent(c *gin.Context) {
	schoolID, err := resolveSchoolID(c, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	term, err := h.terms.GetCurrentForSchool(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Get godoc
// @Summary Get term by id
// @Tags Terms
// @Produce json
// @Param id path string true "Term id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{id} [get]
func (h *TermHandler) Get(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	term, err := h.terms.Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Update godoc
// @Summary Update term
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path string true "Term id"
// @Param payload body dto.UpdateTermRequest true "Partial term payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{id} [patch]
func (h *TermHandler) Update(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	term, err := h.terms.Update(c.Request.Context(), c.Param("id"), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Delete godoc
// @Summary Delete term
// @Tags Terms
// @Param id path string true "Term id"
// @Success 204 "No Content"
// @Failure 404 {object} response.Envelope
// @Router /terms/{id} [delete]
func (h *TermHandler) Delete(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.terms.Delete(c.Request.Context(), c.Param("id"), scope); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetCurrent godoc
// @Summary Mark a term as the current one
// @Description Promotes the term and demotes any sibling. The parent session must be active.
// @Tags Terms
// @Produce json
// @Param id path string true "Term id"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{id}/set-current [post]
func (h *TermHandler) SetCurrent(c *gin.Context) {
	scope, err := resolveScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	term, err := h.terms.SetCurrent(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTransition("term_set_current")
	response.JSON(c, http.StatusOK, term, nil)
}
