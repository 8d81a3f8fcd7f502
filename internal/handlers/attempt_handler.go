package handlers

import (
	"net/http"

	"github.com/bmtt-school/times-tables-service/internal/services"
	"github.com/bmtt-school/times-tables-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// Start creates a fresh attempt for the logged-in pupil.
func (h *AttemptHandler) Start(c *gin.Context) {
	session := SessionFromContext(c)

	var req services.StartAttemptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	resp, err := h.attemptService.Start(c.Request.Context(), session.SubjectID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Attempt started", resp)
}

// Submit grades a whole attempt at once. The attempt id travels in the body
// because the client holds it from Start.
func (h *AttemptHandler) Submit(c *gin.Context) {
	session := SessionFromContext(c)

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.attemptService.Submit(c.Request.Context(), session.SubjectID, req.AttemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempt submitted", resp)
}

// Answer grades the next open question of an attempt.
func (h *AttemptHandler) Answer(c *gin.Context) {
	session := SessionFromContext(c)
	attemptID, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.attemptService.Answer(c.Request.Context(), session.SubjectID, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer recorded", resp)
}

// ListMine returns the logged-in pupil's recent results, newest first.
func (h *AttemptHandler) ListMine(c *gin.Context) {
	session := SessionFromContext(c)
	limit := ParseIntQuery(c, "limit", 0)

	results, err := h.attemptService.ListRecent(c.Request.Context(), session.SubjectID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempts retrieved", results)
}

// GetResult returns the finished attempt's score summary.
func (h *AttemptHandler) GetResult(c *gin.Context) {
	session := SessionFromContext(c)
	attemptID, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.attemptService.GetResult(c.Request.Context(), session.SubjectID, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Result retrieved", resp)
}
