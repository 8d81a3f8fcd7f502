package handlers

import (
	"net/http"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/services"
	"github.com/bmtt-school/times-tables-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	BaseHandler
	authService services.AuthService
	codec       *auth.SessionCodec
}

func NewAuthHandler(authService services.AuthService, codec *auth.SessionCodec, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		authService: authService,
		codec:       codec,
	}
}

// TeacherLogin verifies staff credentials and sets the teacher cookie.
func (h *AuthHandler) TeacherLogin(c *gin.Context) {
	var req services.TeacherLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.authService.TeacherLogin(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.codec.SetCookie(c, auth.TeacherCookie, resp.Token)
	h.RespondWithSuccess(c, http.StatusOK, "Logged in", resp.Teacher)
}

func (h *AuthHandler) TeacherLogout(c *gin.Context) {
	h.codec.ClearCookie(c, auth.TeacherCookie)
	h.RespondWithSuccess(c, http.StatusOK, "Logged out", nil)
}

// StudentLogin verifies a pupil's username and PIN and sets the student
// cookie.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req services.StudentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.authService.StudentLogin(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.codec.SetCookie(c, auth.StudentCookie, resp.Token)
	h.RespondWithSuccess(c, http.StatusOK, "Logged in", resp.Student)
}

func (h *AuthHandler) StudentLogout(c *gin.Context) {
	h.codec.ClearCookie(c, auth.StudentCookie)
	h.RespondWithSuccess(c, http.StatusOK, "Logged out", nil)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	session := SessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Authentication required"})
		return
	}

	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), session.SubjectID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Password changed", nil)
}

// ResetTeacherPassword lets an admin issue a temporary password for a
// teacher. The response carries it exactly once.
func (h *AuthHandler) ResetTeacherPassword(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	creds, err := h.authService.ResetTeacherPassword(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Password reset", creds)
}

// CreateInvite lets an admin issue a teacher invite token.
func (h *AuthHandler) CreateInvite(c *gin.Context) {
	var req services.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.authService.CreateInvite(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Invite created", resp)
}

// AcceptInvite redeems an invite token, creates the account and logs the new
// teacher in.
func (h *AuthHandler) AcceptInvite(c *gin.Context) {
	var req services.AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.authService.AcceptInvite(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.codec.SetCookie(c, auth.TeacherCookie, resp.Token)
	h.RespondWithSuccess(c, http.StatusCreated, "Invite accepted", resp.Teacher)
}
