package handlers

import (
	"net/http"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/services"
	"github.com/bmtt-school/times-tables-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// maxImportSize caps uploaded roster workbooks at 5 MiB.
const maxImportSize = 5 << 20

type RosterHandler struct {
	BaseHandler
	rosterService services.RosterService
}

func NewRosterHandler(rosterService services.RosterService, logger utils.Logger) *RosterHandler {
	return &RosterHandler{
		BaseHandler:   NewBaseHandler(logger),
		rosterService: rosterService,
	}
}

// ===== CLASSES =====

func (h *RosterHandler) CreateClass(c *gin.Context) {
	var req services.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	class, err := h.rosterService.CreateClass(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Class created", class)
}

func (h *RosterHandler) ListClasses(c *gin.Context) {
	classes, err := h.rosterService.ListClasses(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Classes retrieved", classes)
}

// MyClasses lists the classes the logged-in staff member may report on.
func (h *RosterHandler) MyClasses(c *gin.Context) {
	session := SessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Authentication required"})
		return
	}

	classes, err := h.rosterService.ClassesForTeacher(c.Request.Context(), session.SubjectID, session.Role == models.RoleAdmin)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Classes retrieved", classes)
}

func (h *RosterHandler) GetClass(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	class, err := h.rosterService.GetClass(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Class retrieved", class)
}

func (h *RosterHandler) UpdateClass(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	class, err := h.rosterService.UpdateClass(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Class updated", class)
}

func (h *RosterHandler) DeleteClass(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.rosterService.DeleteClass(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Class deleted", nil)
}

// ===== PUPILS =====

func (h *RosterHandler) CreatePupil(c *gin.Context) {
	var req services.CreatePupilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	creds, err := h.rosterService.CreatePupil(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Pupil created", creds)
}

func (h *RosterHandler) ListPupils(c *gin.Context) {
	classID, ok := h.ParseUintQuery(c, "class_id")
	if !ok {
		return
	}
	if classID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "class_id is required"})
		return
	}

	pupils, err := h.rosterService.ListPupils(c.Request.Context(), classID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Pupils retrieved", pupils)
}

func (h *RosterHandler) DeletePupil(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.rosterService.DeletePupil(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Pupil deleted", nil)
}

func (h *RosterHandler) ResetPin(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	creds, err := h.rosterService.ResetPin(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "PIN reset", creds)
}

// ImportPupils accepts a multipart xlsx roster for one class.
func (h *RosterHandler) ImportPupils(c *gin.Context) {
	classID, ok := h.ParseUintQuery(c, "class_id")
	if !ok {
		return
	}
	if classID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "class_id is required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing upload",
			Details: "multipart field 'file' is required",
		})
		return
	}
	if fileHeader.Size > maxImportSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Upload too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Could not read upload", err)
		return
	}
	defer file.Close()

	result, err := h.rosterService.ImportPupils(c.Request.Context(), classID, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Import finished", result)
}

// ===== TEACHERS =====

type SetRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=teacher admin"`
}

type SetClassesRequest struct {
	ClassIDs []uint `json:"class_ids" validate:"required"`
}

func (h *RosterHandler) ListTeachers(c *gin.Context) {
	req := services.ListTeachersRequest{
		Role:   c.Query("role"),
		Limit:  ParseIntQuery(c, "limit", 0),
		Offset: ParseIntQuery(c, "offset", 0),
	}

	teachers, total, err := h.rosterService.ListTeachers(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Teachers retrieved", gin.H{
		"teachers": teachers,
		"total":    total,
	})
}

func (h *RosterHandler) SetTeacherRole(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.rosterService.SetTeacherRole(c.Request.Context(), id, req.Role); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Role updated", nil)
}

func (h *RosterHandler) SetTeacherClasses(c *gin.Context) {
	id, ok := h.ParseUintParam(c, "id")
	if !ok {
		return
	}

	var req SetClassesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.rosterService.SetTeacherClasses(c.Request.Context(), id, req.ClassIDs); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Classes updated", nil)
}
