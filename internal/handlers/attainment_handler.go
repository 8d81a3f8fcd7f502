package handlers

import (
	"net/http"

	"github.com/bmtt-school/times-tables-service/internal/services"
	"github.com/bmtt-school/times-tables-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type AttainmentHandler struct {
	BaseHandler
	attainmentService services.AttainmentService
	exportService     services.ExportService
}

func NewAttainmentHandler(attainmentService services.AttainmentService, exportService services.ExportService, logger utils.Logger) *AttainmentHandler {
	return &AttainmentHandler{
		BaseHandler:       NewBaseHandler(logger),
		attainmentService: attainmentService,
		exportService:     exportService,
	}
}

// ClassAttainment returns the class's monthly trend and summary stats.
func (h *AttainmentHandler) ClassAttainment(c *gin.Context) {
	session := SessionFromContext(c)
	classID, ok := h.ParseUintQuery(c, "class_id")
	if !ok {
		return
	}
	if classID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "class_id is required"})
		return
	}
	months := ParseIntQuery(c, "months", 0)

	resp, err := h.attainmentService.ClassAttainment(c.Request.Context(), session, classID, months)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Class attainment retrieved", resp)
}

// PupilAttainment returns one pupil's attempt series.
func (h *AttainmentHandler) PupilAttainment(c *gin.Context) {
	session := SessionFromContext(c)
	studentID, ok := h.ParseUintQuery(c, "student_id")
	if !ok {
		return
	}
	if studentID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "student_id is required"})
		return
	}

	resp, err := h.attainmentService.PupilAttainment(c.Request.Context(), session, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Pupil attainment retrieved", resp)
}

// Heatmap returns per-table accuracy for a class, year group or pupil.
func (h *AttainmentHandler) Heatmap(c *gin.Context) {
	session := SessionFromContext(c)

	req := &services.HeatmapRequest{Days: ParseIntQuery(c, "days", 0)}
	if classID, ok := h.ParseUintQuery(c, "class_id"); !ok {
		return
	} else if classID != 0 {
		req.ClassID = &classID
	}
	if studentID, ok := h.ParseUintQuery(c, "student_id"); !ok {
		return
	} else if studentID != 0 {
		req.StudentID = &studentID
	}
	if year := ParseIntQuery(c, "year", 0); year != 0 {
		req.YearGroup = &year
	}

	resp, err := h.attainmentService.Heatmap(c.Request.Context(), session, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Heatmap retrieved", resp)
}

// Movers returns the class's improvers and concerns lists.
func (h *AttainmentHandler) Movers(c *gin.Context) {
	session := SessionFromContext(c)
	classID, ok := h.ParseUintQuery(c, "class_id")
	if !ok {
		return
	}
	if classID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "class_id is required"})
		return
	}
	days := ParseIntQuery(c, "days", 0)

	resp, err := h.attainmentService.Movers(c.Request.Context(), session, classID, days)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Movers retrieved", resp)
}

// ExportClass streams the class workbook as an xlsx download.
func (h *AttainmentHandler) ExportClass(c *gin.Context) {
	session := SessionFromContext(c)
	classID, ok := h.ParseUintQuery(c, "class_id")
	if !ok {
		return
	}
	if classID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "class_id is required"})
		return
	}

	result, err := h.exportService.ClassWorkbook(c.Request.Context(), session, classID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		result.Content.Bytes())
}
