package handlers

import (
	"net/http"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/services"
	"github.com/bmtt-school/times-tables-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	authHandler       *AuthHandler
	rosterHandler     *RosterHandler
	attemptHandler    *AttemptHandler
	attainmentHandler *AttainmentHandler
	middleware        *AuthMiddleware
}

func NewHandlerManager(
	serviceManager *services.ServiceManager,
	codec *auth.SessionCodec,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		authHandler:       NewAuthHandler(serviceManager.Auth, codec, logger),
		rosterHandler:     NewRosterHandler(serviceManager.Roster, logger),
		attemptHandler:    NewAttemptHandler(serviceManager.Attempt, logger),
		attainmentHandler: NewAttainmentHandler(serviceManager.Attainment, serviceManager.Export, logger),
		middleware:        NewAuthMiddleware(codec),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	api := router.Group("/api")

	// Login surface, no session required
	api.POST("/teacher/login", hm.authHandler.TeacherLogin)
	api.POST("/teacher/logout", hm.authHandler.TeacherLogout)
	api.POST("/teacher/invite/accept", hm.authHandler.AcceptInvite)
	api.POST("/student/login", hm.authHandler.StudentLogin)
	api.POST("/student/logout", hm.authHandler.StudentLogout)

	// Pupil quiz surface
	tests := api.Group("/tests", hm.middleware.RequireStudent())
	{
		tests.POST("/start", hm.attemptHandler.Start)
		tests.POST("/submit", hm.attemptHandler.Submit)
		tests.GET("/attempts", hm.attemptHandler.ListMine)
		tests.POST("/attempts/:id/answer", hm.attemptHandler.Answer)
		tests.GET("/attempts/:id/result", hm.attemptHandler.GetResult)
	}

	// Staff reporting surface
	teacher := api.Group("/teacher", hm.middleware.RequireStaff())
	{
		teacher.POST("/password", hm.authHandler.ChangePassword)
		teacher.GET("/classes", hm.rosterHandler.MyClasses)
		teacher.GET("/attainment/class", hm.attainmentHandler.ClassAttainment)
		teacher.GET("/attainment/pupil", hm.attainmentHandler.PupilAttainment)
		teacher.GET("/heatmap", hm.attainmentHandler.Heatmap)
		teacher.GET("/movers", hm.attainmentHandler.Movers)
		teacher.GET("/export/class", hm.attainmentHandler.ExportClass)
	}

	// Admin surface
	admin := api.Group("/admin", hm.middleware.RequireAdmin())
	{
		admin.POST("/classes", hm.rosterHandler.CreateClass)
		admin.GET("/classes", hm.rosterHandler.ListClasses)
		admin.GET("/classes/:id", hm.rosterHandler.GetClass)
		admin.PUT("/classes/:id", hm.rosterHandler.UpdateClass)
		admin.DELETE("/classes/:id", hm.rosterHandler.DeleteClass)

		admin.POST("/pupils", hm.rosterHandler.CreatePupil)
		admin.GET("/pupils", hm.rosterHandler.ListPupils)
		admin.POST("/pupils/import", hm.rosterHandler.ImportPupils)
		admin.POST("/pupils/:id/reset-pin", hm.rosterHandler.ResetPin)
		admin.DELETE("/pupils/:id", hm.rosterHandler.DeletePupil)

		admin.GET("/teachers", hm.rosterHandler.ListTeachers)
		admin.POST("/teachers/invite", hm.authHandler.CreateInvite)
		admin.POST("/teachers/:id/reset-password", hm.authHandler.ResetTeacherPassword)
		admin.PUT("/teachers/:id/role", hm.rosterHandler.SetTeacherRole)
		admin.PUT("/teachers/:id/classes", hm.rosterHandler.SetTeacherClasses)
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "times-tables-service",
	})
}
