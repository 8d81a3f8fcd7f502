package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/services"
	"github.com/bmtt-school/times-tables-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAttainmentService refuses teachers without a class link and serves
// everyone else, mirroring the real service's permission shape.
type stubAttainmentService struct {
	linkedTeacherID uint
}

func (s *stubAttainmentService) ClassAttainment(ctx context.Context, actor *auth.Session, classID uint, months int) (*services.ClassAttainmentResponse, error) {
	if actor.Role != models.RoleAdmin && actor.SubjectID != s.linkedTeacherID {
		return nil, services.NewPermissionError(actor.SubjectID, "class", "M4", "view attainment", "no teacher-class link")
	}
	return &services.ClassAttainmentResponse{Class: &models.Class{ID: classID, ClassLabel: "M4"}}, nil
}

func (s *stubAttainmentService) PupilAttainment(ctx context.Context, actor *auth.Session, studentID uint) (*services.PupilAttainmentResponse, error) {
	return &services.PupilAttainmentResponse{}, nil
}

func (s *stubAttainmentService) Heatmap(ctx context.Context, actor *auth.Session, req *services.HeatmapRequest) (*services.HeatmapResponse, error) {
	return &services.HeatmapResponse{}, nil
}

func (s *stubAttainmentService) Movers(ctx context.Context, actor *auth.Session, classID uint, days int) (*services.MoversResponse, error) {
	return &services.MoversResponse{}, nil
}

func newTestRouter(t *testing.T, codec *auth.SessionCodec) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewDefaultLogger()
	handler := NewAttainmentHandler(&stubAttainmentService{linkedTeacherID: 1}, nil, logger)
	middleware := NewAuthMiddleware(codec)

	router := gin.New()
	router.GET("/api/teacher/attainment/class", middleware.RequireStaff(), handler.ClassAttainment)
	router.GET("/api/admin/only", middleware.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func requestWithCookie(t *testing.T, router *gin.Engine, path, cookieName, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestClassScopedRead_Permissions(t *testing.T) {
	codec := auth.NewSessionCodec("test-secret", false)
	router := newTestRouter(t, codec)
	path := "/api/teacher/attainment/class?class_id=4"

	t.Run("no cookie gives 401", func(t *testing.T) {
		rec := requestWithCookie(t, router, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("student cookie on staff route gives 401", func(t *testing.T) {
		token, err := codec.IssueStudent(&models.Student{ID: 7, ClassID: 4})
		require.NoError(t, err)
		rec := requestWithCookie(t, router, path, auth.TeacherCookie, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unlinked teacher gives 403", func(t *testing.T) {
		token, err := codec.IssueTeacher(&models.Teacher{ID: 9, Role: models.RoleTeacher})
		require.NoError(t, err)
		rec := requestWithCookie(t, router, path, auth.TeacherCookie, token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("linked teacher gives 200", func(t *testing.T) {
		token, err := codec.IssueTeacher(&models.Teacher{ID: 1, Role: models.RoleTeacher})
		require.NoError(t, err)
		rec := requestWithCookie(t, router, path, auth.TeacherCookie, token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin gives 200", func(t *testing.T) {
		token, err := codec.IssueTeacher(&models.Teacher{ID: 2, Role: models.RoleAdmin})
		require.NoError(t, err)
		rec := requestWithCookie(t, router, path, auth.TeacherCookie, token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	codec := auth.NewSessionCodec("test-secret", false)
	router := newTestRouter(t, codec)

	t.Run("teacher on admin route gives 403", func(t *testing.T) {
		token, err := codec.IssueTeacher(&models.Teacher{ID: 1, Role: models.RoleTeacher})
		require.NoError(t, err)
		rec := requestWithCookie(t, router, "/api/admin/only", auth.TeacherCookie, token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin passes", func(t *testing.T) {
		token, err := codec.IssueTeacher(&models.Teacher{ID: 2, Role: models.RoleAdmin})
		require.NoError(t, err)
		rec := requestWithCookie(t, router, "/api/admin/only", auth.TeacherCookie, token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("garbage cookie gives 401", func(t *testing.T) {
		rec := requestWithCookie(t, router, "/api/admin/only", auth.TeacherCookie, "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
