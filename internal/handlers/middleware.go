package handlers

import (
	"net/http"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/gin-gonic/gin"
)

const sessionContextKey = "session"

// AuthMiddleware resolves session cookies into a Session on the request
// context. All identity flows through the one codec.
type AuthMiddleware struct {
	codec *auth.SessionCodec
}

func NewAuthMiddleware(codec *auth.SessionCodec) *AuthMiddleware {
	return &AuthMiddleware{codec: codec}
}

// RequireStaff admits teachers and admins via the teacher cookie.
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := m.codec.FromCookie(c, auth.TeacherCookie)
		if err != nil || !session.IsStaff() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Authentication required",
			})
			return
		}
		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// RequireAdmin admits admins only. Teachers holding a valid session get 403,
// not 401.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := m.codec.FromCookie(c, auth.TeacherCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Authentication required",
			})
			return
		}
		if session.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Admin role required",
			})
			return
		}
		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// RequireStudent admits pupils via the student cookie.
func (m *AuthMiddleware) RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := m.codec.FromCookie(c, auth.StudentCookie)
		if err != nil || session.Role != models.RoleStudent {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Authentication required",
			})
			return
		}
		c.Set(sessionContextKey, session)
		c.Next()
	}
}
