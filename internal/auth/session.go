package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Cookie names carried over from the original product.
const (
	TeacherCookie = "bmtt_teacher"
	StudentCookie = "bmtt_student"
)

const sessionTTL = 30 * 24 * time.Hour

var (
	ErrNoSession      = errors.New("no session cookie")
	ErrInvalidSession = errors.New("invalid session")
)

// Session is the single canonical session shape for every caller. Teachers
// and admins carry their role; pupils carry role "student" plus their class.
type Session struct {
	SubjectID uint            `json:"sub_id"`
	Role      models.UserRole `json:"role"`
	ClassID   uint            `json:"class_id,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the session belongs to a teacher or admin.
func (s *Session) IsStaff() bool {
	return s.Role == models.RoleTeacher || s.Role == models.RoleAdmin
}

// SessionCodec signs and parses session cookies. There is exactly one of
// these in the process; every handler resolves identity through it.
type SessionCodec struct {
	secret []byte
	secure bool
}

func NewSessionCodec(secret string, secure bool) *SessionCodec {
	return &SessionCodec{
		secret: []byte(secret),
		secure: secure,
	}
}

// IssueTeacher creates a signed session token for a staff account.
func (sc *SessionCodec) IssueTeacher(teacher *models.Teacher) (string, error) {
	return sc.sign(&Session{
		SubjectID: teacher.ID,
		Role:      teacher.Role,
	})
}

// IssueStudent creates a signed session token for a pupil.
func (sc *SessionCodec) IssueStudent(student *models.Student) (string, error) {
	return sc.sign(&Session{
		SubjectID: student.ID,
		Role:      models.RoleStudent,
		ClassID:   student.ClassID,
	})
}

func (sc *SessionCodec) sign(session *Session) (string, error) {
	now := time.Now()
	session.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, session)
	signed, err := token.SignedString(sc.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Parse validates a session token and returns its claims.
func (sc *SessionCodec) Parse(tokenStr string) (*Session, error) {
	session := &Session{}
	token, err := jwt.ParseWithClaims(tokenStr, session, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return sc.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// FromCookie resolves a session from the named request cookie.
func (sc *SessionCodec) FromCookie(c *gin.Context, name string) (*Session, error) {
	raw, err := c.Cookie(name)
	if err != nil || raw == "" {
		return nil, ErrNoSession
	}
	return sc.Parse(raw)
}

// SetCookie writes a session cookie on the response.
func (sc *SessionCodec) SetCookie(c *gin.Context, name, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires a session cookie.
func (sc *SessionCodec) ClearCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
