package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmtt-school/times-tables-service/internal/auth"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/bmtt-school/times-tables-service/internal/repositories"
	"github.com/bmtt-school/times-tables-service/internal/validator"
)

const inviteTTL = 14 * 24 * time.Hour

// AuthService owns credential verification, session token issuance and the
// teacher invite lifecycle.
type AuthService interface {
	TeacherLogin(ctx context.Context, req *TeacherLoginRequest) (*TeacherLoginResponse, error)
	StudentLogin(ctx context.Context, req *StudentLoginRequest) (*StudentLoginResponse, error)
	ChangePassword(ctx context.Context, teacherID uint, req *ChangePasswordRequest) error
	ResetTeacherPassword(ctx context.Context, teacherID uint) (*TeacherCredentials, error)

	CreateInvite(ctx context.Context, req *CreateInviteRequest) (*InviteResponse, error)
	AcceptInvite(ctx context.Context, req *AcceptInviteRequest) (*TeacherLoginResponse, error)
}

// ===== REQUEST / RESPONSE TYPES =====

type TeacherLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type TeacherLoginResponse struct {
	Teacher *models.Teacher `json:"teacher"`
	Token   string          `json:"-"`
}

type StudentLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Pin      string `json:"pin" validate:"required,pin"`
}

type StudentLoginResponse struct {
	Student *models.Student `json:"student"`
	Token   string          `json:"-"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// TeacherCredentials carries the one-time temporary password issued when an
// admin resets a teacher's account. It is never retrievable afterwards.
type TeacherCredentials struct {
	Teacher      *models.Teacher `json:"teacher"`
	TempPassword string          `json:"temp_password"`
}

type CreateInviteRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,min=1,max=100"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=teacher admin"`
}

type InviteResponse struct {
	Invite *models.TeacherInvite `json:"invite"`
	// Token is returned once at creation so an admin can hand it over;
	// it is never readable again.
	Token string `json:"token"`
}

type AcceptInviteRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// ===== IMPLEMENTATION =====

type authService struct {
	repo      repositories.Repository
	codec     *auth.SessionCodec
	validator *validator.Validator
	logger    *slog.Logger
}

func NewAuthService(repo repositories.Repository, codec *auth.SessionCodec, v *validator.Validator, logger *slog.Logger) AuthService {
	return &authService{
		repo:      repo,
		codec:     codec,
		validator: v,
		logger:    logger,
	}
}

func (s *authService) TeacherLogin(ctx context.Context, req *TeacherLoginRequest) (*TeacherLoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	teacher, err := s.repo.Teacher().GetByEmail(ctx, req.Email)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// Same error as a bad password so probing for accounts
			// learns nothing.
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load teacher: %w", err)
	}

	if !auth.CheckCredential(teacher.PasswordHash, req.Password) {
		s.logger.Warn("Teacher login rejected", "email", req.Email)
		return nil, ErrInvalidCredentials
	}
	if !teacher.IsActive {
		return nil, ErrAccountDisabled
	}

	now := time.Now()
	teacher.LastLoginAt = &now
	if err := s.repo.Teacher().Update(ctx, teacher); err != nil {
		s.logger.Warn("Failed to record last login", "teacher_id", teacher.ID, "error", err)
	}

	token, err := s.codec.IssueTeacher(teacher)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("Teacher logged in", "teacher_id", teacher.ID, "role", teacher.Role)
	return &TeacherLoginResponse{Teacher: teacher, Token: token}, nil
}

func (s *authService) StudentLogin(ctx context.Context, req *StudentLoginRequest) (*StudentLoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	student, err := s.repo.Student().GetByUsername(ctx, req.Username)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load pupil: %w", err)
	}

	if !auth.CheckCredential(student.PinHash, req.Pin) {
		s.logger.Warn("Pupil login rejected", "username", req.Username)
		return nil, ErrInvalidCredentials
	}

	token, err := s.codec.IssueStudent(student)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("Pupil logged in", "student_id", student.ID, "class", student.ClassLabel)
	return &StudentLoginResponse{Student: student, Token: token}, nil
}

func (s *authService) ChangePassword(ctx context.Context, teacherID uint, req *ChangePasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	teacher, err := s.repo.Teacher().GetByID(ctx, teacherID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("failed to load teacher: %w", err)
	}

	if !auth.CheckCredential(teacher.PasswordHash, req.CurrentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashCredential(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	teacher.PasswordHash = hash

	if err := s.repo.Teacher().Update(ctx, teacher); err != nil {
		return fmt.Errorf("failed to update teacher: %w", err)
	}

	s.logger.Info("Teacher changed password", "teacher_id", teacherID)
	return nil
}

// ResetTeacherPassword issues a temporary password for a locked-out teacher.
// The old password stops working immediately; the teacher is expected to
// change the temporary one through ChangePassword.
func (s *authService) ResetTeacherPassword(ctx context.Context, teacherID uint) (*TeacherCredentials, error) {
	teacher, err := s.repo.Teacher().GetByID(ctx, teacherID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("failed to load teacher: %w", err)
	}

	password, err := auth.GenerateTempPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := auth.HashCredential(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	teacher.PasswordHash = hash

	if err := s.repo.Teacher().Update(ctx, teacher); err != nil {
		return nil, fmt.Errorf("failed to update teacher: %w", err)
	}

	s.logger.Info("Teacher password reset", "teacher_id", teacherID)
	return &TeacherCredentials{Teacher: teacher, TempPassword: password}, nil
}

func (s *authService) CreateInvite(ctx context.Context, req *CreateInviteRequest) (*InviteResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.Teacher().GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleTeacher
	}

	invite := &models.TeacherInvite{
		Email:     req.Email,
		FullName:  req.FullName,
		Role:      role,
		Token:     token,
		ExpiresAt: time.Now().Add(inviteTTL),
	}
	if err := s.repo.Invite().Create(ctx, invite); err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	s.logger.Info("Teacher invite created", "email", req.Email, "role", role)
	return &InviteResponse{Invite: invite, Token: token}, nil
}

func (s *authService) AcceptInvite(ctx context.Context, req *AcceptInviteRequest) (*TeacherLoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	invite, err := s.repo.Invite().GetByToken(ctx, req.Token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	now := time.Now()
	if invite.AcceptedAt != nil {
		return nil, ErrInviteAlreadyUsed
	}
	if !invite.Usable(now) {
		return nil, ErrInviteExpired
	}

	hash, err := auth.HashCredential(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	teacher := &models.Teacher{
		Email:        invite.Email,
		PasswordHash: hash,
		FullName:     invite.FullName,
		Role:         invite.Role,
		IsActive:     true,
	}
	if err := s.repo.Teacher().Create(ctx, teacher); err != nil {
		return nil, fmt.Errorf("failed to create teacher: %w", err)
	}
	if err := s.repo.Invite().MarkAccepted(ctx, invite.ID, now); err != nil {
		return nil, fmt.Errorf("failed to mark invite accepted: %w", err)
	}

	token, err := s.codec.IssueTeacher(teacher)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("Teacher invite accepted", "teacher_id", teacher.ID, "email", teacher.Email)
	return &TeacherLoginResponse{Teacher: teacher, Token: token}, nil
}

func generateInviteToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
