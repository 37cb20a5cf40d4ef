package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"requisition/internal/auth"
	"requisition/internal/identity"
	"requisition/internal/model"
	"requisition/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone"`
	Password    string `json:"password" binding:"required,min=6"`
	Role        string `json:"role" binding:"required"`
	Designation string `json:"designation"`
	LineManager string `json:"line_manager"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Role        string    `json:"role"`
	Designation string    `json:"designation"`
	LineManager string    `json:"line_manager"`
	CreatedAt   string    `json:"created_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, createdBy *uuid.UUID, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListByDesignation(ctx context.Context, designation string) ([]UserResponse, error)
	ResolveIdentity(ctx context.Context, token string) (identity.Identity, error)
}

type userService struct {
	repo      repository.UserRepository
	auditRepo repository.AuditRepository
	tokens    *auth.TokenManager
	logger    *zap.Logger
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, auditRepo repository.AuditRepository, tokens *auth.TokenManager, logger *zap.Logger) UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userService{repo: repo, auditRepo: auditRepo, tokens: tokens, logger: logger.With(zap.String("service", "user"))}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Phone:       user.Phone,
		Role:        user.Role,
		Designation: user.Designation,
		LineManager: user.LineManager,
		CreatedAt:   user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *userService) CreateUser(ctx context.Context, createdBy *uuid.UUID, req CreateUserRequest) (*UserResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Designation = strings.TrimSpace(req.Designation)
	req.LineManager = strings.TrimSpace(req.LineManager)

	if req.Role != model.RoleAdmin && req.Role != model.RoleStaff {
		return nil, invalidInput("role must be %s or %s", model.RoleAdmin, model.RoleStaff)
	}
	if req.Role == model.RoleStaff && req.Designation == "" {
		return nil, invalidInput("designation is required for staff")
	}
	if !emailRegex.MatchString(req.Email) {
		return nil, invalidInput("invalid email format")
	}
	if len(req.Password) < 6 {
		return nil, invalidInput("password must be at least 6 characters")
	}

	// Double check username/email uniqueness via repo directly
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: username already exists", ErrConflict)
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%w: email already exists", ErrConflict)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:    req.Username,
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    string(hashedPassword),
		Role:        req.Role,
		Designation: req.Designation,
		LineManager: req.LineManager,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, classify("create user", err)
	}

	details, _ := json.Marshal(map[string]interface{}{
		"role":         user.Role,
		"designation":  user.Designation,
		"line_manager": user.LineManager,
	})
	entry := model.AuditLog{
		UserID:     createdBy,
		Action:     model.ActionCreateUser,
		EntityID:   user.ID.String(),
		EntityName: user.Username,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("user", user.Username), zap.Error(err))
	}

	s.logger.Info("user created", zap.String("username", user.Username), zap.String("designation", user.Designation))
	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}

	tokenString, err := s.tokens.Issue(user.ID.String(), user.Role)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &TokenResponse{Token: tokenString}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, classify("user "+id, err)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListByDesignation(ctx context.Context, designation string) ([]UserResponse, error) {
	users, err := s.repo.ListByDesignation(ctx, designation)
	if err != nil {
		return nil, classify("list users", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, nil
}

// ResolveIdentity turns an access token into the caller's identity record
func (s *userService) ResolveIdentity(ctx context.Context, token string) (identity.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return identity.Identity{}, fmt.Errorf("%w: account no longer exists", ErrUnauthenticated)
		}
		return identity.Identity{}, classify("resolve identity", err)
	}
	return identity.FromUser(user), nil
}
