package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/jwt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = apperrors.New(&apperrors.AppError{StatusCode: http.StatusConflict, Code: "USER_EXISTS"}, "user with this email already exists")
	ErrInvalidCredentials = apperrors.New(&apperrors.AppError{StatusCode: http.StatusUnauthorized, Code: apperrors.CodeUnauthorized}, "invalid email or password")
)

// UserService registers and authenticates bot owners
type UserService struct {
	db          *gorm.DB
	tokens      *jwt.Service
	adminEmails map[string]bool
	now         func() time.Time
	ensure      func(ctx context.Context) error
}

// NewUserService creates a new user service. Accounts registered with one of
// adminEmails receive the admin role.
func NewUserService(db *gorm.DB, tokens *jwt.Service, adminEmails []string) *UserService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &UserService{db: db, tokens: tokens, adminEmails: admins, now: time.Now}
}

// UseSchema makes every operation run ensure first, so a database that was
// unreachable at boot is migrated on first use
func (s *UserService) UseSchema(ensure func(ctx context.Context) error) *UserService {
	s.ensure = ensure
	return s
}

func (s *UserService) ready(ctx context.Context) error {
	if s.ensure == nil {
		return nil
	}
	return s.ensure(ctx)
}

// CreateUser registers an owner and returns it with a fresh token
func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, "", err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, "", unavailable(err)
	}
	if existing > 0 {
		return nil, "", ErrUserAlreadyExists
	}

	hashed, err := models.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	role := jwt.RoleUser
	if s.adminEmails[email] {
		role = jwt.RoleAdmin
	}

	user := models.User{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: hashed,
		Role:     string(role),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, "", unavailable(err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, role)
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// Login authenticates a user and returns a JWT token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, "", err
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", unavailable(err)
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return nil, "", unavailable(err)
	}
	user.LastLogin = &now

	token, err := s.tokens.GenerateToken(user.ID, user.Email, jwt.ParseRole(user.Role))
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "user not found")
		}
		return nil, unavailable(err)
	}
	return &user, nil
}

func unavailable(err error) error {
	return apperrors.Wrap(apperrors.ErrDependencyUnavailable, err, "user store unavailable")
}
