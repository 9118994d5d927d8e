package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/levelup-api/internal/dto"
	"github.com/noah-isme/levelup-api/internal/models"
	"github.com/noah-isme/levelup-api/internal/repository"
	"github.com/noah-isme/levelup-api/pkg/rut"
	"github.com/noah-isme/levelup-api/pkg/token"
)

const maxUsernameTries = 1000

// TokenConfig holds the JWT signing settings.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AuthService handles accounts, credentials and tokens.
type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error)
	CreateUser(ctx context.Context, req dto.RegisterRequest, actor ActivityActor) (dto.UserResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error)
	Refresh(ctx context.Context, req dto.RefreshRequest) (dto.AuthResponse, error)
	Profile(ctx context.Context, userID uint) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest) (dto.UserResponse, error)
	ChangePassword(ctx context.Context, userID uint, req dto.PasswordChangeRequest) error
}

type authService struct {
	users     repository.UserRepository
	validator *validator.Validate
	tokens    TokenConfig
	activity  ActivityRecorder
	logger    zerolog.Logger
	now       func() time.Time
	cost      int
}

// NewAuthService constructs the auth service.
func NewAuthService(users repository.UserRepository, validate *validator.Validate, tokens TokenConfig, activity ActivityRecorder, logger zerolog.Logger) AuthService {
	if tokens.AccessTTL <= 0 {
		tokens.AccessTTL = 15 * time.Minute
	}
	if tokens.RefreshTTL <= 0 {
		tokens.RefreshTTL = 7 * 24 * time.Hour
	}
	return &authService{
		users:     users,
		validator: validate,
		tokens:    tokens,
		activity:  activity,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
		cost:      bcrypt.DefaultCost,
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error) {
	if role := strings.ToLower(strings.TrimSpace(req.Role)); role != "" && role != models.RoleStudent {
		return dto.AuthResponse{}, fieldError("role", "only students can self-register")
	}
	req.Role = models.RoleStudent

	user, err := s.createUser(ctx, req)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    user.ID,
		ActorRole:  user.Role,
		Action:     "user.registered",
		EntityType: "user",
		EntityID:   uintPtr(user.ID),
	})

	return s.issue(user)
}

func (s *authService) CreateUser(ctx context.Context, req dto.RegisterRequest, actor ActivityActor) (dto.UserResponse, error) {
	if strings.TrimSpace(req.Role) == "" {
		req.Role = models.RoleStudent
	}

	user, err := s.createUser(ctx, req)
	if err != nil {
		return dto.UserResponse{}, err
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "user.created",
		EntityType: "user",
		EntityID:   uintPtr(user.ID),
		Metadata:   map[string]interface{}{"role": user.Role},
	})

	return dto.NewUserResponse(user), nil
}

func (s *authService) createUser(ctx context.Context, req dto.RegisterRequest) (models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.User{}, err
	}

	email := normalizeEmail(req.Email)
	exists, err := s.users.EmailExists(ctx, email, 0)
	if err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, ErrDuplicateEmail
	}

	normalizedRUT, err := rut.Normalize(req.RUT)
	if err != nil {
		return models.User{}, fieldError("rut", err.Error())
	}
	taken, err := s.users.RUTExists(ctx, normalizedRUT)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, ErrDuplicateRUT
	}

	if err := validatePassword(req.Password, req.PasswordConfirm); err != nil {
		return models.User{}, err
	}

	username, err := s.uniqueUsername(ctx, email)
	if err != nil {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		RUT:          &normalizedRUT,
		Role:         strings.ToLower(strings.TrimSpace(req.Role)),
		PasswordHash: string(hash),
	}
	if err := s.users.CreateWithProfiles(ctx, &user); err != nil {
		return models.User{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user created")
	return user, nil
}

// uniqueUsername derives a username from the email local part, adding a numeric suffix on collision.
func (s *authService) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}
	if base == "" {
		base = "usuario"
	}

	candidate := base
	for i := 1; i <= maxUsernameTries; i++ {
		exists, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", fmt.Errorf("could not derive a free username for %q", base)
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) Refresh(ctx context.Context, req dto.RefreshRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	claims, err := token.Parse(req.RefreshToken, s.tokens.RefreshSecret, token.TypeRefresh)
	if err != nil {
		return dto.AuthResponse{}, ErrInvalidToken
	}
	id, err := claims.UserID()
	if err != nil {
		return dto.AuthResponse{}, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidToken
		}
		return dto.AuthResponse{}, err
	}

	return s.issue(user)
}

func (s *authService) Profile(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID uint, req dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := updateUserIdentity(ctx, s.users, userID, req.FirstName, req.LastName, req.Email)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, req dto.PasswordChangeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return fieldError("old_password", "current password is incorrect")
	}
	if err := validatePassword(req.NewPassword, req.NewPasswordConfirm); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.Update(ctx, userID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return err
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    userID,
		ActorRole:  user.Role,
		Action:     "user.password_changed",
		EntityType: "user",
		EntityID:   uintPtr(userID),
	})
	return nil
}

func (s *authService) issue(user models.User) (dto.AuthResponse, error) {
	now := s.now()
	access, err := token.Sign(user.ID, user.Role, token.TypeAccess, s.tokens.AccessSecret, now, s.tokens.AccessTTL)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	refresh, err := token.Sign(user.ID, user.Role, token.TypeRefresh, s.tokens.RefreshSecret, now, s.tokens.RefreshTTL)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	return dto.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL.Seconds()),
		User:         dto.NewUserResponse(user),
	}, nil
}

// updateUserIdentity edits names and email, keeping the email unique. The RUT never changes here.
func updateUserIdentity(ctx context.Context, users repository.UserRepository, userID uint, firstName, lastName, email string) (models.User, error) {
	if _, err := users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	normalized := normalizeEmail(email)
	exists, err := users.EmailExists(ctx, normalized, userID)
	if err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, ErrDuplicateEmail
	}

	return users.Update(ctx, userID, map[string]interface{}{
		"first_name": strings.TrimSpace(firstName),
		"last_name":  strings.TrimSpace(lastName),
		"email":      normalized,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
