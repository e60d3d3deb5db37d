package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ecoshare/internal/common"
	"ecoshare/internal/dbmysql"
)

var (
	ErrHandleTaken        = errors.New("handle already exists")
	ErrInvalidCredentials = errors.New("invalid handle or password")
	ErrUserNotFound       = errors.New("user not found")
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateToken(user common.AuthenticatedUser) (string, error)
}

type UserService interface {
	RegisterUser(ctx context.Context, handle, email, password, displayName string) (common.AuthenticatedUser, string, error)
	LoginUser(ctx context.Context, handle, password string) (common.AuthenticatedUser, string, error)
	GetProfile(ctx context.Context, userID string) (common.AuthenticatedUser, error)
}

type userService struct {
	userRepo UserRepository
	tokens   TokenIssuer
	log      *zap.Logger
}

func NewUserService(userRepo UserRepository, tokens TokenIssuer, log *zap.Logger) UserService {
	return &userService{userRepo: userRepo, tokens: tokens, log: log}
}

func toAuthenticatedUser(u *dbmysql.User) (common.AuthenticatedUser, error) {
	return common.NewAuthenticatedUser(u.UserID, u.Handle, u.DisplayName, u.AvatarURL)
}

func (s *userService) RegisterUser(ctx context.Context, handle, email, password, displayName string) (common.AuthenticatedUser, string, error) {
	handle = strings.TrimSpace(handle)
	//validating handle
	if err := common.ValidateHandle(handle); err != nil {
		return common.AuthenticatedUser{}, "", err
	}
	if err := common.ValidateEmail(email); err != nil {
		return common.AuthenticatedUser{}, "", err
	}
	if err := common.ValidatePassword(password); err != nil {
		return common.AuthenticatedUser{}, "", err
	}

	//duplicates check
	exists, err := s.userRepo.CheckUserExists(ctx, handle)
	if err != nil {
		return common.AuthenticatedUser{}, "", err
	}
	if exists {
		return common.AuthenticatedUser{}, "", ErrHandleTaken
	}

	hashed, err := common.HashPassword(password)
	if err != nil {
		return common.AuthenticatedUser{}, "", err
	}

	record := &dbmysql.User{
		UserID:       uuid.NewString(),
		Handle:       handle,
		DisplayName:  strings.TrimSpace(displayName),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hashed,
		Status:       "active",
	}
	if record.DisplayName == "" {
		record.DisplayName = handle
	}
	if err := s.userRepo.CreateUser(ctx, record); err != nil {
		return common.AuthenticatedUser{}, "", err
	}
	s.log.Info("user_registered", zap.String("user_id", record.UserID), zap.String("handle", handle))

	return s.session(record)
}

func (s *userService) LoginUser(ctx context.Context, handle, password string) (common.AuthenticatedUser, string, error) {
	if handle == "" || password == "" {
		return common.AuthenticatedUser{}, "", ErrInvalidCredentials
	}

	record, err := s.userRepo.GetUserByHandle(ctx, handle)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.AuthenticatedUser{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return common.AuthenticatedUser{}, "", err
	}

	if err := common.CheckPassword(password, record.PasswordHash); err != nil {
		return common.AuthenticatedUser{}, "", ErrInvalidCredentials
	}

	return s.session(record)
}

func (s *userService) session(record *dbmysql.User) (common.AuthenticatedUser, string, error) {
	user, err := toAuthenticatedUser(record)
	if err != nil {
		return common.AuthenticatedUser{}, "", err
	}
	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return common.AuthenticatedUser{}, "", err
	}
	return user, token, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (common.AuthenticatedUser, error) {
	record, err := s.userRepo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.AuthenticatedUser{}, ErrUserNotFound
	}
	if err != nil {
		return common.AuthenticatedUser{}, err
	}
	return toAuthenticatedUser(record)
}
