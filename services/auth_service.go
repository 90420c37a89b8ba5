package services

import (
	"fmt"
	"time"

	"pingr/auth"
	"pingr/domain/chat"
	apperrors "pingr/errors"
	"pingr/repositories"
)

type IAuthService interface {
	Register(email, fullName, password string) (Token, chat.User, error)
	Login(email, password string) (Token, chat.User, error)
}

type AuthService struct {
	users         repositories.IUserRepository
	tokenDuration time.Duration
}

type Token string

func NewAuthService(users repositories.IUserRepository, tokenDuration time.Duration) IAuthService {
	return &AuthService{users: users, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(email, fullName, password string) (Token, chat.User, error) {
	req := auth.RegisterRequest{Email: email, FullName: fullName, Password: password}

	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(req); err != nil {
		return "", chat.User{}, err
	}

	// Hashing happens here so the repository never sees a plain password.
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", chat.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.CreateUser(email, fullName, hashed)
	if err != nil {
		return "", chat.User{}, err // propagates ErrUserAlreadyExists
	}

	token, err := auth.GenerateToken(user.ID, s.tokenDuration)
	if err != nil {
		return "", chat.User{}, apperrors.ErrTokenGeneration
	}
	return Token(token), user, nil
}

func (s *AuthService) Login(email, password string) (Token, chat.User, error) {
	record, err := s.users.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration.
		return "", chat.User{}, apperrors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, record.PasswordHash)
	if err != nil || !match {
		return "", chat.User{}, apperrors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(record.ID, s.tokenDuration)
	if err != nil {
		return "", chat.User{}, apperrors.ErrTokenGeneration
	}

	user := chat.User{
		ID:        record.ID,
		Email:     record.Email,
		FullName:  record.FullName,
		CreatedAt: record.CreatedAt,
	}
	return Token(token), user, nil
}
