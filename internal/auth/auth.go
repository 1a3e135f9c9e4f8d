// Package auth registers users and issues the bearer tokens that protect
// the /v1 API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minNicknameLength = 2
	maxNicknameLength = 50
	minPasswordLength = 4
	maxPasswordLength = 100

	TokenType = "bearer"
)

type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewService(st store.Store, secret string, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    log.Named("auth"),
	}
}

// Register creates an active user and signs them in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	nickname := strings.TrimSpace(req.Nickname)
	if err := validateNickname(nickname); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(req.Password); n < minPasswordLength || n > maxPasswordLength {
		return nil, apperr.Validation("password must be between %d and %d characters", minPasswordLength, maxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Nickname:     nickname,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateUser(ctx, user)
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, nicknameExists(nickname)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("nickname", nickname))
	return s.respond(user)
}

// Login checks the credentials of an active user.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	nickname := strings.TrimSpace(req.Nickname)

	var user *models.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.GetUserByNickname(ctx, nickname)
		return err
	})
	if store.IsNotFound(err) {
		return nil, apperr.Unauthorized(apperr.CodeUserNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized(apperr.CodeInvalidPassword, "invalid password")
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized(apperr.CodeInactiveUser, "user is inactive")
	}

	return s.respond(user)
}

func (s *Service) CheckNickname(ctx context.Context, req models.CheckNicknameRequest) (*models.CheckNicknameResponse, error) {
	nickname := strings.TrimSpace(req.Nickname)
	if err := validateNickname(nickname); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetUserByNickname(ctx, nickname)
		return err
	})
	switch {
	case store.IsNotFound(err):
		return &models.CheckNicknameResponse{Available: true, Message: "nickname is available"}, nil
	case err != nil:
		return nil, err
	default:
		return &models.CheckNicknameResponse{Available: false, Message: "nickname is already taken"}, nil
	}
}

// Me returns the active user behind a token subject.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user *models.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		return err
	})
	if store.IsNotFound(err) {
		return nil, apperr.Unauthorized(apperr.CodeUserNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized(apperr.CodeInactiveUser, "user is inactive")
	}
	return user, nil
}

// IssueToken signs an HS256 token whose subject is the user id.
func (s *Service) IssueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken verifies a token and returns its subject.
func (s *Service) ParseToken(raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized(apperr.CodeUnauthorized, "invalid or expired token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized(apperr.CodeUnauthorized, "invalid token subject")
	}
	return id, nil
}

func (s *Service) respond(user *models.User) (*models.AuthResponse, error) {
	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{
		User:        *user,
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   int64(s.ttl / time.Second),
	}, nil
}

func validateNickname(nickname string) error {
	if n := utf8.RuneCountInString(nickname); n < minNicknameLength || n > maxNicknameLength {
		return apperr.Validation("nickname must be between %d and %d characters", minNicknameLength, maxNicknameLength)
	}
	return nil
}

func nicknameExists(nickname string) error {
	return apperr.New(apperr.KindValidation, apperr.CodeNicknameExists, fmt.Sprintf("nickname %q is already taken", nickname))
}
