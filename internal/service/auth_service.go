package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"jewelry-backend/internal/apperror"
)

// bcryptCost is the cost factor for hashing the configured admin password.
const bcryptCost = 10

// AdminRole is the role claim issued to the administrator.
const AdminRole = "admin"

// Claims is the JWT payload bound to the authenticated identity.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult carries the issued bearer token and its expiry.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService checks the single configured administrator credential and
// issues bearer tokens bound to the identity claim.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

type authService struct {
	username     string
	passwordHash []byte
	jwtSecret    string
	expiry       time.Duration
	logger       *zap.Logger
}

// NewAuthService hashes the configured password up front so the plaintext is
// not kept around, and compares with bcrypt at login time.
func NewAuthService(username, password, jwtSecret string, expiry time.Duration, logger *zap.Logger) (AuthService, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("admin credentials are not configured")
	}
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret is not configured")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	return &authService{
		username:     username,
		passwordHash: hash,
		jwtSecret:    jwtSecret,
		expiry:       expiry,
		logger:       logger,
	}, nil
}

// Login verifies the credentials and returns a signed HS256 token carrying
// the admin identity and role, expiring after the configured duration.
func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username != s.username || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		s.logger.Debug("Rejected login attempt", zap.String("username", username))
		return nil, apperror.New(apperror.KindAuth, "invalid username or password")
	}

	expiresAt := time.Now().Add(s.expiry)
	claims := &Claims{
		UserID: s.username,
		Role:   AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("Administrator logged in", zap.String("username", s.username))
	return &LoginResult{Token: signed, ExpiresAt: expiresAt}, nil
}
