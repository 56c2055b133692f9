package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/solidguard/internal/pkg/errors"
	"github.com/xxxsen/solidguard/internal/pkg/jwt"
	"github.com/xxxsen/solidguard/internal/pkg/password"
)

const operatorSubject = "operator"

// AuthService exchanges the operator password for a bearer token.
type AuthService struct {
	passwordHash string
	jwtSecret    []byte
	jwtTTL       time.Duration
}

func NewAuthService(passwordHash string, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{passwordHash: strings.TrimSpace(passwordHash), jwtSecret: secret, jwtTTL: ttl}
}

// Enabled reports whether API requests must carry a token.
func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

func (s *AuthService) Login(ctx context.Context, plainPassword string) (string, error) {
	if !s.Enabled() || s.passwordHash == "" {
		return "", appErr.ErrUnauthorized
	}
	if err := password.Compare(s.passwordHash, plainPassword); err != nil {
		logutil.GetLogger(ctx).Warn("operator login rejected")
		return "", appErr.ErrUnauthorized
	}
	return s.IssueToken(operatorSubject)
}

func (s *AuthService) IssueToken(subject string) (string, error) {
	if subject == "" {
		subject = operatorSubject
	}
	token, err := jwt.GenerateToken(subject, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return "", err
	}
	logutil.GetLogger(context.Background()).Info("token issued", zap.String("subject", subject), zap.Duration("ttl", s.jwtTTL))
	return token, nil
}
