package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/solidguard/internal/pkg/errors"
	"github.com/xxxsen/solidguard/internal/pkg/jwt"
	"github.com/xxxsen/solidguard/internal/pkg/password"
)

func TestAuthServiceLogin(t *testing.T) {
	hash, err := password.Hash("s3cret")
	require.NoError(t, err)
	secret := []byte("signing-key")
	svc := NewAuthService(hash, secret, time.Hour)
	require.True(t, svc.Enabled())

	token, err := svc.Login(context.Background(), "s3cret")
	require.NoError(t, err)
	claims, err := jwt.ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "operator", claims.Subject)

	_, err = svc.Login(context.Background(), "wrong")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}

func TestAuthServiceWithoutPassword(t *testing.T) {
	svc := NewAuthService("", []byte("k"), time.Hour)
	_, err := svc.Login(context.Background(), "anything")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)

	token, err := svc.IssueToken("ci")
	require.NoError(t, err)
	claims, err := jwt.ParseToken(token, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, "ci", claims.Subject)
}

func TestAuthServiceDisabled(t *testing.T) {
	svc := NewAuthService("", nil, time.Hour)
	require.False(t, svc.Enabled())
	_, err := svc.IssueToken("")
	require.Error(t, err)
}
