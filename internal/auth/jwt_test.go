package auth

import (
	"context"
	"testing"
	"time"

	"cart-service/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHSProvider_RoundTrip(t *testing.T) {
	p := NewHSProvider("secret", "storefront-auth", "storefront")
	uid := uuid.New()

	tok, exp, err := p.SignAccess(context.Background(), uid, service.RoleAdmin, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := p.ParseAndValidateAccess(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	assert.Equal(t, service.Identity{UserID: uid, Role: service.RoleAdmin}, claims.Identity())
}

func TestHSProvider_Rejects(t *testing.T) {
	p := NewHSProvider("secret", "storefront-auth", "storefront")
	uid := uuid.New()
	ctx := context.Background()

	t.Run("wrong secret", func(t *testing.T) {
		other := NewHSProvider("other", "storefront-auth", "storefront")
		tok, _, err := other.SignAccess(ctx, uid, service.RoleCustomer, time.Minute)
		require.NoError(t, err)
		_, err = p.ParseAndValidateAccess(ctx, tok)
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewHSProvider("secret", "storefront-auth", "backoffice")
		tok, _, err := other.SignAccess(ctx, uid, service.RoleCustomer, time.Minute)
		require.NoError(t, err)
		_, err = p.ParseAndValidateAccess(ctx, tok)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewHSProvider("secret", "storefront-auth", "storefront")
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, _, err := old.SignAccess(ctx, uid, service.RoleCustomer, time.Minute)
		require.NoError(t, err)
		_, err = p.ParseAndValidateAccess(ctx, tok)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := p.ParseAndValidateAccess(ctx, "not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("nil subject", func(t *testing.T) {
		tok, _, err := p.SignAccess(ctx, uuid.Nil, service.RoleCustomer, time.Minute)
		require.NoError(t, err)
		_, err = p.ParseAndValidateAccess(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestHSProvider_DefaultRole(t *testing.T) {
	p := NewHSProvider("secret", "iss", "aud")
	tok, _, err := p.SignAccess(context.Background(), uuid.New(), "", time.Minute)
	require.NoError(t, err)
	claims, err := p.ParseAndValidateAccess(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, service.RoleCustomer, claims.Role)
}
