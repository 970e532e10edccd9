package identity

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	user := &User{
		Username: "peperone",
		Email:    "peperone@example.com",
	}

	ctx := WithContext(context.Background(), user)

	retrieved, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, user, retrieved)
}

func TestFromContext(t *testing.T) {
	t.Run("should return false when no user in context", func(t *testing.T) {
		user, ok := FromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, user)
	})

	t.Run("should return false when context has wrong type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), userCtxKey, "not-a-user")
		user, ok := FromContext(ctx)
		assert.False(t, ok)
		assert.Nil(t, user)
	})
}

func TestGetClaims(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		wantOK   bool
	}{
		{
			name: "should return claims when present in context",
			setupCtx: func() context.Context {
				claims := &SessionClaims{
					RegisteredClaims: jwt.RegisteredClaims{
						Subject: "user123",
					},
					Roles: []string{RoleAdmin},
				}
				return WithClaimsContext(context.Background(), claims)
			},
			wantOK: true,
		},
		{
			name: "should return false when no claims in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			wantOK: false,
		},
		{
			name: "should return false when context has wrong type",
			setupCtx: func() context.Context {
				return context.WithValue(context.Background(), claimsCtxKey, "not-a-claims-object")
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupCtx()
			gotClaims, gotOK := GetClaims(ctx)

			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.NotNil(t, gotClaims)
				assert.Equal(t, "user123", gotClaims.Subject())
				assert.Equal(t, "user123", gotClaims.UserID())
			} else {
				assert.Nil(t, gotClaims)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		role     string
		want     bool
	}{
		{
			name: "should return true when session carries the role",
			setupCtx: func() context.Context {
				claims := &SessionClaims{
					Roles: []string{RoleUser, RoleAdmin},
				}
				return WithClaimsContext(context.Background(), claims)
			},
			role: RoleAdmin,
			want: true,
		},
		{
			name: "should return false when session lacks the role",
			setupCtx: func() context.Context {
				claims := &SessionClaims{
					Roles: []string{RoleUser},
				}
				return WithClaimsContext(context.Background(), claims)
			},
			role: RoleAdmin,
			want: false,
		},
		{
			name: "should return false when no claims in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
			role: RoleUser,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupCtx()
			assert.Equal(t, tt.want, HasRole(ctx, tt.role))
		})
	}
}

func TestClaimsContextPropagation(t *testing.T) {
	// Simulate how the middleware enriches the request context and how a
	// handler downstream reads it back.
	originalClaims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "middleware-user",
		},
		Email:         "middleware-user@example.com",
		EmailVerified: "true",
		Roles:         []string{RoleAdmin},
	}

	requestCtx := context.Background()
	middlewareCtx := WithClaimsContext(requestCtx, originalClaims)

	handlerFunction := func(ctx context.Context) (bool, bool) {
		claims, hasClaimsOK := GetClaims(ctx)
		isAdmin := HasRole(ctx, RoleAdmin)

		if hasClaimsOK {
			assert.Equal(t, "middleware-user", claims.Subject())
			assert.True(t, claims.IsEmailVerified())
		}

		return hasClaimsOK, isAdmin
	}

	hasClaimsOK, isAdmin := handlerFunction(middlewareCtx)
	assert.True(t, hasClaimsOK, "handler should retrieve claims from enriched context")
	assert.True(t, isAdmin, "handler should see the admin role")

	hasOriginalClaims, originalIsAdmin := handlerFunction(requestCtx)
	assert.False(t, hasOriginalClaims, "original context should not have claims")
	assert.False(t, originalIsAdmin, "original context should not grant roles")
}
