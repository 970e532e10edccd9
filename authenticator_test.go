package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIdentityProvider implements identity.IdentityProvider.
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(identity.Identity), args.Error(1)
}

func testAuthConfig() *identity.SimpleConfig {
	return &identity.SimpleConfig{
		SigningKey:      string(signingKey),
		TokenExpiration: 60,
		Issuer:          "test-issuer",
		Audience:        []string{"test-audience"},
	}
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login mints a session token", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, "peperone@example.com", "secret-password1").
			Return(testIdentity(), nil)

		sink := new(MockActivitySink)
		sink.On("Record", ctx, mock.MatchedBy(func(e identity.ActivityEvent) bool {
			return e.EventType == identity.ActivityEventLoginSuccess
		})).Return(nil)

		auther := identity.NewAuthenticator(provider, testAuthConfig()).
			WithLogger(&testLogger{}).
			WithActivitySink(sink)

		token, expiresAt, err := auther.Login(ctx, "peperone@example.com", "secret-password1")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.WithinDuration(t, time.Now().Add(60*time.Minute), expiresAt, 5*time.Second)

		claims, err := auther.TokenService().Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "peperone", claims.Username())
		assert.Equal(t, []string{identity.RoleUser}, claims.UserRoles(), "default role provider attaches the user role")

		sink.AssertExpectations(t)
	})

	t.Run("credential failure emits a login failure event", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, "peperone@example.com", "wrong").
			Return(nil, identity.ErrMismatchedHashAndPassword)

		sink := new(MockActivitySink)
		sink.On("Record", ctx, mock.MatchedBy(func(e identity.ActivityEvent) bool {
			return e.EventType == identity.ActivityEventLoginFailure
		})).Return(nil)

		auther := identity.NewAuthenticator(provider, testAuthConfig()).
			WithLogger(&testLogger{}).
			WithActivitySink(sink)

		token, expiresAt, err := auther.Login(ctx, "peperone@example.com", "wrong")
		assert.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)
		assert.Empty(t, token)
		assert.True(t, expiresAt.IsZero())

		sink.AssertExpectations(t)
	})

	t.Run("custom role provider controls session roles", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, "peperone@example.com", "secret-password1").
			Return(testIdentity(), nil)

		auther := identity.NewAuthenticator(provider, testAuthConfig()).
			WithLogger(&testLogger{}).
			WithRoleProvider(identity.StaticRoleProvider{Roles: []string{identity.RoleAdmin}})

		token, _, err := auther.Login(ctx, "peperone@example.com", "secret-password1")
		require.NoError(t, err)

		claims, err := auther.TokenService().Validate(token)
		require.NoError(t, err)
		assert.Equal(t, []string{identity.RoleAdmin}, claims.UserRoles())
	})

	t.Run("nil identity from provider", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		provider.On("VerifyIdentity", ctx, "peperone@example.com", "secret-password1").
			Return(nil, nil)

		auther := identity.NewAuthenticator(provider, testAuthConfig()).WithLogger(&testLogger{})

		token, _, err := auther.Login(ctx, "peperone@example.com", "secret-password1")
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
		assert.Empty(t, token)
	})
}

func TestAuther_SessionFromToken(t *testing.T) {
	provider := new(MockIdentityProvider)

	auther := identity.NewAuthenticator(provider, testAuthConfig()).WithLogger(&testLogger{})

	t.Run("round trip", func(t *testing.T) {
		token, _, err := auther.TokenService().Generate(testIdentity(), []string{identity.RoleUser})
		require.NoError(t, err)

		session, err := auther.SessionFromToken(token)
		require.NoError(t, err)

		assert.Equal(t, "c0f1d00d-0000-4000-8000-000000000001", session.GetUserID())
		assert.Equal(t, "test-issuer", session.GetIssuer())
		assert.Equal(t, "peperone@example.com", session.GetData()["email"])
		assert.Equal(t, "true", session.GetData()["email_verified"])
	})

	t.Run("invalid token", func(t *testing.T) {
		session, err := auther.SessionFromToken("garbage")
		assert.ErrorIs(t, err, identity.ErrTokenMalformed)
		assert.Nil(t, session)
	})

	t.Run("custom validator takes precedence", func(t *testing.T) {
		external := identity.NewTokenService([]byte("external-key"), 60, "external-issuer", nil, &testLogger{})

		token, _, err := external.Generate(testIdentity(), nil)
		require.NoError(t, err)

		// The auther's own service cannot verify it...
		_, err = auther.SessionFromToken(token)
		assert.Error(t, err)

		// ...but the configured validator can.
		withValidator := identity.NewAuthenticator(provider, testAuthConfig()).
			WithLogger(&testLogger{}).
			WithTokenValidator(external)

		session, err := withValidator.SessionFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, "c0f1d00d-0000-4000-8000-000000000001", session.GetUserID())
	})
}

func TestAuther_IdentityFromSession(t *testing.T) {
	ctx := context.Background()

	provider := new(MockIdentityProvider)
	provider.On("FindIdentityByIdentifier", ctx, "user123").Return(testIdentity(), nil)

	auther := identity.NewAuthenticator(provider, testAuthConfig()).WithLogger(&testLogger{})

	session := &identity.SessionObject{UserID: "user123"}

	ident, err := auther.IdentityFromSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "peperone", ident.Username())

	provider.AssertExpectations(t)
}
