package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkov/approvalflow/internal/auth"
	"github.com/dmarkov/approvalflow/pkg/models"
	"github.com/dmarkov/approvalflow/pkg/service"
	"github.com/dmarkov/approvalflow/pkg/storage"
)

func TestAuthService(t *testing.T) {
	newService := func() *auth.Service {
		return auth.NewService(storage.NewMockStore(), "test-secret")
	}

	t.Run("RegisterHashesPassword", func(t *testing.T) {
		svc := newService()
		user, err := svc.Register("a@example.com", "Alice", "hunter2", models.AssigneeRole)
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.NotEqual(t, "hunter2", user.PasswordHash)
		assert.Equal(t, models.AssigneeRole, user.Role)
	})

	t.Run("DuplicateEmailConflicts", func(t *testing.T) {
		svc := newService()
		_, err := svc.Register("a@example.com", "Alice", "hunter2", models.AssigneeRole)
		require.NoError(t, err)
		_, err = svc.Register("a@example.com", "Also Alice", "other", models.ApproverRole)
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("InvalidRoleRejected", func(t *testing.T) {
		svc := newService()
		_, err := svc.Register("a@example.com", "Alice", "hunter2", "superuser")
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("LoginRoundTrip", func(t *testing.T) {
		svc := newService()
		registered, err := svc.Register("a@example.com", "Alice", "hunter2", models.AdminRole)
		require.NoError(t, err)

		token, err := svc.Login("a@example.com", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "bearer", token.TokenType)
		assert.NotEmpty(t, token.AccessToken)
		assert.Equal(t, registered.ID, token.User.ID)

		resolved, err := svc.Authenticate(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, resolved.ID)
		assert.Equal(t, models.AdminRole, resolved.Role)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		svc := newService()
		_, err := svc.Register("a@example.com", "Alice", "hunter2", models.AdminRole)
		require.NoError(t, err)
		_, err = svc.Login("a@example.com", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		svc := newService()
		_, err := svc.Login("nobody@example.com", "pw")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		svc := newService()
		_, err := svc.Authenticate("not-a-jwt")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("TokenSignedWithOtherSecret", func(t *testing.T) {
		svcA := auth.NewService(storage.NewMockStore(), "secret-a")
		store := storage.NewMockStore()
		svcB := auth.NewService(store, "secret-b")

		_, err := svcA.Register("a@example.com", "Alice", "hunter2", models.AdminRole)
		require.NoError(t, err)
		// register in A's store, but token must not validate against B
		tokenA, err := svcA.Login("a@example.com", "hunter2")
		require.NoError(t, err)
		_, err = svcB.Authenticate(tokenA.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}
