package handlers_test

import (
	"net/http"
	"testing"

	"github.com/hugh/testforge/internal/api/dto"
	"github.com/hugh/testforge/internal/api/handlers"
	"github.com/hugh/testforge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminHandler(t *testing.T) {
	env := newTestEnv(t)
	bob, bobToken := env.ts.AddUser(t, "bob")

	rr := env.do(t, http.MethodGet, "/api/admin/users", nil, env.ts.Token)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	require.NoError(t, env.ts.DB.Model(env.ts.User).Update("is_admin", true).Error)

	rr = env.do(t, http.MethodGet, "/api/admin/users", nil, env.ts.Token)
	testutil.AssertStatus(t, rr, http.StatusOK)
	users, total := listOf[dto.UserDTO](t, rr.Body.Bytes())
	require.Equal(t, 2, total)
	assert.Equal(t, "alice", users[0].Username)
	assert.True(t, users[0].IsAdmin)

	t.Run("cannot deactivate self", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/admin/users/"+env.ts.User.ID.String()+"/active",
			map[string]bool{"is_active": false}, env.ts.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("is_active is required", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/admin/users/"+bob.ID.String()+"/active", map[string]string{}, env.ts.Token)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("unknown user", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/admin/users/not-a-uuid/active", map[string]bool{"is_active": false}, env.ts.Token)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("deactivate ends sessions", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/admin/users/"+bob.ID.String()+"/active",
			map[string]bool{"is_active": false}, env.ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)
		var user dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		assert.False(t, user.IsActive)

		rr = env.do(t, http.MethodGet, "/auth/me", nil, bobToken)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("reactivate", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/admin/users/"+bob.ID.String()+"/active",
			map[string]bool{"is_active": true}, env.ts.Token)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "bob", "password": testutil.TestPassword}, "")
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", nil, "")
	testutil.AssertStatus(t, rr, http.StatusOK)
	var health handlers.HealthResponse
	testutil.ParseJSONResponse(t, rr, &health)
	assert.Equal(t, "healthy", health.Status)

	rr = env.do(t, http.MethodGet, "/ready", nil, "")
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.ParseJSONResponse(t, rr, &health)
	assert.Equal(t, "healthy", health.Services["database"])
	assert.NotContains(t, health.Services, "redis")

	sqlDB, err := env.ts.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rr = env.do(t, http.MethodGet, "/ready", nil, "")
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}
