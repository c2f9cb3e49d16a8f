// internal/directory/keycloak_test.go
package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func createKeycloakServer(t *testing.T, tokenRequests *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/agriculture/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenRequests != nil {
			tokenRequests.Add(1)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"expires_in":   300,
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/admin/realms/agriculture/roles/county-review-officer/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"id":        "user-2",
				"username":  "jwanjiru",
				"email":     "jwanjiru@agriculture.go.ke",
				"firstName": "Jane",
				"lastName":  "Wanjiru",
				"enabled":   true,
				"attributes": map[string][]string{
					"phoneNumber": {"+254700000001"},
				},
			},
			{
				"id":        "user-1",
				"username":  "komondi",
				"email":     "komondi@agriculture.go.ke",
				"firstName": "Kevin",
				"lastName":  "Omondi",
				"enabled":   true,
			},
			{
				"id":       "user-3",
				"username": "disabled",
				"enabled":  false,
			},
		})
	})
	mux.HandleFunc("/admin/realms/agriculture/users/user-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":        "user-1",
			"username":  "komondi",
			"email":     "komondi@agriculture.go.ke",
			"firstName": "Kevin",
			"lastName":  "Omondi",
			"enabled":   true,
		})
	})
	mux.HandleFunc("/admin/realms/agriculture/users/user-1/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"name": "offline_access"},
			{"name": "county-review-officer"},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func createKeycloakDirectory(t *testing.T, serverURL string) *KeycloakDirectory {
	t.Helper()
	cfg := config.AuthConfig{}
	cfg.Keycloak.URL = serverURL
	cfg.Keycloak.Realm = "agriculture"
	cfg.Keycloak.ClientID = "review-engine"
	cfg.Keycloak.ClientSecret = "secret"
	cfg.Keycloak.RoleMapping = map[string]string{
		"county-review-officer": "constituency_officer",
	}
	return NewKeycloakDirectory(cfg, logger.NewTestLogger(t))
}

// ==========================
// Keycloak Directory Tests
// ==========================

func TestKeycloakDirectory_PoolForMapsRoleMembers(t *testing.T) {
	server := createKeycloakServer(t, nil)
	dir := createKeycloakDirectory(t, server.URL)

	pool, err := dir.PoolFor(context.Background(), models.StageConstituency)

	require.NoError(t, err)
	require.Len(t, pool, 2, "disabled members stay out of the pool")
	assert.Equal(t, "user-1", pool[0].ID)
	assert.Equal(t, "Kevin Omondi", pool[0].Name)
	assert.Equal(t, models.RoleConstituencyOfficer, pool[0].Role)
	assert.Equal(t, "user-2", pool[1].ID)
	assert.Equal(t, "+254700000001", pool[1].Phone)
	assert.True(t, pool[1].Active)
}

func TestKeycloakDirectory_GetResolvesMappedRole(t *testing.T) {
	server := createKeycloakServer(t, nil)
	dir := createKeycloakDirectory(t, server.URL)

	reviewer, err := dir.Get(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "user-1", reviewer.ID)
	assert.Equal(t, models.RoleConstituencyOfficer, reviewer.Role)
	assert.Equal(t, "komondi@agriculture.go.ke", reviewer.Email)
}

func TestKeycloakDirectory_GetUnknownUser(t *testing.T) {
	server := createKeycloakServer(t, nil)
	dir := createKeycloakDirectory(t, server.URL)

	_, err := dir.Get(context.Background(), "user-404")

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestKeycloakDirectory_TokenIsCachedAcrossCalls(t *testing.T) {
	var tokenRequests atomic.Int32
	server := createKeycloakServer(t, &tokenRequests)
	dir := createKeycloakDirectory(t, server.URL)

	_, err := dir.PoolFor(context.Background(), models.StageConstituency)
	require.NoError(t, err)
	_, err = dir.PoolFor(context.Background(), models.StageConstituency)
	require.NoError(t, err)

	assert.Equal(t, int32(1), tokenRequests.Load())
}

func TestKeycloakDirectory_UnmappedRealmRolesIgnored(t *testing.T) {
	cfg := config.AuthConfig{}
	cfg.Keycloak.URL = "http://localhost"
	dir := NewKeycloakDirectory(cfg, logger.NewNoOpLogger())

	// Engine role names map to themselves when no mapping is configured.
	assert.Equal(t, "constituency_officer", dir.realmRoles[models.RoleConstituencyOfficer])
	assert.Equal(t, models.RoleProgramAdmin, dir.reviewerRole["program_admin"])
}
