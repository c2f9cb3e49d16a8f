// internal/directory/keycloak.go
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/errors"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/models"
)

// KeycloakDirectory reads the reviewer roster from a Keycloak realm. Stage
// pools come from realm role membership; which realm role backs which
// reviewer role is configurable, defaulting to the engine role names.
type KeycloakDirectory struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	realmRoles   map[models.ReviewerRole]string
	reviewerRole map[string]models.ReviewerRole
	httpClient   *http.Client
	logger       logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// keycloakUser mirrors the fields of Keycloak's user representation we care
// about. Phone numbers live in the free-form attribute map.
type keycloakUser struct {
	ID         string              `json:"id"`
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	FirstName  string              `json:"firstName"`
	LastName   string              `json:"lastName"`
	Enabled    bool                `json:"enabled"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

type keycloakRole struct {
	Name string `json:"name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewKeycloakDirectory(cfg config.AuthConfig, log logger.Logger) *KeycloakDirectory {
	d := &KeycloakDirectory{
		baseURL:      strings.TrimSuffix(cfg.Keycloak.URL, "/"),
		realm:        cfg.Keycloak.Realm,
		clientID:     cfg.Keycloak.ClientID,
		clientSecret: cfg.Keycloak.ClientSecret,
		realmRoles:   make(map[models.ReviewerRole]string),
		reviewerRole: make(map[string]models.ReviewerRole),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       log.WithFields(map[string]interface{}{"component": "keycloak-directory"}),
	}

	for realmRole, reviewerRole := range cfg.Keycloak.RoleMapping {
		d.realmRoles[models.ReviewerRole(reviewerRole)] = realmRole
		d.reviewerRole[realmRole] = models.ReviewerRole(reviewerRole)
	}
	for _, role := range []models.ReviewerRole{
		models.RoleConstituencyOfficer,
		models.RoleRegionalOfficer,
		models.RoleNationalOfficer,
		models.RoleProgramAdmin,
	} {
		if _, ok := d.realmRoles[role]; !ok {
			d.realmRoles[role] = string(role)
			d.reviewerRole[string(role)] = role
		}
	}
	return d
}

func (d *KeycloakDirectory) PoolFor(ctx context.Context, stage models.Stage) ([]models.Reviewer, error) {
	role, ok := RoleForStage(stage)
	if !ok {
		return nil, nil
	}

	membersURL := fmt.Sprintf("%s/admin/realms/%s/roles/%s/users",
		d.baseURL, d.realm, url.PathEscape(d.realmRoles[role]))

	var users []keycloakUser
	if err := d.getJSON(ctx, membersURL, &users); err != nil {
		return nil, err
	}

	pool := make([]models.Reviewer, 0, len(users))
	for _, user := range users {
		if !user.Enabled {
			continue
		}
		pool = append(pool, toReviewer(user, role))
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool, nil
}

func (d *KeycloakDirectory) Get(ctx context.Context, id string) (*models.Reviewer, error) {
	userURL := fmt.Sprintf("%s/admin/realms/%s/users/%s", d.baseURL, d.realm, url.PathEscape(id))

	var user keycloakUser
	if err := d.getJSON(ctx, userURL, &user); err != nil {
		return nil, err
	}

	rolesURL := fmt.Sprintf("%s/admin/realms/%s/users/%s/role-mappings/realm",
		d.baseURL, d.realm, url.PathEscape(id))

	var realmRoles []keycloakRole
	if err := d.getJSON(ctx, rolesURL, &realmRoles); err != nil {
		return nil, err
	}

	// The first realm role with an engine mapping wins; a user without any
	// mapped role comes back role-less and fails authorization downstream.
	var role models.ReviewerRole
	for _, realmRole := range realmRoles {
		if mapped, ok := d.reviewerRole[realmRole.Name]; ok {
			role = mapped
			break
		}
	}

	reviewer := toReviewer(user, role)
	return &reviewer, nil
}

// getAccessToken fetches a token via the client credentials flow, caching it
// until expiry.
func (d *KeycloakDirectory) getAccessToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tokenExpiry.After(time.Now()) && d.accessToken != "" {
		return d.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", d.baseURL, d.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", d.clientID)
	data.Set("client_secret", d.clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", &errors.StandardError{
			Code:      "KEYCLOAK_AUTH_ERROR",
			Message:   "Failed to create token request",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", &errors.StandardError{
			Code:      "KEYCLOAK_AUTH_ERROR",
			Message:   "Failed to authenticate with Keycloak",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &errors.StandardError{
			Code:      "KEYCLOAK_AUTH_ERROR",
			Message:   fmt.Sprintf("Keycloak token request failed with status %d", resp.StatusCode),
			Details:   string(body),
			Retryable: isTransientHTTPError(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", &errors.StandardError{
			Code:      "KEYCLOAK_AUTH_ERROR",
			Message:   "Failed to decode token response",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}

	d.accessToken = token.AccessToken
	d.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return d.accessToken, nil
}

func (d *KeycloakDirectory) getJSON(ctx context.Context, requestURL string, out interface{}) error {
	token, err := d.getAccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return &errors.StandardError{
			Code:      "KEYCLOAK_API_ERROR",
			Message:   "Failed to create Keycloak request",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &errors.StandardError{
			Code:      "KEYCLOAK_API_ERROR",
			Message:   "Failed to reach Keycloak",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("reviewer", requestURL)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &errors.StandardError{
			Code:      "KEYCLOAK_API_ERROR",
			Message:   fmt.Sprintf("Keycloak API error with status %d", resp.StatusCode),
			Details:   string(body),
			Retryable: isTransientHTTPError(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &errors.StandardError{
			Code:      "KEYCLOAK_API_ERROR",
			Message:   "Failed to decode Keycloak response",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
	}
	return nil
}

func toReviewer(user keycloakUser, role models.ReviewerRole) models.Reviewer {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	var phone string
	if numbers := user.Attributes["phoneNumber"]; len(numbers) > 0 {
		phone = numbers[0]
	}
	return models.Reviewer{
		ID:     user.ID,
		Name:   name,
		Email:  user.Email,
		Phone:  phone,
		Role:   role,
		Active: user.Enabled,
	}
}

func isTransientHTTPError(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
