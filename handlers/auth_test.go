package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tablebook-backend/models"

	"golang.org/x/crypto/bcrypt"
)

func TestRegisterSuccess(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	body := map[string]string{
		"email":    "newuser@test.com",
		"password": "password123",
		"name":     "New User",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected token in response")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected refresh_token in response")
	}
	user := resp["user"].(map[string]interface{})
	if user["email"] != "newuser@test.com" {
		t.Errorf("expected email newuser@test.com, got %v", user["email"])
	}
	if user["role"] != "customer" {
		t.Errorf("expected role customer, got %v", user["role"])
	}
	if _, leaked := user["password"]; leaked {
		t.Error("password must not be serialized")
	}

	var stored int64
	db.Model(&models.RefreshToken{}).Count(&stored)
	if stored != 1 {
		t.Errorf("expected 1 stored refresh token, got %d", stored)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	seedTestUser(db, "existing@test.com", "customer")

	body := map[string]string{
		"email":    "existing@test.com",
		"password": "password123",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", body))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
	if resp := parseResponse(w); resp["error"] != "Email already registered" {
		t.Errorf("expected 'Email already registered', got %v", resp["error"])
	}
}

func TestRegisterValidation(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing email", map[string]string{"password": "password123"}, "email is required"},
		{"bad email", map[string]string{"email": "nope", "password": "password123"}, "email must be a valid email address"},
		{"short password", map[string]string{"email": "a@test.com", "password": "short"}, "password must be at least 8 characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", tc.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			if resp := parseResponse(w); resp["error"] != tc.want {
				t.Errorf("expected %q, got %v", tc.want, resp["error"])
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	seedTestUser(db, "login@test.com", "customer")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", map[string]string{
		"email":    "login@test.com",
		"password": "password123",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(w)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected token in response")
	}
	if resp["expires_in"] != float64(7200) {
		t.Errorf("expected expires_in 7200, got %v", resp["expires_in"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	seedTestUser(db, "wrong@test.com", "customer")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", map[string]string{
		"email":    "wrong@test.com",
		"password": "wrongpassword",
	}))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", map[string]string{
		"email":    "ghost@test.com",
		"password": "password123",
	}))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestLoginBlockedUser(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	user, _ := seedTestUser(db, "blocked@test.com", "customer")
	db.Model(&user).Update("is_blocked", true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", map[string]string{
		"email":    "blocked@test.com",
		"password": "password123",
	}))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}

func login(t *testing.T, router http.Handler, email string) map[string]interface{} {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", map[string]string{
		"email":    email,
		"password": "password123",
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	return parseResponse(w)
}

func TestRefreshTokenRotates(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)
	seedTestUser(db, "refresh@test.com", "customer")

	session := login(t, router, "refresh@test.com")
	refresh := session["refresh_token"].(string)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/refresh", map[string]string{"refresh_token": refresh}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if next := parseResponse(w)["refresh_token"]; next == refresh || next == "" {
		t.Error("expected a new refresh token")
	}

	// The old token is now revoked.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/refresh", map[string]string{"refresh_token": refresh}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected reused refresh token to be rejected, got %d", w.Code)
	}
}

func TestRefreshTokenUnknown(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/refresh", map[string]string{"refresh_token": "bogus"}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)
	seedTestUser(db, "logout@test.com", "customer")

	session := login(t, router, "logout@test.com")
	refresh := session["refresh_token"].(string)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("POST", "/api/auth/logout", map[string]string{"refresh_token": refresh}, session["token"].(string)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/refresh", map[string]string{"refresh_token": refresh}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", w.Code)
	}
}

func TestGetProfile(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	_, token := seedTestUser(db, "profile@test.com", "customer")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/auth/profile", nil, token))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := parseResponse(w); resp["email"] != "profile@test.com" {
		t.Errorf("expected email profile@test.com, got %v", resp["email"])
	}
}

func TestGetProfileUnauthorized(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("GET", "/api/auth/profile", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	user, token := seedTestUser(db, "update@test.com", "customer")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", "/api/auth/profile", map[string]string{"name": "Ada Diner"}, token))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var stored models.User
	db.First(&stored, "id = ?", user.ID)
	if stored.Name != "Ada Diner" {
		t.Errorf("expected name to be updated, got %q", stored.Name)
	}
	if stored.Phone != user.Phone {
		t.Errorf("phone should be unchanged, got %q", stored.Phone)
	}
}

func TestChangePassword(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	user, token := seedTestUser(db, "pw@test.com", "customer")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", "/api/auth/password", map[string]string{
		"old_password": "wrong-password",
		"new_password": "newpassword123",
	}, token))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for wrong old password, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", "/api/auth/password", map[string]string{
		"old_password": "password123",
		"new_password": "newpassword123",
	}, token))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var stored models.User
	db.First(&stored, "id = ?", user.ID)
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("newpassword123")) != nil {
		t.Error("password hash was not updated")
	}
}

func TestListUsersAdminOnly(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	_, adminToken := seedTestUser(db, "admin@test.com", "admin")
	_, customerToken := seedTestUser(db, "diner@test.com", "customer")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/users", nil, customerToken))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for customer, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/users?role=customer", nil, adminToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(w)
	if resp["total"] != float64(1) {
		t.Errorf("expected 1 customer, got %v", resp["total"])
	}
}

func TestUpdateUserBlocks(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	_, adminToken := seedTestUser(db, "admin@test.com", "admin")
	diner, _ := seedTestUser(db, "diner@test.com", "customer")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", fmt.Sprintf("/api/admin/users/%s", diner.ID), map[string]bool{"is_blocked": true}, adminToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var stored models.User
	db.First(&stored, "id = ?", diner.ID)
	if !stored.IsBlocked {
		t.Error("expected user to be blocked")
	}
}

func TestUpdateUserCannotBlockSelf(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	admin, adminToken := seedTestUser(db, "admin@test.com", "admin")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", fmt.Sprintf("/api/admin/users/%s", admin.ID), map[string]bool{"is_blocked": true}, adminToken))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
