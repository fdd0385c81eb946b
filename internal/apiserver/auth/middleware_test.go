package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		expected bool
	}{
		// 公开路由
		{"register", "POST", "/api/register", true},
		{"verify email", "POST", "/api/verify-email", true},
		{"login", "POST", "/api/login", true},
		{"upload avatar", "PUT", "/api/upload-avatar", true},
		{"update user", "PUT", "/api/update-user", true},
		{"forgot password", "PUT", "/api/forgot-password", true},
		{"verify otp", "PUT", "/api/verify-forgot-password-otp", true},
		{"reset password", "PUT", "/api/reset-password", true},
		{"refresh token", "PUT", "/api/refresh-token", true},
		{"user details", "POST", "/api/user-details", true},
		{"health", "GET", "/health", true},
		{"metrics", "GET", "/metrics", true},
		{"cors preflight", "OPTIONS", "/api/logout", true},

		// 需要认证的路由
		{"logout needs token", "GET", "/api/logout", false},
		{"wrong method not public", "GET", "/api/register", false},
		{"unknown api route", "GET", "/api/admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isPublicRoute(tt.method, tt.path)
			if got != tt.expected {
				t.Errorf("isPublicRoute(%q, %q) = %v, want %v", tt.method, tt.path, got, tt.expected)
			}
		})
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	cfg := testConfig()
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("protected handler must not run without token")
	}))

	r := httptest.NewRequest("GET", "/api/logout", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMiddlewareRejectsRefreshTokenAsAccess(t *testing.T) {
	cfg := testConfig()
	refresh, _ := GenerateRefreshToken(cfg, "usr-1")

	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("refresh token must not pass access middleware")
	}))

	r := httptest.NewRequest("GET", "/api/logout", nil)
	r.Header.Set("Authorization", "Bearer "+refresh)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMiddlewareAcceptsBearerHeader(t *testing.T) {
	cfg := testConfig()
	access, _ := GenerateAccessToken(cfg, "usr-1", "a@x.com", "user")

	var got *AuthUser
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuthUser(r.Context())
	}))

	r := httptest.NewRequest("GET", "/api/logout", nil)
	r.Header.Set("Authorization", "Bearer "+access)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got == nil || got.ID != "usr-1" || got.Email != "a@x.com" {
		t.Errorf("auth user = %+v, want usr-1/a@x.com", got)
	}
}

func TestMiddlewareAcceptsAccessCookie(t *testing.T) {
	cfg := testConfig()
	access, _ := GenerateAccessToken(cfg, "usr-2", "b@x.com", "user")

	var got *AuthUser
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuthUser(r.Context())
	}))

	r := httptest.NewRequest("GET", "/api/logout", nil)
	r.AddCookie(&http.Cookie{Name: accessCookieName, Value: access})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got == nil || got.ID != "usr-2" {
		t.Errorf("auth user = %+v, want usr-2", got)
	}
}
