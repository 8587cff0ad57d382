package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"labelpress/internal/db"
)

func setupDB(t *testing.T) {
	t.Helper()
	if err := db.Init(db.Config{Path: filepath.Join(t.TempDir(), "test.db")}); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
}

func authRouter(t *testing.T) (*gin.Engine, *AuthMiddleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth, err := NewAuthMiddleware()
	if err != nil {
		t.Fatalf("new auth middleware: %v", err)
	}

	r := gin.New()
	g := r.Group("/api/auth")
	g.POST("/setup", auth.SetupHandler)
	g.POST("/login", auth.LoginHandler)
	g.GET("/status", auth.StatusHandler)

	v1 := r.Group("/api/v1")
	v1.Use(auth.RequireAuth())
	v1.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	return r, auth
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", cookieName)
	return nil
}

func TestSetupIssuesCookieAndGuardsRepeat(t *testing.T) {
	setupDB(t)
	r, _ := authRouter(t)

	// Fresh install: status reports setup required.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	var status StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Authenticated || !status.SetupRequired {
		t.Fatalf("fresh status = %+v", status)
	}

	// Login before setup is refused.
	if w := postJSON(t, r, "/api/auth/login", gin.H{"password": "hunter22"}, nil); w.Code != http.StatusForbidden {
		t.Fatalf("pre-setup login status = %d", w.Code)
	}

	w = postJSON(t, r, "/api/auth/setup", gin.H{"password": "hunter22"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("setup status = %d, body = %s", w.Code, w.Body.String())
	}
	authCookie(t, w)

	// Second setup attempt is rejected.
	if w := postJSON(t, r, "/api/auth/setup", gin.H{"password": "other-pass"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("repeat setup status = %d", w.Code)
	}
}

func TestLoginCookieAdmitsProtectedRoutes(t *testing.T) {
	setupDB(t)
	r, _ := authRouter(t)

	if w := postJSON(t, r, "/api/auth/setup", gin.H{"password": "hunter22"}, nil); w.Code != http.StatusOK {
		t.Fatalf("setup status = %d", w.Code)
	}

	// No cookie: protected route refuses.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}

	// Wrong password: no cookie issued.
	if w := postJSON(t, r, "/api/auth/login", gin.H{"password": "wrong"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", w.Code)
	}

	w = postJSON(t, r, "/api/auth/login", gin.H{"password": "hunter22"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	cookie := authCookie(t, w)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, body = %s", w.Code, w.Body.String())
	}

	// A forged token signed with a different secret is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie.Value + "x"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token status = %d, want 401", w.Code)
	}
}

func TestSecretPersistsAcrossRestarts(t *testing.T) {
	setupDB(t)
	r, _ := authRouter(t)

	w := postJSON(t, r, "/api/auth/setup", gin.H{"password": "hunter22"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("setup status = %d", w.Code)
	}
	cookie := authCookie(t, w)

	// A middleware built fresh against the same database must accept the
	// cookie: the secret comes from settings, not process memory.
	r2, _ := authRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	r2.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("restart status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	setupDB(t)
	r, auth := authRouter(t)
	r.POST("/api/auth/password", auth.RequireAuth(), auth.ChangePasswordHandler)

	w := postJSON(t, r, "/api/auth/setup", gin.H{"password": "hunter22"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("setup status = %d", w.Code)
	}
	cookie := authCookie(t, w)

	w = postJSON(t, r, "/api/auth/password", gin.H{
		"current_password": "wrong",
		"new_password":     "betterpass",
	}, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password status = %d", w.Code)
	}

	w = postJSON(t, r, "/api/auth/password", gin.H{
		"current_password": "hunter22",
		"new_password":     "betterpass",
	}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("change password status = %d, body = %s", w.Code, w.Body.String())
	}

	if w := postJSON(t, r, "/api/auth/login", gin.H{"password": "hunter22"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("old password still accepted: %d", w.Code)
	}
	if w := postJSON(t, r, "/api/auth/login", gin.H{"password": "betterpass"}, nil); w.Code != http.StatusOK {
		t.Fatalf("new password rejected: %d", w.Code)
	}
}
