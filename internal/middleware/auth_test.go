package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"requisition/internal/identity"
	"requisition/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type mapResolver map[string]identity.Identity

func (r mapResolver) ResolveIdentity(_ context.Context, token string) (identity.Identity, error) {
	if id, ok := r[token]; ok {
		return id, nil
	}
	return identity.Identity{}, errors.New("unknown token")
}

func TestTokenFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		cookie  string
		header  string
		want    string
		wantErr bool
	}{
		{name: "cookie", cookie: "from-cookie", want: "from-cookie"},
		{name: "cookie wins over header", cookie: "from-cookie", header: "Bearer from-header", want: "from-cookie"},
		{name: "bearer header", header: "Bearer from-header", want: "from-header"},
		{name: "missing", wantErr: true},
		{name: "wrong scheme", header: "Basic abc", wantErr: true},
		{name: "empty bearer", header: "Bearer ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				c.Request.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}

			got, err := TokenFromRequest(c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TokenFromRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	admin := identity.Identity{ID: uuid.New(), Email: "admin@example.com", Role: model.RoleAdmin}
	clerk := identity.Identity{ID: uuid.New(), Email: "clerk@example.com", Role: model.RoleStaff, Designation: "Clerk"}
	resolver := mapResolver{"admin": admin, "clerk": clerk}

	router := gin.New()
	echo := func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, id.Email)
	}
	router.GET("/any", RequireIdentity(resolver), echo)
	router.GET("/admin", RequireIdentity(resolver, model.RoleAdmin), echo)

	tests := []struct {
		name  string
		path  string
		token string
		code  int
		body  string
	}{
		{"staff on open route", "/any", "clerk", http.StatusOK, "clerk@example.com"},
		{"admin on admin route", "/admin", "admin", http.StatusOK, "admin@example.com"},
		{"staff on admin route", "/admin", "clerk", http.StatusForbidden, ""},
		{"unknown token", "/any", "nobody", http.StatusUnauthorized, ""},
		{"no token", "/any", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestSetTokenCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)

	SetTokenCookies(c, "jwt", time.Hour)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if ck := cookies[0]; ck.Name != "access_token" || ck.Value != "jwt" || !ck.HttpOnly || ck.MaxAge != 3600 {
		t.Errorf("cookie = %+v", ck)
	}
}
