package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(sub uuid.UUID, role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "pat@example.com",
		Name:  "Pat Example",
		Role:  role,
	}
}

func TestJWTMiddleware_MissingHeaderPassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen Identity
	handler := func(c echo.Context) error {
		seen = Caller(c)
		return c.String(http.StatusOK, "ok")
	}

	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(handler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen.IsZero() {
		t.Errorf("expected no identity, got %+v", seen)
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			}

			err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(handler)(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", httpErr.Code)
			}
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	sub := uuid.New()
	token := createTestToken(t, validClaims(sub, "doctor"), testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen Identity
	handler := func(c echo.Context) error {
		seen = Caller(c)
		return c.String(http.StatusOK, "ok")
	}

	if err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.ID != sub {
		t.Errorf("expected subject %s, got %s", sub, seen.ID)
	}
	if seen.Role != RoleDoctor {
		t.Errorf("expected role doctor, got %s", seen.Role)
	}
	if seen.Email != "pat@example.com" || seen.Name != "Pat Example" {
		t.Errorf("unexpected profile claims: %+v", seen)
	}
	if c.Get("user_id") != sub.String() {
		t.Errorf("expected user_id on context, got %v", c.Get("user_id"))
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims(uuid.New(), "patient")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := createTestToken(t, claims, testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error { return nil })(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, validClaims(uuid.New(), "patient"), []byte("some-other-key-entirely-different"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error { return nil })(c)
	if err == nil {
		t.Fatal("expected error for token signed with another key")
	}
}

func TestJWTMiddleware_UnknownRoleRejected(t *testing.T) {
	token := createTestToken(t, validClaims(uuid.New(), "superuser"), testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error { return nil })(c)
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestJWTMiddleware_AnonymousClaim(t *testing.T) {
	claims := validClaims(uuid.New(), "")
	claims.IsAnonymous = true
	token := createTestToken(t, claims, testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())

	var seen Identity
	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error {
		seen = Caller(c)
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen.Anonymous || seen.IsAuthenticated() {
		t.Errorf("expected anonymous unauthenticated identity, got %+v", seen)
	}
	if seen.Role != RolePatient {
		t.Errorf("expected default role patient, got %s", seen.Role)
	}
}

func TestDevAuthMiddleware_Default(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var seen Identity
	err := DevAuthMiddleware(JWTConfig{})(func(c echo.Context) error {
		seen = Caller(c)
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.ID != DevPatientID || seen.Role != RolePatient {
		t.Errorf("expected dev patient, got %+v", seen)
	}
}

func TestDevAuthMiddleware_HeaderOverride(t *testing.T) {
	uid := uuid.New()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, uid.String()+":doctor")
	c := e.NewContext(req, httptest.NewRecorder())

	var seen Identity
	err := DevAuthMiddleware(JWTConfig{})(func(c echo.Context) error {
		seen = Caller(c)
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.ID != uid || seen.Role != RoleDoctor {
		t.Errorf("expected %s as doctor, got %+v", uid, seen)
	}
}

func TestDevAuthMiddleware_BadHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, "not-a-uuid")
	c := e.NewContext(req, httptest.NewRecorder())

	err := DevAuthMiddleware(JWTConfig{})(func(c echo.Context) error { return nil })(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestParseRSAPublicKey_BadModulus(t *testing.T) {
	if _, err := parseRSAPublicKey(JWKSKey{Kty: "RSA", N: "!!!", E: "AQAB"}); err == nil {
		t.Error("expected error for malformed modulus")
	}
}
