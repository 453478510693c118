package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "test-secret"
	testIssuer = "clubhub.identity"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestParseValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":    "user-1",
		"iss":    testIssuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{"activities:register", "notifications:read"},
	})

	claims, err := Parse(token, Config{Secret: testSecret, Issuer: testIssuer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1 got %s", claims.Subject)
	}
	if !claims.HasScope(ScopeActivitiesRegister) {
		t.Fatal("expected activities:register scope")
	}
	if claims.HasScope(ScopeActivitiesManage) {
		t.Fatal("did not expect activities:manage scope")
	}
}

func TestParseSpaceSeparatedScopes(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":    "user-1",
		"iss":    testIssuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": "activities:manage activities:register",
	})

	claims, err := Parse(token, Config{Secret: testSecret, Issuer: testIssuer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claims.HasScope(ScopeActivitiesManage) || !claims.HasScope(ScopeActivitiesRegister) {
		t.Fatalf("missing scopes: %v", claims.Scopes)
	}
}

func TestParseRejections(t *testing.T) {
	cfg := Config{Secret: testSecret, Issuer: testIssuer}

	t.Run("empty", func(t *testing.T) {
		if _, err := Parse("", cfg); err != ErrMissingToken {
			t.Fatalf("expected ErrMissingToken got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-1",
			"iss": testIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		if _, err := Parse(token, Config{Secret: "other", Issuer: testIssuer}); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-1",
			"iss": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		if _, err := Parse(token, cfg); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-1",
			"iss": testIssuer,
			"exp": time.Now().Add(-time.Minute).Unix(),
		})
		if _, err := Parse(token, cfg); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"iss": testIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		if _, err := Parse(token, cfg); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestMiddleware(t *testing.T) {
	cfg := Config{Secret: testSecret, Issuer: testIssuer}
	var gotSubject string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in context")
		}
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusOK)
	})
	wrapped := NewMiddleware(cfg, func(r *http.Request) bool {
		return r.URL.Path == "/healthz"
	}).Wrap(inner)

	t.Run("valid bearer", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-42",
			"iss": testIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
		}
		if gotSubject != "user-42" {
			t.Fatalf("expected subject user-42 got %s", gotSubject)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", rr.Code)
		}
	})

	t.Run("skipper bypasses auth", func(t *testing.T) {
		skipped := NewMiddleware(cfg, func(r *http.Request) bool {
			return r.URL.Path == "/healthz"
		}).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()
		skipped.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rr.Code)
		}
	})
}
