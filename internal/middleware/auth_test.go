package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestKeyfunc_AcceptsHMAC(t *testing.T) {
	auth := NewJWTAuth("secret")

	key, err := auth.Keyfunc(jwt.New(jwt.SigningMethodHS256))
	if err != nil {
		t.Fatalf("Expected HMAC token accepted, got %v", err)
	}
	if string(key.([]byte)) != "secret" {
		t.Errorf("Expected shared secret, got %v", key)
	}
}

func TestKeyfunc_RejectsOtherMethods(t *testing.T) {
	auth := NewJWTAuth("secret")

	for _, method := range []jwt.SigningMethod{jwt.SigningMethodRS256, jwt.SigningMethodNone} {
		if _, err := auth.Keyfunc(jwt.New(method)); !errors.Is(err, jwt.ErrSignatureInvalid) {
			t.Errorf("Method %s: expected ErrSignatureInvalid, got %v", method.Alg(), err)
		}
	}
}

func TestMiddleware_RejectsUnsignedToken(t *testing.T) {
	auth := NewJWTAuth("secret")

	claims := jwt.MapClaims{"user_id": "u-1", "role": "admin"}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Failed to build token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	called := false
	auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if called {
		t.Error("Expected handler not reached")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
