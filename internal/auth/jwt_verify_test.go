package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testIssuer = "https://test-keycloak.com/realms/test"

func TestVerifier_ParseAndVerifyToken_Success(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockJWKS(publicKey))

	tokenString := signToken(t, privateKey, jwt.MapClaims{
		"sub":   "user-123",
		"iss":   testIssuer,
		"email": "asha@example.com",
		"exp":   time.Now().Add(1 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"realm_access": map[string]interface{}{
			"roles": []interface{}{"PATIENT", "offline_access"},
		},
	})

	principal, err := verifier.ParseAndVerifyToken(tokenString)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if principal.UserID != "user-123" {
		t.Errorf("Expected UserID 'user-123', got '%s'", principal.UserID)
	}
	if principal.Email != "asha@example.com" {
		t.Errorf("Expected email claim, got '%s'", principal.Email)
	}
	if len(principal.Roles) != 2 || principal.Roles[0] != "PATIENT" {
		t.Errorf("Expected realm roles, got %v", principal.Roles)
	}
}

func TestVerifier_ParseAndVerifyToken_EmptyToken(t *testing.T) {
	verifier := NewVerifier(Config{Issuer: testIssuer}, nil)

	principal, err := verifier.ParseAndVerifyToken("  ")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got: %v", err)
	}
	if principal != nil {
		t.Error("Expected nil principal")
	}
}

func TestVerifier_ParseAndVerifyToken_Rejections(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	otherKey, _ := generateTestKeyPair(t)

	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "user-123",
			"iss": testIssuer,
			"aud": "reminders",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	testCases := []struct {
		name     string
		key      *rsa.PrivateKey
		kid      string
		mutate   func(jwt.MapClaims)
		wantErr  error
		contains string
	}{
		{"wrong issuer", privateKey, "test-key-id", func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }, ErrInvalidIssuer, "invalid issuer"},
		{"expired", privateKey, "test-key-id", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }, ErrInvalidToken, "expired"},
		{"no expiry", privateKey, "test-key-id", func(c jwt.MapClaims) { delete(c, "exp") }, ErrInvalidToken, "no expiry"},
		{"missing sub", privateKey, "test-key-id", func(c jwt.MapClaims) { delete(c, "sub") }, ErrMissingSub, "sub"},
		{"wrong audience", privateKey, "test-key-id", func(c jwt.MapClaims) { c["aud"] = "billing" }, ErrInvalidAudience, "audience"},
		{"no kid", privateKey, "", func(jwt.MapClaims) {}, ErrInvalidToken, "kid"},
		{"unknown kid", privateKey, "rotated-key", func(jwt.MapClaims) {}, ErrInvalidToken, "key not found"},
		{"wrong signature", otherKey, "test-key-id", func(jwt.MapClaims) {}, ErrInvalidToken, "verification"},
	}

	verifier := NewVerifier(Config{Issuer: testIssuer, Audience: "reminders"}, newMockJWKS(publicKey))

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			claims := valid()
			tc.mutate(claims)

			token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
			if tc.kid != "" {
				token.Header["kid"] = tc.kid
			}
			tokenString, err := token.SignedString(tc.key)
			if err != nil {
				t.Fatalf("Failed to sign token: %v", err)
			}

			principal, err := verifier.ParseAndVerifyToken(tokenString)
			if principal != nil {
				t.Error("Expected nil principal")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got: %v", tc.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Every rejection should wrap ErrInvalidToken, got: %v", err)
			}
			if err != nil && !strings.Contains(strings.ToLower(err.Error()), tc.contains) {
				t.Errorf("Expected diagnostic containing %q, got %q", tc.contains, err.Error())
			}
		})
	}
}

func TestVerifier_ParseAndVerifyToken_RejectsHMAC(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockJWKS(publicKey))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "test-key-id"
	tokenString, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := verifier.ParseAndVerifyToken(tokenString); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for HS256, got: %v", err)
	}
}

func TestVerifier_ParseAndVerifyToken_NoRoles(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	verifier := NewVerifier(Config{Issuer: testIssuer}, newMockJWKS(publicKey))

	tokenString := signToken(t, privateKey, jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	})

	principal, err := verifier.ParseAndVerifyToken(tokenString)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(principal.Roles) != 0 {
		t.Errorf("Expected 0 roles, got %d", len(principal.Roles))
	}
}

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

func newMockJWKS(publicKey *rsa.PublicKey) *JWKS {
	return NewStaticJWKS(map[string]*rsa.PublicKey{"test-key-id": publicKey})
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key-id"
	tokenString, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}
