package testutil

import (
	"crypto/rsa"
	"testing"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/auth"
)

// TestIssuer is the realm issuer test tokens are minted for.
const TestIssuer = "https://test-keycloak.com/realms/test"

// CreateTestVerifier returns a verifier that trusts tokens signed with the
// returned private key.
func CreateTestVerifier(t *testing.T) (*auth.Verifier, *rsa.PrivateKey) {
	t.Helper()

	privateKey, publicKey := GenerateTestKeyPair(t)
	jwks := auth.NewStaticJWKS(map[string]*rsa.PublicKey{TestKeyID: publicKey})

	return auth.NewVerifier(auth.Config{Issuer: TestIssuer}, jwks), privateKey
}
