package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"resumeBuilder/internal/errcode"
)

func testKeyPair(t *testing.T) ([]byte, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	return privatePEM, publicPEM
}

func newTestService(t *testing.T) *AuthService {
	t.Helper()
	privatePEM, publicPEM := testKeyPair(t)
	svc, err := NewAuthService(privatePEM, publicPEM, time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func TestResolveIdentityRoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken(42)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	userID, err := svc.ResolveIdentity(token)
	if err != nil {
		t.Fatalf("resolve identity: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestResolveIdentityRejectsExpiredToken(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateToken(7)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ResolveIdentity(token); !errors.Is(err, errcode.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestResolveIdentityRejectsForeignKey(t *testing.T) {
	issuer := newTestService(t)
	verifier := newTestService(t)

	token, err := issuer.GenerateToken(1)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := verifier.ResolveIdentity(token); !errors.Is(err, errcode.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := verifier.ResolveIdentity(""); !errors.Is(err, errcode.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for empty token, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPasswordHash("correct horse", hash) {
		t.Fatal("expected password to match")
	}
	if CheckPasswordHash("battery staple", hash) {
		t.Fatal("expected mismatch")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected empty password to be rejected")
	}
}
