package handlers

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"mentorhub/libs/auth"
)

func TestPasswordHashing(t *testing.T) {
	password := "pass-12345"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestHS256SignerRoundTrip(t *testing.T) {
	signer := NewHS256Signer("test-secret")
	token, err := signer.Sign(auth.Claims{
		Sub:  "user-1",
		Role: "member",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if signer.JWKS() != nil {
		t.Fatal("hs256 signer should not expose a jwks")
	}
}

func TestRotatingSigner(t *testing.T) {
	keyA, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyB, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	kidA := keyIDFromPublicKey(&keyA.PublicKey)
	kidB := keyIDFromPublicKey(&keyB.PublicKey)

	signer, err := NewRotatingRS256Signer(map[string]*rsa.PrivateKey{kidA: keyA, kidB: keyB}, kidA)
	if err != nil {
		t.Fatalf("NewRotatingRS256Signer failed: %v", err)
	}

	claims := auth.Claims{
		Sub:  "user-2",
		Role: "mentor",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}
	tokenA, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("Sign with key A failed: %v", err)
	}

	if err := signer.SetActiveKid(kidB); err != nil {
		t.Fatalf("SetActiveKid failed: %v", err)
	}
	tokenB, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("Sign with key B failed: %v", err)
	}

	// Tokens minted before the rotation still verify.
	for _, token := range []string{tokenA, tokenB} {
		got, err := signer.Verify(token)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if got.Sub != "user-2" || got.Role != "mentor" {
			t.Fatalf("unexpected claims: %+v", got)
		}
	}

	if err := signer.SetActiveKid("nope"); err == nil {
		t.Fatal("SetActiveKid should reject unknown kid")
	}
	if len(signer.JWKS()) != 2 {
		t.Fatalf("expected 2 jwks entries, got %d", len(signer.JWKS()))
	}
}
