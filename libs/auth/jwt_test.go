package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyHS256(t *testing.T) {
	claims := Claims{
		Sub:  "user-1",
		Role: "mentor",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}

	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := ParseAndVerifyHS256(token, "secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if parsed.Sub != "user-1" || parsed.Role != "mentor" {
		t.Fatalf("unexpected claims: %+v", parsed)
	}
}

func TestVerifyHS256RejectsWrongSecret(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Exp: time.Now().Add(time.Hour).Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "other"); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestVerifyHS256RejectsExpired(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Exp: time.Now().Add(-time.Minute).Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "secret"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseJWTNoVerifyRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b", "a.b.c.d", "!!!.???.***"} {
		if _, err := ParseJWTNoVerify(token); err == nil {
			t.Fatalf("expected error for %q", token)
		}
	}
}

func TestParseHeader(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Exp: time.Now().Add(time.Hour).Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	header, err := ParseHeader(token)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if header.Alg != "HS256" {
		t.Fatalf("alg = %q, want HS256", header.Alg)
	}
}
