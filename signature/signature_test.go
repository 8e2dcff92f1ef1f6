package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/xraph/smsrelay/signature"
)

func TestSignKnownVector(t *testing.T) {
	payload := []byte(`{"phoneNumber":"+447700900001","message":"hi"}`)
	secret := "smsk_testsecret123"
	timestamp := int64(1700000000)

	got := signature.Sign(payload, secret, timestamp)

	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	expected := "v1=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
	if len(got) != 67 {
		t.Errorf("expected signature length 67, got %d", len(got))
	}
}

func TestVerifyTampered(t *testing.T) {
	payload := []byte(`{"message":"original"}`)
	sig := signature.Sign(payload, "s", 1700000002)

	if signature.Verify([]byte(`{"message":"changed"}`), "s", 1700000002, sig) {
		t.Error("Verify() returned true for tampered payload")
	}
	if signature.Verify(payload, "other", 1700000002, sig) {
		t.Error("Verify() returned true for wrong secret")
	}
	if signature.Verify(payload, "s", 1700000003, sig) {
		t.Error("Verify() returned true for wrong timestamp")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	body := []byte(`{"message":"hi"}`)
	now := time.Unix(1700000000, 0)

	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	signature.SignRequest(req, body, "secret", now)

	if err := signature.VerifyRequest(req.Header, body, "secret", time.Minute, now.Add(30*time.Second)); err != nil {
		t.Fatalf("VerifyRequest() = %v", err)
	}
}

func TestVerifyRequestErrors(t *testing.T) {
	body := []byte(`{}`)
	now := time.Unix(1700000000, 0)

	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	if err := signature.VerifyRequest(req.Header, body, "secret", 0, now); !errors.Is(err, signature.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}

	signature.SignRequest(req, body, "secret", now)

	if err := signature.VerifyRequest(req.Header, body, "secret", time.Minute, now.Add(time.Hour)); !errors.Is(err, signature.ErrTimestampExpired) {
		t.Fatalf("expected ErrTimestampExpired, got %v", err)
	}
	if err := signature.VerifyRequest(req.Header, body, "wrong", 0, now); !errors.Is(err, signature.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}
