package webhook_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/smsrelay/gateway/webhook"
	"github.com/xraph/smsrelay/signature"
)

func TestSend_SignedAndAccepted(t *testing.T) {
	var verifyErr error

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verifyErr = signature.VerifyRequest(r.Header, body, "shared", time.Minute, time.Now())
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted","messageId":"abc-123"}`))
	}))
	defer srv.Close()

	c := webhook.New(srv.URL, "shared", time.Second)
	id, err := c.Send(context.Background(), "+905551111111", "hello")
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if id != "abc-123" {
		t.Fatalf("message id = %q", id)
	}
	if verifyErr != nil {
		t.Fatalf("request signature did not verify: %v", verifyErr)
	}
}

func TestSend_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	}))
	defer srv.Close()

	c := webhook.New(srv.URL, "", time.Second)
	err := c.SendSMS(context.Background(), "+1", "hello")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSend_MissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"Accepted"}`))
	}))
	defer srv.Close()

	c := webhook.New(srv.URL, "", time.Second)
	if _, err := c.Send(context.Background(), "+1", "hello"); err == nil {
		t.Fatal("expected error for missing messageId")
	}
}
