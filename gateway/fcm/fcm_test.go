package fcm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/smsrelay/dispatch"
	"github.com/xraph/smsrelay/gateway/fcm"
)

func TestSendPush(t *testing.T) {
	var gotPath, gotAuth string
	var got map[string]map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"projects/p/messages/1"}`))
	}))
	defer srv.Close()

	c := fcm.New(fcm.Config{ProjectID: "p", AccessToken: "secret", BaseURL: srv.URL})
	err := c.SendPush(context.Background(), "device-1", dispatch.Notification{
		Title: "New donation",
		Body:  "You have messages to send",
		Data:  map[string]string{"type": "new_donation"},
	})
	if err != nil {
		t.Fatalf("SendPush() = %v", err)
	}

	if gotPath != "/v1/projects/p/messages:send" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if got["message"]["token"] != "device-1" {
		t.Errorf("token = %v", got["message"]["token"])
	}
}

func TestSendPushErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":"UNREGISTERED"}}`))
	}))
	defer srv.Close()

	c := fcm.New(fcm.Config{ProjectID: "p", BaseURL: srv.URL})
	err := c.SendPush(context.Background(), "gone", dispatch.Notification{Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "UNREGISTERED") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}
