package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/filings-ops/notebook-deployer/internal/notify"
)

func TestNewServiceReturnsNoopWhenURLMissing(t *testing.T) {
	svc := notify.NewService("Filings Notebook Report Job", "   ")
	if err := svc.NotifyDeployFailed(context.Background(), "dev", "FAILED"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyDeployFailedPayload(t *testing.T) {
	var gotBody string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := notify.NewService("Filings Notebook Report Job", server.URL)
	if err := svc.NotifyDeployFailed(context.Background(), "test", "FAILED"); err != nil {
		t.Fatalf("NotifyDeployFailed returned error: %v", err)
	}

	if gotContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotContentType)
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(gotBody), &payload); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if !strings.Contains(payload.Text, "*Filings Notebook Report Job Built and Deployed to test*") {
		t.Fatalf("payload missing job/env banner, got %q", payload.Text)
	}
	if !strings.Contains(payload.Text, "FAILED") {
		t.Fatalf("payload missing status, got %q", payload.Text)
	}
}

func TestNotifyDeployFailedRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad hook", http.StatusForbidden)
	}))
	defer server.Close()

	svc := notify.NewService("Filings Notebook Report Job", server.URL)
	err := svc.NotifyDeployFailed(context.Background(), "dev", "FAILED")
	if err == nil {
		t.Fatal("expected error for rejected notification")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}

func TestMessage(t *testing.T) {
	got := notify.Message("Filings Notebook Report Job", "dev", "FAILED")
	want := "*Filings Notebook Report Job Built and Deployed to dev* finished with status FAILED"
	if got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
}
