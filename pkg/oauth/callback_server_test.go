package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestCallbackServerReceivesCode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := NewCallbackServer(0)
	redirectURI, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if !strings.HasSuffix(redirectURI, "/callback") {
		t.Errorf("redirect URI = %q, want /callback suffix", redirectURI)
	}

	resp, err := http.Get(fmt.Sprintf("%s?code=auth-code&state=xyz", redirectURI))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("callback status = %d, want 200", resp.StatusCode)
	}

	result, err := s.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback() error = %v", err)
	}
	if result.Code != "auth-code" {
		t.Errorf("Code = %q, want auth-code", result.Code)
	}
	if result.State != "xyz" {
		t.Errorf("State = %q, want xyz", result.State)
	}
	if result.IsError() {
		t.Error("result should not be an error")
	}
}

func TestCallbackServerErrorResult(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := NewCallbackServer(0)
	redirectURI, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	resp, err := http.Get(fmt.Sprintf("%s?error=access_denied&error_description=user+cancelled", redirectURI))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	resp.Body.Close()

	result, err := s.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback() error = %v", err)
	}
	if !result.IsError() {
		t.Fatal("expected an error result")
	}
	if result.Error != "access_denied" {
		t.Errorf("Error = %q, want access_denied", result.Error)
	}
}

func TestCallbackServerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := NewCallbackServer(0)
	if _, err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	// Cancelling must settle the wait instead of hanging.
	cancel()

	_, err := s.WaitForCallback(ctx)
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
}

func TestCallbackServerRandomPort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s := NewCallbackServer(0)
	if _, err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if s.Port() == 0 {
		t.Error("expected an assigned port")
	}
}
